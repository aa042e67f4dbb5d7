package engine

// BondItemID is the Old school bond. Bought bonds become untradeable until
// redeemed, so they can never be flipped.
const BondItemID = 13190

// excludedItemIDs lists items that carry prices but cannot be resold after
// buying.
var excludedItemIDs = map[int]struct{}{
	BondItemID: {},
}

// IsExcludedItem reports whether the given item is never shown as a flip.
func IsExcludedItem(itemID int) bool {
	_, blocked := excludedItemIDs[itemID]
	return blocked
}
