// Package market holds the three independently fetched datasets the flip
// calculator joins: the item catalog, a price snapshot and a volume snapshot.
package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/logger"
	"github.com/SyfSchydea/osrs-flip/internal/wiki"
)

// Kind names one of the datasets held by the Store.
type Kind int

const (
	Catalog Kind = iota
	Prices
	Volumes
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Catalog:
		return "catalog"
	case Prices:
		return "prices"
	case Volumes:
		return "volumes"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// State describes how many datasets have arrived at least once.
type State int

const (
	NoneReady State = iota
	PartiallyReady
	AllReady
)

func (s State) String() string {
	switch s {
	case NoneReady:
		return "none_ready"
	case PartiallyReady:
		return "partially_ready"
	case AllReady:
		return "all_ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ticket orders fetches of one kind. A response carrying an older ticket than
// the last applied one is discarded.
type Ticket struct {
	kind Kind
	seq  uint64
}

// Snapshot is a consistent read view of the store.
type Snapshot struct {
	Catalog   []wiki.Item
	Prices    wiki.PriceSnapshot
	Volumes   wiki.VolumeSnapshot
	FetchedAt [numKinds]time.Time
}

// Store is a thread-safe holder of the latest datasets with replace-on-fetch semantics.
type Store struct {
	mu        sync.RWMutex
	catalog   []wiki.Item
	prices    *wiki.PriceSnapshot
	volumes   *wiki.VolumeSnapshot
	fetchedAt [numKinds]time.Time
	issued    [numKinds]uint64
	applied   [numKinds]uint64
	listeners []func(Kind)
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// OnChange registers fn to be called after every accepted replace.
// Listeners run on the goroutine that applied the update, outside the lock.
func (s *Store) OnChange(fn func(Kind)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Begin issues a ticket for a fetch of kind k that is about to start.
func (s *Store) Begin(k Kind) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[k]++
	return Ticket{kind: k, seq: s.issued[k]}
}

// SetCatalog replaces the item catalog. Set* calls report false when the
// ticket is older than the last applied one for that kind.
func (s *Store) SetCatalog(t Ticket, items []wiki.Item) bool {
	if items == nil {
		items = []wiki.Item{}
	}
	return s.apply(t, Catalog, func() { s.catalog = items })
}

// SetPrices replaces the price snapshot.
func (s *Store) SetPrices(t Ticket, snap wiki.PriceSnapshot) bool {
	return s.apply(t, Prices, func() { s.prices = &snap })
}

// SetVolumes replaces the volume snapshot.
func (s *Store) SetVolumes(t Ticket, snap wiki.VolumeSnapshot) bool {
	return s.apply(t, Volumes, func() { s.volumes = &snap })
}

func (s *Store) apply(t Ticket, k Kind, set func()) bool {
	if t.kind != k {
		panic(fmt.Sprintf("market: %s ticket used for %s", t.kind, k))
	}
	s.mu.Lock()
	if t.seq < s.applied[k] {
		s.mu.Unlock()
		logger.Warn("MARKET", fmt.Sprintf("Dropped stale %s response (ticket %d < %d)", k, t.seq, s.applied[k]))
		return false
	}
	set()
	s.applied[k] = t.seq
	s.fetchedAt[k] = s.now()
	listeners := append([]func(Kind){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(k)
	}
	return true
}

// State reports how many datasets are present.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	if s.catalog != nil {
		n++
	}
	if s.prices != nil {
		n++
	}
	if s.volumes != nil {
		n++
	}
	switch n {
	case 0:
		return NoneReady
	case int(numKinds):
		return AllReady
	}
	return PartiallyReady
}

// FetchedAt returns when kind k was last replaced (zero if never).
func (s *Store) FetchedAt(k Kind) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt[k]
}

// Snapshot returns the current datasets. ok is false until all three have
// arrived at least once. The returned maps and slices are shared and must
// not be mutated; every Set* call swaps them rather than editing in place.
func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil || s.prices == nil || s.volumes == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		Catalog:   s.catalog,
		Prices:    *s.prices,
		Volumes:   *s.volumes,
		FetchedAt: s.fetchedAt,
	}, true
}
