package db

import (
	"github.com/SyfSchydea/osrs-flip/internal/logger"
	"github.com/SyfSchydea/osrs-flip/internal/render"
)

// InsertResults stores the ranked rows of a render pass in order.
func (d *DB) InsertResults(renderID int64, rows []render.Row) {
	if renderID == 0 || len(rows) == 0 {
		return
	}

	tx, err := d.sql.Begin()
	if err != nil {
		logger.Warn("DB", "InsertResults begin tx: "+err.Error())
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO flip_results (
		render_id, rank, item_id, name, link, buy_limit, low, high, margin,
		low_volume, high_volume, quantity, limiting_factor, profit
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		logger.Warn("DB", "InsertResults prepare: "+err.Error())
		return
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.Exec(
			renderID, i+1, r.ItemID, r.Name, r.Link, r.BuyLimit, r.Low, r.High, r.Margin,
			r.LowVolume, r.HighVolume, r.Quantity, r.Limit, r.Profit,
		); err != nil {
			tx.Rollback()
			logger.Warn("DB", "InsertResults exec: "+err.Error())
			return
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Warn("DB", "InsertResults commit: "+err.Error())
	}
}

// GetResults returns the rows stored for a render pass in rank order.
func (d *DB) GetResults(renderID int64) []render.Row {
	rows, err := d.sql.Query(`
		SELECT item_id, name, link, buy_limit, low, high, margin,
			low_volume, high_volume, quantity, limiting_factor, profit
		FROM flip_results WHERE render_id = ? ORDER BY rank
	`, renderID)
	if err != nil {
		return []render.Row{}
	}
	defer rows.Close()

	results := []render.Row{}
	for rows.Next() {
		var r render.Row
		if err := rows.Scan(
			&r.ItemID, &r.Name, &r.Link, &r.BuyLimit, &r.Low, &r.High, &r.Margin,
			&r.LowVolume, &r.HighVolume, &r.Quantity, &r.Limit, &r.Profit,
		); err != nil {
			continue
		}
		results = append(results, r)
	}
	return results
}
