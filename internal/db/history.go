package db

import (
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/logger"
)

// RenderRecord is one render pass.
type RenderRecord struct {
	ID            int64  `json:"id"`
	Timestamp     string `json:"timestamp"`
	PricePeriod   string `json:"price_period"`
	HoldingPeriod string `json:"holding_period"`
	CashBudget    int64  `json:"cash_budget"`
	Candidates    int    `json:"candidates"`
	Count         int    `json:"count"`
	TopProfit     int64  `json:"top_profit"`
	TotalProfit   int64  `json:"total_profit"`
	DurationMs    int64  `json:"duration_ms"`
}

// InsertHistory stores rec and returns its ID, or 0 on failure.
// An empty Timestamp is filled with the current time.
func (d *DB) InsertHistory(rec RenderRecord) int64 {
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339)
	}
	result, err := d.sql.Exec(
		`INSERT INTO render_history
		 (timestamp, price_period, holding_period, cash_budget, candidates, count, top_profit, total_profit, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.PricePeriod, rec.HoldingPeriod, rec.CashBudget,
		rec.Candidates, rec.Count, rec.TopProfit, rec.TotalProfit, rec.DurationMs,
	)
	if err != nil {
		logger.Warn("DB", "InsertHistory: "+err.Error())
		return 0
	}
	id, _ := result.LastInsertId()
	return id
}

const historyColumns = `id, timestamp, price_period, holding_period, cash_budget,
	candidates, count, top_profit, total_profit, duration_ms`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (RenderRecord, error) {
	var r RenderRecord
	err := s.Scan(&r.ID, &r.Timestamp, &r.PricePeriod, &r.HoldingPeriod, &r.CashBudget,
		&r.Candidates, &r.Count, &r.TopProfit, &r.TotalProfit, &r.DurationMs)
	return r, err
}

// GetHistory returns the last N render records, newest first.
func (d *DB) GetHistory(limit int) []RenderRecord {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		"SELECT "+historyColumns+" FROM render_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return []RenderRecord{}
	}
	defer rows.Close()

	records := []RenderRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records
}

// GetHistoryByID returns a single render record, or nil if it does not exist.
func (d *DB) GetHistoryByID(id int64) *RenderRecord {
	row := d.sql.QueryRow("SELECT "+historyColumns+" FROM render_history WHERE id = ?", id)
	r, err := scanRecord(row)
	if err != nil {
		return nil
	}
	return &r
}

// PruneHistory keeps the newest keep records and drops the rest along with
// their results. It returns the number of records removed.
func (d *DB) PruneHistory(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	const older = `SELECT id FROM render_history ORDER BY id DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec("DELETE FROM flip_results WHERE render_id IN ("+older+")", keep); err != nil {
		tx.Rollback()
		return 0, err
	}
	result, err := tx.Exec("DELETE FROM render_history WHERE id IN ("+older+")", keep)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
