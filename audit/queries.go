package audit

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"amanahchain/native/donation"
)

// Entry is a single journal row returned by the read queries.
type Entry struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurredAt"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// AllocationSlice reports the share of donations received under one category.
type AllocationSlice struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Percent  string `json:"percent"`
}

// Recent returns the newest journal entries, newest first. The implicit
// rowid breaks timestamp ties in insertion order.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, occurred_at, event_type, attributes FROM events
         ORDER BY occurred_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var attrs string
		if err := rows.Scan(&entry.ID, &entry.OccurredAt, &entry.Type, &attrs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Allocation aggregates recorded donations by category and derives the
// percentage split the dashboard allocation chart renders. An empty pool code
// aggregates across all pools.
func (j *Journal) Allocation(pool string) ([]AllocationSlice, error) {
	query := `SELECT category, amount FROM events WHERE event_type = ?`
	args := []interface{}{donation.EventTypeDonated}
	if pool != "" {
		query += ` AND pool = ?`
		args = append(args, pool)
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]*big.Int)
	grand := big.NewInt(0)
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, err
		}
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("audit: malformed amount %q", amount)
		}
		if _, exists := totals[category]; !exists {
			totals[category] = big.NewInt(0)
		}
		totals[category].Add(totals[category], value)
		grand.Add(grand, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices := make([]AllocationSlice, 0, len(totals))
	for _, category := range donation.Categories() {
		total, ok := totals[category.String()]
		if !ok {
			continue
		}
		percent := "0"
		if grand.Sign() > 0 {
			hundred := new(big.Int).Mul(total, big.NewInt(100))
			percent = new(big.Int).Quo(hundred, grand).String()
		}
		slices = append(slices, AllocationSlice{
			Category: category.String(),
			Amount:   total.String(),
			Percent:  percent,
		})
	}
	return slices, nil
}
