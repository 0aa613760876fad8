package repository // repository for show seat persistence

import (
	"context"      // context for managing deadlines
	"database/sql" // sql provides DB interfaces
	"strings"      // building IN (...) placeholder lists
)

// ShowSeatRepo encapsulates database operations for show_seats.  A
// show_seats row carries the per-show price override and a coarse
// status (FREE, HELD, RESERVED) for reporting; the in-memory ledger is
// authoritative for holds, so only RESERVED is ever written here.
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo {
	return &ShowSeatRepo{db: db}
}

// placeholders returns "?, ?, ?" with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// GetPricesBySeatIDsTx returns the price override of each listed seat
// that has a show_seats row.  Seats without a row are absent from the
// map; callers fall back to the show's base price.
func (r *ShowSeatRepo) GetPricesBySeatIDsTx(ctx context.Context, tx *sql.Tx, showID uint64, seatIDs []uint64) (map[uint64]uint32, error) {
	prices := make(map[uint64]uint32, len(seatIDs))
	if len(seatIDs) == 0 {
		return prices, nil
	}
	q := `SELECT seat_id, price_cents FROM show_seats WHERE show_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var price uint32
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

// BulkUpdateStatusTx sets the status of the listed seats for a show.
// Seats without a show_seats row are inserted with the given status
// and a zero price override.
func (r *ShowSeatRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, showID uint64, seatIDs []uint64, status string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO show_seats (show_id, seat_id, status) VALUES `
	args := make([]interface{}, 0, len(seatIDs)*3)
	for i, id := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, showID, id, status)
	}
	query += ` ON DUPLICATE KEY UPDATE status = VALUES(status), version = version + 1`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
