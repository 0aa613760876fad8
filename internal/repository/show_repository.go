// Package repository contains data access logic for Show domain operations. This file defines
// the repository methods for shows. A Show represents a scheduled
// screening of a movie in a hall. The seat reservation core only reads
// shows; scheduling is owned by the catalog.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

const showColumns = `id, hall_id, title, starts_at, ends_at, base_price_cents, status`

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.  The DSN uses parseTime=true so DATETIME
// columns scan straight into time.Time (UTC).
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
	var s model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.HallID, &s.Title, &s.StartsAt, &s.EndsAt, &s.BasePriceCents, &s.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// BasePriceTx returns the base price of a show inside an existing
// transaction.  It is used to price seats that have no show_seats row.
func (r *ShowRepo) BasePriceTx(ctx context.Context, tx *sql.Tx, id uint64) (uint32, error) {
	var price uint32
	err := tx.QueryRowContext(ctx, `SELECT base_price_cents FROM shows WHERE id = ?`, id).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrShowNotFound
	}
	return price, err
}
