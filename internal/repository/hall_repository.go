package repository // repository for hall lookups

import (
	"context"      // context for cancellation
	"database/sql" // database/sql for DB access
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// ErrHallNotFound is returned when a hall lookup yields no rows.
var ErrHallNotFound = errors.New("hall not found")

// HallRepo reads halls.  Halls are created and edited by the catalog;
// the seat map only needs a hall's name.
type HallRepo struct {
	db *sql.DB // underlying database handle
}

// NewHallRepo constructs a HallRepo using the given database handle.
func NewHallRepo(db *sql.DB) *HallRepo { return &HallRepo{db: db} }

// GetByID fetches a hall by its primary key.  It returns ErrHallNotFound
// if no hall exists with the given ID.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	const q = `SELECT id, name FROM halls WHERE id = ?`
	var h model.Hall
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}
