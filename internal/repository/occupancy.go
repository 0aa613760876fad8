package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// Occupancy reads the durable facts a ledger is seeded from.  It
// satisfies reservation.OccupancyReader.
type Occupancy struct {
	db    *sql.DB
	holds *SeatHoldRepo
}

// NewOccupancy returns an Occupancy reading sold seats from db and
// holds through holds.
func NewOccupancy(db *sql.DB, holds *SeatHoldRepo) *Occupancy {
	return &Occupancy{db: db, holds: holds}
}

// LoadSold returns the seats of a show that have a reservation_seats
// row.  Every such row belongs to a committed sale.
func (o *Occupancy) LoadSold(ctx context.Context, showID uint64) (map[uint64]struct{}, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT seat_id FROM reservation_seats WHERE show_id = ?`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sold := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sold[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}

// LoadHeldByOthers returns the unexpired journaled holds of a show.
func (o *Occupancy) LoadHeldByOthers(ctx context.Context, showID uint64, excludingSessionID string) ([]model.SeatHold, error) {
	return o.holds.ListActiveByShow(ctx, showID, excludingSessionID)
}
