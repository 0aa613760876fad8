package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// Catalog assembles the room layout of a show from the shows, halls
// and seats tables.  It satisfies reservation.CatalogReader.
type Catalog struct {
	Shows *ShowRepo
	Halls *HallRepo
	Seats *SeatRepo
}

// NewCatalog wires a Catalog from its repositories.
func NewCatalog(shows *ShowRepo, halls *HallRepo, seats *SeatRepo) *Catalog {
	return &Catalog{Shows: shows, Halls: halls, Seats: seats}
}

// GetRoomLayout loads a show, its hall and the hall's sellable seats.
// A missing show yields ErrShowNotFound; every other failure is
// returned wrapped with the step that failed.
func (c *Catalog) GetRoomLayout(ctx context.Context, showID uint64) (model.RoomLayout, error) {
	show, err := c.Shows.GetByID(ctx, showID)
	if err != nil {
		return model.RoomLayout{}, fmt.Errorf("loading show %d: %w", showID, err)
	}
	hall, err := c.Halls.GetByID(ctx, show.HallID)
	if err != nil {
		return model.RoomLayout{}, fmt.Errorf("loading hall %d: %w", show.HallID, err)
	}
	seats, err := c.Seats.GetActiveByHall(ctx, hall.ID)
	if err != nil {
		return model.RoomLayout{}, fmt.Errorf("loading seats of hall %d: %w", hall.ID, err)
	}
	return model.RoomLayout{Show: *show, Hall: *hall, Seats: seats}, nil
}
