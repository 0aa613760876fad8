package reservation

import (
	"context"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// CatalogReader returns the seat plan of the room a show is screened
// in.  It must return ErrShowNotFound (possibly wrapped) for a show
// that does not exist.
type CatalogReader interface {
	GetRoomLayout(ctx context.Context, showID uint64) (model.RoomLayout, error)
}

// OccupancyReader translates durable storage facts into the initial
// state of a ledger.  Both methods are read-only.
type OccupancyReader interface {
	// LoadSold returns the ids of seats already sold for the show.
	LoadSold(ctx context.Context, showID uint64) (map[uint64]struct{}, error)
	// LoadHeldByOthers returns unexpired holds recorded for the show by
	// any session other than excludingSessionID ("" excludes none).
	LoadHeldByOthers(ctx context.Context, showID uint64, excludingSessionID string) ([]model.SeatHold, error)
}

//go:generate mockery --name SaleRecorder --output mocks --outpkg mocks

// SaleRecorder durably records a sale.  Recording the same session
// twice must return the first receipt instead of a second sale.
type SaleRecorder interface {
	RecordSale(ctx context.Context, sale model.Sale) (model.SaleReceipt, error)
}
