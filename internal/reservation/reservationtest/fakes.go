// Package reservationtest provides in-memory storage doubles for code
// built on the reservation ledger.
package reservationtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
	"github.com/iliyamo/cinema-seat-ledger/internal/reservation"
)

// Layout builds a room with rows*perRow seats.  Seat ids start at 1 and
// run row by row; rows are labelled A, B, C...
func Layout(showID uint64, rows, perRow int) model.RoomLayout {
	show := model.Show{
		ID:             showID,
		HallID:         1,
		Title:          "Test Feature",
		StartsAt:       time.Now().Add(2 * time.Hour),
		EndsAt:         time.Now().Add(4 * time.Hour),
		BasePriceCents: 1200,
		Status:         "SCHEDULED",
	}
	layout := model.RoomLayout{Show: show, Hall: model.Hall{ID: 1, Name: "Hall 1"}}
	id := uint64(1)
	for r := 0; r < rows; r++ {
		for n := 1; n <= perRow; n++ {
			layout.Seats = append(layout.Seats, model.Seat{
				ID:         id,
				HallID:     1,
				RowLabel:   string(rune('A' + r)),
				SeatNumber: uint32(n),
				SeatType:   "STANDARD",
				IsActive:   true,
			})
			id++
		}
	}
	return layout
}

// Catalog serves fixed layouts and counts loads per show.
type Catalog struct {
	lock    sync.Mutex
	Layouts map[uint64]model.RoomLayout
	Err     error
	Loads   map[uint64]int
	Delay   time.Duration
}

func NewCatalog(layouts ...model.RoomLayout) *Catalog {
	c := &Catalog{Layouts: map[uint64]model.RoomLayout{}, Loads: map[uint64]int{}}
	for _, l := range layouts {
		c.Layouts[l.Show.ID] = l
	}
	return c
}

func (c *Catalog) GetRoomLayout(_ context.Context, showID uint64) (model.RoomLayout, error) {
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Loads[showID]++
	if c.Err != nil {
		return model.RoomLayout{}, c.Err
	}
	l, ok := c.Layouts[showID]
	if !ok {
		return model.RoomLayout{}, fmt.Errorf("%w: %d", reservation.ErrShowNotFound, showID)
	}
	return l, nil
}

func (c *Catalog) LoadCount(showID uint64) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.Loads[showID]
}

// Occupancy serves sold seats and recorded holds.
type Occupancy struct {
	lock  sync.Mutex
	Sold  map[uint64]map[uint64]struct{}
	Holds []model.SeatHold
	Err   error
}

func NewOccupancy() *Occupancy {
	return &Occupancy{Sold: map[uint64]map[uint64]struct{}{}}
}

func (o *Occupancy) MarkSold(showID uint64, seatIDs ...uint64) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.Sold[showID] == nil {
		o.Sold[showID] = map[uint64]struct{}{}
	}
	for _, id := range seatIDs {
		o.Sold[showID][id] = struct{}{}
	}
}

func (o *Occupancy) LoadSold(_ context.Context, showID uint64) (map[uint64]struct{}, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	out := map[uint64]struct{}{}
	for id := range o.Sold[showID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (o *Occupancy) LoadHeldByOthers(_ context.Context, showID uint64, excluding string) ([]model.SeatHold, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	var out []model.SeatHold
	for _, h := range o.Holds {
		if h.ShowID == showID && h.SessionID != excluding && h.ExpiresAt.After(time.Now()) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Recorder records sales in memory.  Block, when set, is received from
// before each write; Fail makes the next writes fail until cleared.
type Recorder struct {
	lock    sync.Mutex
	Sales   []model.Sale
	bySess  map[string]model.SaleReceipt
	Fail    error
	Block   chan struct{}
	nextID  uint64
	waiting int
}

func NewRecorder() *Recorder {
	return &Recorder{bySess: map[string]model.SaleReceipt{}}
}

func (r *Recorder) SetFail(err error) {
	r.lock.Lock()
	r.Fail = err
	r.lock.Unlock()
}

func (r *Recorder) RecordSale(ctx context.Context, sale model.Sale) (model.SaleReceipt, error) {
	if r.Block != nil {
		r.lock.Lock()
		r.waiting++
		r.lock.Unlock()
		select {
		case <-r.Block:
		case <-ctx.Done():
			return model.SaleReceipt{}, ctx.Err()
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Fail != nil {
		return model.SaleReceipt{}, r.Fail
	}
	if rec, ok := r.bySess[sale.SessionID]; ok {
		rec.Replayed = true
		return rec, nil
	}
	r.nextID++
	rec := model.SaleReceipt{ReservationID: r.nextID, ConfirmedAt: time.Now().UTC()}
	for _, s := range sale.Seats {
		rec.TicketRefs = append(rec.TicketRefs, strconv.FormatUint(sale.ShowID, 10)+"-"+s.Label())
		rec.TotalAmountCents += 1200
	}
	r.Sales = append(r.Sales, sale)
	r.bySess[sale.SessionID] = rec
	return rec, nil
}

// Waiting returns how many writes have reached Block.
func (r *Recorder) Waiting() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.waiting
}

func (r *Recorder) SaleCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.Sales)
}

// Changes collects ledger notifications.
type Changes struct {
	lock sync.Mutex
	All  []reservation.SeatChange
}

func (c *Changes) OnSeatStateChanged(change reservation.SeatChange) {
	c.lock.Lock()
	c.All = append(c.All, change)
	c.lock.Unlock()
}

func (c *Changes) List() []reservation.SeatChange {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]reservation.SeatChange(nil), c.All...)
}

// ForSeat returns the states seatID went through, in order.
func (c *Changes) ForSeat(seatID uint64) []model.SeatState {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []model.SeatState
	for _, ch := range c.All {
		if ch.Seat.ID == seatID {
			out = append(out, ch.State)
		}
	}
	return out
}
