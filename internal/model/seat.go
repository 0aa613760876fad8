package model

import "strconv"

// Seat describes a physical seat in a hall.  Seats are
// uniquely identified by their hall, row label and seat number.
// The seat_type indicates whether the seat is standard, VIP or
// accessible for disabled patrons.  A seat is immutable once the
// room layout has been loaded for a showing.
//
// Fields:
//  ID         – primary key identifier (unique within the room).
//  HallID     – hall to which this seat belongs.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  SeatType   – type of seat (STANDARD, VIP, ACCESSIBLE).
//  IsActive   – whether the seat can be sold at all.
type Seat struct {
	ID         uint64 `json:"id"`          // seats.id
	HallID     uint64 `json:"hall_id"`     // seats.hall_id
	RowLabel   string `json:"row_label"`   // seats.row_label
	SeatNumber uint32 `json:"seat_number"` // seats.seat_number
	SeatType   string `json:"seat_type"`   // seats.seat_type
	IsActive   bool   `json:"is_active"`   // seats.is_active
}

// Label renders the seat the way it is printed on a ticket, e.g. "F4".
func (s Seat) Label() string {
	return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
