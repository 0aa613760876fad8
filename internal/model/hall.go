package model

// Hall represents an individual screening hall within a cinema.
// Only the fields the seat map needs are carried here; hall
// administration lives in the catalog service.
type Hall struct {
	ID   uint64 `json:"id"`   // halls.id
	Name string `json:"name"` // halls.name
}

// RoomLayout is the read-only seat plan of the room a show is
// screened in.  It is loaded once when seat selection is opened for a
// show and never changes for the lifetime of that show's ledger.
type RoomLayout struct {
	Show  Show   `json:"show"`
	Hall  Hall   `json:"hall"`
	Seats []Seat `json:"seats"`
}

// SeatByID returns the seat with the given id, if it belongs to the room.
func (l RoomLayout) SeatByID(id uint64) (Seat, bool) {
	for _, s := range l.Seats {
		if s.ID == id {
			return s, true
		}
	}
	return Seat{}, false
}
