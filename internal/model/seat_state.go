package model

// SeatState is the occupancy of one seat for one show.  Exactly one
// state applies at any instant.  Allowed transitions are
// Free→Held, Held→Free and Held→Sold (same session only); Sold is
// terminal.
type SeatState string

const (
	SeatFree SeatState = "FREE"
	SeatHeld SeatState = "HELD"
	SeatSold SeatState = "SOLD"
)

// SeatView is a seat's state as seen by one particular session.  It
// distinguishes the session's own holds from holds of other sessions
// so that the seat map can offer "deselect" on the former and render
// the latter as taken.
type SeatView string

const (
	ViewFree        SeatView = "FREE"
	ViewHeldBySelf  SeatView = "HELD_BY_SELF"
	ViewHeldByOther SeatView = "HELD_BY_OTHER"
	ViewSold        SeatView = "SOLD"
)
