package model

import "time"

// SeatHold represents a durable copy of an in-memory hold.  The
// authoritative hold lives in the show's ledger; the seat_holds row
// exists so that holds can be rebuilt after a process restart.
//
// Fields:
//  ShowID    – show for which the seat is held.
//  SeatID    – seat being held.
//  SessionID – sales session that owns the hold.
//  HoldToken – unique token for correlation in logs and support.
//  ExpiresAt – the owning session's lease deadline.
type SeatHold struct {
	ShowID    uint64    // seat_holds.show_id
	SeatID    uint64    // seat_holds.seat_id
	SessionID string    // seat_holds.session_id
	HoldToken string    // seat_holds.hold_token
	ExpiresAt time.Time // seat_holds.expires_at
}
