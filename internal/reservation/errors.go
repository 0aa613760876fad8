// Package reservation holds the in-memory authority on seat state for
// every show that is currently on sale.  A Ledger serializes all
// mutations for one show; the Registry hands out exactly one Ledger per
// show so that holds placed by one sales terminal are visible to every
// other terminal selling the same show.
//
// Expected contention (a seat taken by someone else, releasing a seat
// you do not hold) is reported through result values.  Errors are
// reserved for defects (unknown seat, unbound session) and for storage
// failures.
package reservation

import "errors"

// ErrUnknownSeat is returned when a seat id does not belong to the
// show's room.  It means the caller and the ledger disagree on the
// room layout and should be reported as a defect.
var ErrUnknownSeat = errors.New("seat does not belong to this show")

// ErrSessionNotBound is returned when a session that was never bound
// to the show (or that has already been released or confirmed) tries
// to hold or confirm seats.
var ErrSessionNotBound = errors.New("session is not bound to this show")

// ErrLeaseExpired is returned by Hold when the session's purchase
// window has already elapsed.
var ErrLeaseExpired = errors.New("session lease has expired")

// ErrNothingHeld is returned by Confirm when the session holds no seats.
var ErrNothingHeld = errors.New("session holds no seats")

// ErrConfirmInProgress is returned when a session's seats are being
// written to storage and the requested operation would touch them.
var ErrConfirmInProgress = errors.New("confirm already in progress for session")

// ErrStorageUnavailable wraps any failure to read ground truth from
// the store.  Seat selection must not be opened when it is returned.
var ErrStorageUnavailable = errors.New("seat storage unavailable")

// ErrSaleNotRecorded wraps a failed durable write during Confirm.  The
// session's seats are still held unless the session was closed while
// the write was in flight.
var ErrSaleNotRecorded = errors.New("sale could not be recorded")

// ErrShowNotFound is returned by catalog readers when the show does
// not exist.  It is passed through unchanged by the Registry.
var ErrShowNotFound = errors.New("show not found")

// ErrSeatAlreadySold is returned by sale recorders when storage already
// has a sale for one of the seats.  Retrying cannot succeed.
var ErrSeatAlreadySold = errors.New("seat already sold")
