package reservation

// HoldResult is the outcome of a Hold call that was not a defect.
type HoldResult int

const (
	// HoldOK means the seat is now held by the calling session.
	HoldOK HoldResult = iota
	// HoldConflict means the seat is held by another session or sold.
	HoldConflict
)

func (r HoldResult) String() string {
	switch r {
	case HoldOK:
		return "ok"
	case HoldConflict:
		return "conflict"
	}
	return "unknown"
}

// ReleaseResult is the outcome of a Release call that was not a defect.
type ReleaseResult int

const (
	// ReleaseOK means the seat went from held-by-session to free.
	ReleaseOK ReleaseResult = iota
	// ReleaseNotHeld means the session did not hold the seat; nothing changed.
	ReleaseNotHeld
)

func (r ReleaseResult) String() string {
	switch r {
	case ReleaseOK:
		return "ok"
	case ReleaseNotHeld:
		return "not_held_by_session"
	}
	return "unknown"
}
