package model

// SessionStatus is the lifecycle state of a sales session's purchase
// window: Idle → Running → {Completed, Cancelled, Expired}.
type SessionStatus string

const (
	SessionIdle      SessionStatus = "IDLE"
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionExpired
}
