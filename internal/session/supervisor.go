// Package session runs the purchase window of every sales session.
// A session is started when seat selection begins and ends in exactly
// one of three ways: completed by checkout, cancelled by the user, or
// expired by its countdown.  Cancel and expiry both release the
// session's holds through the same Releaser call.
//
// While a checkout is in flight (BeginCheckout until Complete or
// EndCheckout) expiry and Cancel do not end the session.  They are
// recorded as pending: a successful checkout still ends in Completed,
// a failed one applies the pending end.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

var (
	// ErrUnknownSession is returned for a session id that was never started
	// or has been pruned.
	ErrUnknownSession = errors.New("unknown session")
	// ErrSessionClosed is returned when a finished session is started again
	// or asked to transition a second time.
	ErrSessionClosed = errors.New("session already closed")
	// ErrExtensionLimit is returned when an extension would push the
	// total extension past Config.MaxExtension.
	ErrExtensionLimit = errors.New("purchase window cannot be extended further")
	// ErrCheckoutInProgress is returned by BeginCheckout for a session
	// already checking out, and by Cancel when the cancellation had to
	// be deferred until the checkout resolves.
	ErrCheckoutInProgress = errors.New("checkout in progress")
)

// Releaser frees every seat a session holds.  The reservation ledger of
// the show the session was opened for satisfies it.
type Releaser interface {
	ReleaseAll(sessionID string) []uint64
}

// Callbacks receive countdown events.  They are invoked from the
// session's own goroutine while its state lock is held, so they must
// not block and must not call back into the Supervisor.
type Callbacks struct {
	OnTick   func(remaining time.Duration)
	OnExpire func()
}

// Config controls the purchase window.
type Config struct {
	Window       time.Duration // length of the window set at Start
	TickInterval time.Duration // how often OnTick fires
	MaxExtension time.Duration // total time Extend may add; 0 disables Extend
}

// Lease is a point-in-time view of one session's window.
type Lease struct {
	SessionID string              `json:"session_id"`
	Status    model.SessionStatus `json:"status"`
	Deadline  time.Time           `json:"deadline"`
	Remaining time.Duration       `json:"-"`
	EndedAt   time.Time           `json:"ended_at,omitempty"`
	// Pending is the end requested while a checkout was in flight.
	Pending model.SessionStatus `json:"pending,omitempty"`
}

// Supervisor owns the countdowns of all sessions in the process.  Each
// session has its own goroutine and lock; sessions never contend with
// each other except briefly on the registry map.
type Supervisor struct {
	cfg Config
	now func() time.Time
	log *logrus.Entry

	mu   sync.Mutex
	runs map[string]*countdown
}

// NewSupervisor returns a supervisor with no running sessions.
func NewSupervisor(cfg Config, log *logrus.Entry) *Supervisor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Supervisor{
		cfg:  cfg,
		now:  time.Now,
		log:  log,
		runs: make(map[string]*countdown),
	}
}

// Window returns the configured purchase window.
func (s *Supervisor) Window() time.Duration { return s.cfg.Window }

// Start begins the countdown of sessionID.  Starting a session that is
// already running returns its current lease and changes nothing, so
// the deadline set by the first Start is the only one.  Starting a
// session that has already ended returns ErrSessionClosed.
func (s *Supervisor) Start(sessionID string, rel Releaser, cb Callbacks) (Lease, error) {
	s.mu.Lock()
	if c, ok := s.runs[sessionID]; ok {
		s.mu.Unlock()
		lease := c.lease(s.now())
		if lease.Status.Terminal() {
			return lease, fmt.Errorf("%w: %s is %s", ErrSessionClosed, sessionID, lease.Status)
		}
		return lease, nil
	}
	now := s.now()
	c := &countdown{
		id:       sessionID,
		rel:      rel,
		cb:       cb,
		now:      s.now,
		log:      s.log.WithField("session_id", sessionID),
		status:   model.SessionRunning,
		deadline: now.Add(s.cfg.Window),
		stop:     make(chan struct{}),
		moved:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.runs[sessionID] = c
	s.mu.Unlock()

	go c.run(s.cfg.TickInterval)
	c.log.WithField("deadline", c.deadline).Debug("purchase window started")
	return c.lease(now), nil
}

// Cancel stops the countdown and synchronously releases the session's
// holds.  Cancelling a session that already ended is a no-op that
// reports ErrSessionClosed along with the final lease.  Cancelling
// during a checkout returns ErrCheckoutInProgress; the cancellation is
// applied if the checkout fails.
func (s *Supervisor) Cancel(sessionID string) (Lease, error) {
	return s.finish(sessionID, model.SessionCancelled)
}

// Complete stops the countdown without releasing anything; the
// session's seats are expected to have been sold.  It wins over an
// expiry or cancellation left pending by the checkout.
func (s *Supervisor) Complete(sessionID string) (Lease, error) {
	return s.finish(sessionID, model.SessionCompleted)
}

func (s *Supervisor) finish(sessionID string, to model.SessionStatus) (Lease, error) {
	c, err := s.lookup(sessionID)
	if err != nil {
		return Lease{}, err
	}

	c.mu.Lock()
	now := s.now()
	if c.status != model.SessionRunning {
		lease := c.leaseLocked(now)
		c.mu.Unlock()
		return lease, fmt.Errorf("%w: %s is %s", ErrSessionClosed, sessionID, lease.Status)
	}
	if to != model.SessionCompleted && c.checkingOut {
		if c.pending == "" {
			c.pending = to
		}
		lease := c.leaseLocked(now)
		c.mu.Unlock()
		c.log.WithField("pending", lease.Pending).Info("session end deferred until checkout resolves")
		return lease, fmt.Errorf("%w: %s", ErrCheckoutInProgress, sessionID)
	}
	freed := c.endLocked(to, now)
	c.halt()
	lease := c.leaseLocked(now)
	c.mu.Unlock()

	// No tick or expiry can fire after this returns.
	<-c.done
	c.log.WithFields(logrus.Fields{"status": to, "released": len(freed)}).Info("purchase window closed")
	return lease, nil
}

// BeginCheckout marks sessionID as checking out.  Until Complete or
// EndCheckout, expiry and Cancel are deferred instead of releasing the
// session's seats.  A session whose deadline has passed is expired now
// and gets ErrSessionClosed.
func (s *Supervisor) BeginCheckout(sessionID string) (Lease, error) {
	c, err := s.lookup(sessionID)
	if err != nil {
		return Lease{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := s.now()
	switch {
	case c.status != model.SessionRunning:
		return c.leaseLocked(now), fmt.Errorf("%w: %s is %s", ErrSessionClosed, sessionID, c.status)
	case c.checkingOut:
		return c.leaseLocked(now), fmt.Errorf("%w: %s", ErrCheckoutInProgress, sessionID)
	case !now.Before(c.deadline):
		freed := c.endLocked(model.SessionExpired, now)
		c.halt()
		c.log.WithField("released", len(freed)).Info("purchase window expired")
		return c.leaseLocked(now), fmt.Errorf("%w: %s is %s", ErrSessionClosed, sessionID, c.status)
	}
	c.checkingOut = true
	return c.leaseLocked(now), nil
}

// EndCheckout ends a checkout that did not complete.  If expiry or
// Cancel arrived meanwhile, that end is applied now and the returned
// lease is terminal; otherwise the session keeps running.
func (s *Supervisor) EndCheckout(sessionID string) (Lease, error) {
	c, err := s.lookup(sessionID)
	if err != nil {
		return Lease{}, err
	}
	c.mu.Lock()
	now := s.now()
	if !c.checkingOut {
		lease := c.leaseLocked(now)
		c.mu.Unlock()
		return lease, nil
	}
	c.checkingOut = false
	to := c.pending
	if to == "" {
		lease := c.leaseLocked(now)
		c.mu.Unlock()
		return lease, nil
	}
	freed := c.endLocked(to, now)
	c.halt()
	lease := c.leaseLocked(now)
	c.mu.Unlock()

	<-c.done
	c.log.WithFields(logrus.Fields{"status": to, "released": len(freed)}).Info("purchase window closed after failed checkout")
	return lease, nil
}

// Extend moves the deadline of a running session by d.  The sum of all
// extensions of one session may not exceed Config.MaxExtension.
func (s *Supervisor) Extend(sessionID string, d time.Duration) (Lease, error) {
	c, err := s.lookup(sessionID)
	if err != nil {
		return Lease{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.SessionRunning {
		return c.leaseLocked(s.now()), fmt.Errorf("%w: %s is %s", ErrSessionClosed, sessionID, c.status)
	}
	if c.pending != "" {
		return c.leaseLocked(s.now()), fmt.Errorf("%w: %s ends as %s unless the checkout succeeds", ErrCheckoutInProgress, sessionID, c.pending)
	}
	if d <= 0 || c.extended+d > s.cfg.MaxExtension {
		return c.leaseLocked(s.now()), fmt.Errorf("%w: %s already extended by %s", ErrExtensionLimit, sessionID, c.extended)
	}
	c.extended += d
	c.deadline = c.deadline.Add(d)
	select {
	case c.moved <- struct{}{}:
	default:
	}
	c.log.WithField("deadline", c.deadline).Info("purchase window extended")
	return c.leaseLocked(s.now()), nil
}

// Status returns the current lease of sessionID.  A session that was
// never started (or was pruned) is reported as Idle.
func (s *Supervisor) Status(sessionID string) (Lease, error) {
	c, err := s.lookup(sessionID)
	if err != nil {
		return Lease{SessionID: sessionID, Status: model.SessionIdle}, err
	}
	return c.lease(s.now()), nil
}

// Prune forgets sessions that ended more than retention ago and returns
// their ids.
func (s *Supervisor) Prune(retention time.Duration) []string {
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned []string
	for id, c := range s.runs {
		c.mu.Lock()
		old := c.status.Terminal() && c.endedAt.Before(cutoff)
		c.mu.Unlock()
		if old {
			delete(s.runs, id)
			pruned = append(pruned, id)
		}
	}
	return pruned
}

// Running returns the number of sessions whose countdown is active.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.runs {
		c.mu.Lock()
		if c.status == model.SessionRunning {
			n++
		}
		c.mu.Unlock()
	}
	return n
}

func (s *Supervisor) lookup(sessionID string) (*countdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.runs[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return c, nil
}
