package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-ledger/internal/model"
)

// countdown is the private state of one session.  mu serializes the
// goroutine's tick and expiry against Cancel, Complete and Extend.
type countdown struct {
	id  string
	rel Releaser
	cb  Callbacks
	now func() time.Time
	log *logrus.Entry

	mu          sync.Mutex
	status      model.SessionStatus
	deadline    time.Time
	extended    time.Duration
	endedAt     time.Time
	checkingOut bool
	pending     model.SessionStatus // end requested while checkingOut

	stopOnce sync.Once
	stop     chan struct{} // closed by halt
	moved    chan struct{} // deadline changed
	done     chan struct{} // closed when run returns
}

func (c *countdown) halt() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *countdown) run(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timer := time.NewTimer(c.until())
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-c.moved:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.until())
		case <-ticker.C:
			if !c.tick() {
				return
			}
		case <-timer.C:
			if !c.tick() {
				return
			}
			// Extended in the meantime; wait for the new deadline.
			timer.Reset(c.until())
		}
	}
}

func (c *countdown) until() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline.Sub(c.now())
}

// tick reports the remaining time or expires the session.  It returns
// false once the session is no longer running or its end is pending on
// a checkout.
func (c *countdown) tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.SessionRunning || c.pending != "" {
		return false
	}
	now := c.now()
	remaining := c.deadline.Sub(now)
	if remaining > 0 {
		if c.cb.OnTick != nil {
			c.cb.OnTick(remaining)
		}
		return true
	}

	if c.checkingOut {
		c.pending = model.SessionExpired
		c.log.Info("purchase window elapsed during checkout; expiry deferred")
		return false
	}
	freed := c.endLocked(model.SessionExpired, now)
	c.log.WithField("released", len(freed)).Info("purchase window expired")
	return false
}

// endLocked moves the session to the terminal status to.  Every end but
// Completed releases the session's holds; Expired also fires OnExpire.
// Callers must hold mu.
func (c *countdown) endLocked(to model.SessionStatus, now time.Time) []uint64 {
	c.status = to
	c.endedAt = now
	c.checkingOut = false
	c.pending = ""
	var freed []uint64
	if to != model.SessionCompleted && c.rel != nil {
		freed = c.rel.ReleaseAll(c.id)
	}
	if to == model.SessionExpired && c.cb.OnExpire != nil {
		c.cb.OnExpire()
	}
	return freed
}

func (c *countdown) lease(now time.Time) Lease {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaseLocked(now)
}

func (c *countdown) leaseLocked(now time.Time) Lease {
	l := Lease{
		SessionID: c.id,
		Status:    c.status,
		Deadline:  c.deadline,
		EndedAt:   c.endedAt,
		Pending:   c.pending,
	}
	if c.status == model.SessionRunning && c.deadline.After(now) {
		l.Remaining = c.deadline.Sub(now)
	}
	return l
}
