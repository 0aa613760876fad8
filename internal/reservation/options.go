package reservation

import (
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	now   func() time.Time
	log   *logrus.Entry
	grace time.Duration
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		log:   logrus.WithField("component", "ledger"),
		grace: 2 * time.Second,
	}
}

// Option customizes a Ledger or a Registry.
type Option func(*options)

// WithClock replaces time.Now.  Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the entry log lines are written through.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithSweepGrace sets how long past its expiry a hold survives before
// the registry's janitor frees it.  The session supervisor normally
// releases holds on time; the sweep only catches what it missed.
func WithSweepGrace(d time.Duration) Option {
	return func(o *options) { o.grace = d }
}
