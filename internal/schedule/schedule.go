// Package schedule provides the self-rescheduling daily timer behind the
// automatic send. The timer fires once per day at a fixed wall-clock time,
// runs its callback, and immediately arms itself for the next day; there is
// no cancellation of an armed timer beyond stopping the whole loop, and a
// fired callback is expected to re-validate its work against the store.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NextRun returns the next occurrence of hour:minute strictly after now, in
// now's location. A wall-clock time already passed today rolls to tomorrow.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Daily runs a callback once per day at a fixed local time.
type Daily struct {
	// Hour and Minute are the local wall-clock firing time.
	Hour   int
	Minute int

	// Run is invoked on every firing.
	Run func(ctx context.Context)

	Log zerolog.Logger

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time

	mu    sync.Mutex
	timer *time.Timer
}

// Start arms the timer for the next occurrence. Calling Start on a running
// Daily re-arms it.
func (d *Daily) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.arm(ctx)
}

// Stop disarms the timer. A callback already executing finishes; it will not
// re-arm after Stop.
func (d *Daily) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Daily) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// arm schedules the next firing; the callee must hold d.mu.
func (d *Daily) arm(ctx context.Context) {
	if d.timer != nil {
		d.timer.Stop()
	}
	next := NextRun(d.now(), d.Hour, d.Minute)
	wait := next.Sub(d.now())
	d.Log.Info().Time("next", next).Msg("daily send scheduled")

	d.timer = time.AfterFunc(wait, func() {
		if ctx.Err() != nil {
			return
		}
		d.Run(ctx)

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.timer == nil { // stopped while running
			return
		}
		d.arm(ctx)
	})
}
