package watch

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Trigger reasons.
const (
	ReasonThreshold = "threshold"
	ReasonIdle      = "idle"
)

// Trigger describes one regeneration request.
type Trigger struct {
	// Changes is the number of store mutations since the last trigger.
	Changes int
	// Reason is ReasonThreshold or ReasonIdle.
	Reason string
}

// Regenerator is notified when enough changes have accumulated or the
// project has been idle long enough.
type Regenerator interface {
	Regenerate(ctx context.Context, t Trigger) error
}

// RegeneratorFunc adapts a function to Regenerator.
type RegeneratorFunc func(ctx context.Context, t Trigger) error

// Regenerate calls f.
func (f RegeneratorFunc) Regenerate(ctx context.Context, t Trigger) error {
	return f(ctx, t)
}

// Debouncer counts change notices and fires a regeneration either when the
// count reaches the threshold or when no notice has arrived for the idle
// delay. Notices cross into the debouncer goroutine over a channel.
type Debouncer struct {
	threshold int
	idle      time.Duration
	regen     Regenerator
	logger    *slog.Logger
	notices   chan struct{}
}

// NewDebouncer returns a Debouncer. A nil regen only logs triggers.
func NewDebouncer(threshold int, idle time.Duration, regen Regenerator, logger *slog.Logger) *Debouncer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if idle <= 0 {
		idle = DefaultIdleDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Debouncer{
		threshold: threshold,
		idle:      idle,
		regen:     regen,
		logger:    logger,
		notices:   make(chan struct{}, 64),
	}
}

// Notify records one change. It blocks only while the queue is full and
// returns early when ctx is done.
func (d *Debouncer) Notify(ctx context.Context) {
	select {
	case d.notices <- struct{}{}:
	case <-ctx.Done():
	}
}

// Run processes notices until ctx is done. Pending changes are dropped on
// return and the idle timer is stopped.
func (d *Debouncer) Run(ctx context.Context) error {
	var (
		pending int
		timer   *time.Timer
		timeout <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timeout = nil
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			if pending > 0 {
				d.logger.Debug("watch.debounce_dropped", "changes", pending)
			}
			return nil

		case <-d.notices:
			pending++
			if pending >= d.threshold {
				stopTimer()
				d.fire(ctx, Trigger{Changes: pending, Reason: ReasonThreshold})
				pending = 0
				continue
			}
			if timer == nil {
				timer = time.NewTimer(d.idle)
			} else {
				timer.Reset(d.idle)
			}
			timeout = timer.C

		case <-timeout:
			timeout = nil
			if pending > 0 {
				d.fire(ctx, Trigger{Changes: pending, Reason: ReasonIdle})
				pending = 0
			}
		}
	}
}

func (d *Debouncer) fire(ctx context.Context, t Trigger) {
	d.logger.Info("watch.regenerate", "reason", t.Reason, "changes", t.Changes)
	if d.regen == nil {
		return
	}
	if err := d.regen.Regenerate(ctx, t); err != nil {
		d.logger.Error("watch.regenerate_failed", "reason", t.Reason, "error", err)
	}
}
