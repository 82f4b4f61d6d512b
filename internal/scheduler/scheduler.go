package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidInterval is returned by New for a non-positive interval.
var ErrInvalidInterval = errors.New("scheduler interval must be positive")

// RefreshFunc is invoked on every aligned interval with the slot it covers.
type RefreshFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// Immediate runs one refresh before waiting for the first slot.
	Immediate bool
}

// Scheduler drives periodic refreshes of the record store.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}, nil
}

// Run blocks, invoking refresh at each interval until ctx is cancelled.
// Refresh errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, refresh RefreshFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.Immediate {
		s.execute(ctx, refresh, s.slotStart(s.now().UTC()))
	}

	next := s.nextTick(s.now().UTC())
	for {
		if delay := next.Sub(s.now()); delay < 0 {
			next = s.nextTick(s.now().UTC())
		}

		s.logger.Debug().Time("next_slot", next).Msg("waiting for next refresh")
		if err := sleep(ctx, next.Sub(s.now())); err != nil {
			return err
		}

		s.execute(ctx, refresh, s.slotStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, refresh RefreshFunc, slot time.Time) {
	s.logger.Info().Time("slot", slot).Msg("refreshing")
	if err := refresh(ctx, slot); err != nil {
		s.logger.Error().Err(err).Time("slot", slot).Msg("refresh failed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func (s *Scheduler) slotStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
