// Package scheduler restores key budgets once a day at a fixed UTC wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Resetter restores every budget to its full quota.
type Resetter interface {
	Reset()
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Reset triggers Resetter.Reset every day at hour:minute UTC.
// The delay is recomputed from the wall clock each cycle, so timer drift never accumulates.
type Reset struct {
	target Resetter
	hour   int
	minute int
	clock  Clock
	logger *zap.Logger

	mu      sync.RWMutex
	nextRun time.Time
	onReset func(time.Time)
}

// New creates a daily reset scheduler anchored at hour:minute UTC.
func New(target Resetter, hour, minute int, logger *zap.Logger) (*Reset, error) {
	if target == nil {
		return nil, fmt.Errorf("scheduler: reset target is required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("scheduler: invalid reset time %02d:%02d", hour, minute)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Reset{
		target: target,
		hour:   hour,
		minute: minute,
		clock:  time.Now,
		logger: logger,
	}
	s.nextRun = s.nextAnchor(s.clock())
	return s, nil
}

// WithClock replaces the time source.
func (s *Reset) WithClock(c Clock) *Reset {
	s.clock = c
	s.mu.Lock()
	s.nextRun = s.nextAnchor(c())
	s.mu.Unlock()
	return s
}

// OnReset registers a hook invoked after every reset with the time it ran.
func (s *Reset) OnReset(fn func(time.Time)) *Reset {
	s.onReset = fn
	return s
}

// NextDelay returns how long to wait from now until the next anchor.
// An anchor equal to now counts as passed and yields a full day.
func (s *Reset) NextDelay(now time.Time) time.Duration {
	return s.nextAnchor(now).Sub(now)
}

// NextRun returns the instant of the next scheduled reset.
func (s *Reset) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRun
}

func (s *Reset) nextAnchor(now time.Time) time.Time {
	now = now.UTC()
	anchor := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !anchor.After(now) {
		anchor = anchor.Add(24 * time.Hour)
	}
	return anchor
}

// Run blocks, resetting budgets at every anchor until ctx is done.
func (s *Reset) Run(ctx context.Context) {
	var fired time.Time
	for {
		now := s.clock()
		// A timer may fire a hair before the wall clock reaches the anchor.
		if now.Before(fired) {
			now = fired
		}
		delay := s.NextDelay(now)

		s.mu.Lock()
		s.nextRun = now.Add(delay).UTC()
		s.mu.Unlock()

		s.logger.Info("Next quota reset scheduled",
			zap.Time("at", s.NextRun()),
			zap.Duration("in", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Quota reset scheduler stopped")
			return
		case <-timer.C:
		}
		fired = now.Add(delay)

		s.target.Reset()
		ranAt := s.clock()
		s.logger.Info("Quota reset", zap.Time("at", ranAt))
		if s.onReset != nil {
			s.onReset(ranAt)
		}
	}
}
