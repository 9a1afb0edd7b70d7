// Package scheduler runs a job once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job is invoked at each occurrence with the scheduled time.
type Job func(ctx context.Context, at time.Time) error

// Daily fires every day at Hour:Minute in Location.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location

	logger *zap.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// ParseDaily reads "HH:MM". An empty or "Local" timezone means time.Local.
func ParseDaily(at, timezone string, logger *zap.Logger) (*Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("schedule time %q: want HH:MM", at)
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daily{
		Hour:     t.Hour(),
		Minute:   t.Minute(),
		Location: loc,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next returns the first occurrence strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, d.Location)
	}
	return next
}

// Run blocks until ctx is done, calling job at every occurrence. Runs are
// sequential; a slow job delays the next one rather than overlapping it. Job
// errors are logged and do not stop the schedule.
func (d *Daily) Run(ctx context.Context, job Job) error {
	for {
		next := d.Next(d.now())
		wait := next.Sub(d.now())
		d.logger.Info("next scheduled run", zap.Time("at", next), zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(wait):
		}

		if err := job(ctx, next); err != nil {
			d.logger.Error("scheduled job failed", zap.Time("at", next), zap.Error(err))
			continue
		}
		d.logger.Info("scheduled job finished", zap.Time("at", next))
	}
}
