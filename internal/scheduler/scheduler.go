// File: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/checkin"
	"github.com/forumsign/forumsign/internal/config"
)

// State is the scheduler's lifecycle position.
type State int

const (
	// Idle means no entry is armed.
	Idle State = iota
	// Armed means a next fire time is computed and pending.
	Armed
	// Firing means an attempt is currently running; the loop is blocked on
	// it and no second attempt can start.
	Firing
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrDisabled is returned by Arm for an entry whose Enabled flag is off.
var ErrDisabled = errors.New("schedule entry is disabled")

// Entry is the single supported daily trigger. Re-arming replaces it.
type Entry struct {
	TimeOfDay config.TimeOfDay
	Enabled   bool
}

// Runner executes one check-in attempt. Implemented by checkin.Controller.
type Runner interface {
	Run(ctx context.Context) (checkin.Outcome, error)
}

// Reporter forwards an attempt outcome. Implemented by report.Reporter.
type Reporter interface {
	Report(out checkin.Outcome)
}

// FireLog remembers which calendar days already fired, so a restart near the
// trigger time cannot produce a second attempt on the same day. Implemented
// by the history store.
type FireLog interface {
	FiredOn(day time.Time) (bool, error)
	RecordFire(day time.Time) error
}

// nopFireLog keeps no memory; every day looks unfired.
type nopFireLog struct{}

func (nopFireLog) FiredOn(time.Time) (bool, error) { return false, nil }
func (nopFireLog) RecordFire(time.Time) error      { return nil }

// Scheduler runs the daily polling loop. Attempts execute synchronously in
// the loop goroutine, so they never overlap; cancellation is observed only
// between ticks, never mid-attempt.
type Scheduler struct {
	runner   Runner
	reporter Reporter
	fireLog  FireLog
	clock    Clock
	logger   *zap.Logger

	pollInterval time.Duration

	state    State
	entry    Entry
	nextFire time.Time
}

// New builds a scheduler in the Idle state. fireLog may be nil, in which
// case the once-per-day guarantee only holds within one process lifetime.
func New(runner Runner, reporter Reporter, fireLog FireLog, clock Clock, pollInterval time.Duration, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if fireLog == nil {
		fireLog = nopFireLog{}
	}
	return &Scheduler{
		runner:       runner,
		reporter:     reporter,
		fireLog:      fireLog,
		clock:        clock,
		logger:       logger.Named("scheduler"),
		pollInterval: pollInterval,
		state:        Idle,
	}
}

// State reports the scheduler's current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// NextFire reports the pending fire time; zero when Idle.
func (s *Scheduler) NextFire() time.Time { return s.nextFire }

// Arm installs the entry and computes the next fire time: today at the
// configured time if that is still ahead (and today has not fired already),
// otherwise tomorrow. Disabled entries are rejected.
func (s *Scheduler) Arm(entry Entry) error {
	if !entry.Enabled {
		return ErrDisabled
	}

	now := s.clock.Now()
	next := nextDaily(entry.TimeOfDay, now)

	// Restart protection: if today already fired, the next occurrence is
	// tomorrow even when the configured time is still ahead of us.
	if sameDay(next, now) {
		fired, err := s.fireLog.FiredOn(now)
		if err != nil {
			s.logger.Warn("Could not read fire history, assuming unfired", zap.Error(err))
		} else if fired {
			next = next.Add(24 * time.Hour)
		}
	}

	s.entry = entry
	s.nextFire = next
	s.state = Armed
	s.logger.Info("Scheduler armed",
		zap.String("signTime", entry.TimeOfDay.String()),
		zap.Time("nextFire", next),
	)
	return nil
}

// Run blocks in the polling loop until ctx is cancelled. Each tick compares
// the clock against the pending fire time; when due, the attempt runs
// synchronously, the outcome is reported, the fire day is recorded, and the
// next occurrence is computed. An attempt's failure never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.state == Idle {
		return fmt.Errorf("scheduler is not armed")
	}
	s.logger.Info("Scheduler loop started", zap.Duration("pollInterval", s.pollInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler loop stopped")
			return ctx.Err()
		case <-s.clock.After(s.pollInterval):
		}

		now := s.clock.Now()
		if now.Before(s.nextFire) {
			continue
		}
		s.fire(ctx, now)
	}
}

// fire runs one scheduled attempt and re-arms for the following day.
func (s *Scheduler) fire(ctx context.Context, now time.Time) {
	fired, err := s.fireLog.FiredOn(now)
	if err != nil {
		s.logger.Warn("Could not read fire history, assuming unfired", zap.Error(err))
	}
	if fired {
		s.logger.Info("Already fired today, rescheduling", zap.Time("day", now))
		s.rearm(now)
		return
	}

	s.state = Firing
	s.logger.Info("Scheduled check-in firing", zap.Time("due", s.nextFire))

	// Cancellation is only observed between ticks: an in-flight attempt
	// runs to completion under its own internal timeouts, so the attempt
	// context is detached from the loop's.
	out, err := s.runner.Run(context.WithoutCancel(ctx))
	if err != nil {
		// Configuration errors mean no attempt was made; nothing to report.
		s.logger.Error("Scheduled check-in skipped", zap.Error(err))
	} else {
		s.reporter.Report(out)
	}

	if err := s.fireLog.RecordFire(now); err != nil {
		s.logger.Warn("Could not record fire day", zap.Error(err))
	}
	s.rearm(now)
}

// rearm computes the next occurrence strictly after today's trigger.
func (s *Scheduler) rearm(now time.Time) {
	next := nextDaily(s.entry.TimeOfDay, now)
	if !next.After(now) || sameDay(next, now) {
		next = at(s.entry.TimeOfDay, now).Add(24 * time.Hour)
	}
	s.nextFire = next
	s.state = Armed
	s.logger.Info("Scheduler re-armed", zap.Time("nextFire", next))
}

// nextDaily is today at tod if that is still ahead of now, else tomorrow.
func nextDaily(tod config.TimeOfDay, now time.Time) time.Time {
	candidate := at(tod, now)
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

// at anchors tod on now's calendar day.
func at(tod config.TimeOfDay, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
}

// sameDay reports whether a and b fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
