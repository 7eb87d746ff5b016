// File: internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/checkin"
	"github.com/forumsign/forumsign/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances virtual time by the requested amount on every After
// call, so the polling loop runs at full speed through simulated days.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// fakeRunner records the virtual time of every fire and can stop the loop
// after a fire budget is spent.
type fakeRunner struct {
	clock  *fakeClock
	fires  []time.Time
	budget int
	cancel context.CancelFunc
	err    error
}

func (r *fakeRunner) Run(ctx context.Context) (checkin.Outcome, error) {
	r.fires = append(r.fires, r.clock.Now())
	if len(r.fires) >= r.budget && r.cancel != nil {
		r.cancel()
	}
	if r.err != nil {
		return checkin.Outcome{}, r.err
	}
	return checkin.Outcome{AttemptID: "a", Succeeded: true, ConfidenceBasis: "explicit-signal"}, nil
}

// fakeReporter counts reported outcomes.
type fakeReporter struct {
	outs []checkin.Outcome
}

func (r *fakeReporter) Report(out checkin.Outcome) {
	r.outs = append(r.outs, out)
}

// memFireLog is an in-memory FireLog.
type memFireLog struct {
	days map[string]bool
}

func newMemFireLog() *memFireLog { return &memFireLog{days: make(map[string]bool)} }

func (l *memFireLog) FiredOn(day time.Time) (bool, error) {
	return l.days[day.Format("2006-01-02")], nil
}

func (l *memFireLog) RecordFire(day time.Time) error {
	l.days[day.Format("2006-01-02")] = true
	return nil
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return parsed
}

func tod(t *testing.T, value string) config.TimeOfDay {
	t.Helper()
	parsed, err := config.ParseTimeOfDay(value)
	require.NoError(t, err)
	return parsed
}

func TestArmRejectsDisabledEntry(t *testing.T) {
	s := New(nil, nil, nil, newFakeClock(ts(t, "2026-08-24 07:00")), time.Minute, zap.NewNop())
	err := s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: false})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, Idle, s.State())
}

func TestArmComputesNextFire(t *testing.T) {
	t.Run("today when the trigger is still ahead", func(t *testing.T) {
		clock := newFakeClock(ts(t, "2026-08-24 07:00"))
		s := New(nil, nil, nil, clock, time.Minute, zap.NewNop())
		require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))
		assert.Equal(t, ts(t, "2026-08-24 08:30"), s.NextFire())
		assert.Equal(t, Armed, s.State())
	})

	t.Run("tomorrow when the trigger already passed", func(t *testing.T) {
		clock := newFakeClock(ts(t, "2026-08-24 09:00"))
		s := New(nil, nil, nil, clock, time.Minute, zap.NewNop())
		require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))
		assert.Equal(t, ts(t, "2026-08-25 08:30"), s.NextFire())
	})

	t.Run("tomorrow when today already fired before a restart", func(t *testing.T) {
		clock := newFakeClock(ts(t, "2026-08-24 07:00"))
		log := newMemFireLog()
		require.NoError(t, log.RecordFire(ts(t, "2026-08-24 03:00")))

		s := New(nil, nil, log, clock, time.Minute, zap.NewNop())
		require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))
		assert.Equal(t, ts(t, "2026-08-25 08:30"), s.NextFire())
	})
}

func TestRunRequiresArming(t *testing.T) {
	s := New(nil, nil, nil, newFakeClock(ts(t, "2026-08-24 07:00")), time.Minute, zap.NewNop())
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not armed")
}

func TestRunFiresOncePerDay(t *testing.T) {
	clock := newFakeClock(ts(t, "2026-08-24 08:00"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{clock: clock, budget: 3, cancel: cancel}
	reporter := &fakeReporter{}

	s := New(runner, reporter, newMemFireLog(), clock, time.Minute, zap.NewNop())
	require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Three simulated days, three fires, each reported once.
	require.Len(t, runner.fires, 3)
	require.Len(t, reporter.outs, 3)

	for i, fired := range runner.fires {
		// Each fire lands at the configured time, within one poll interval.
		due := ts(t, "2026-08-24 08:30").AddDate(0, 0, i)
		assert.WithinDuration(t, due, fired, time.Minute, "fire %d", i)
		// No two fires within any 23-hour window.
		if i > 0 {
			assert.GreaterOrEqual(t, fired.Sub(runner.fires[i-1]), 23*time.Hour)
		}
	}
	assert.Equal(t, Armed, s.State())
}

func TestRunSkipsDayAlreadyFired(t *testing.T) {
	clock := newFakeClock(ts(t, "2026-08-24 08:29"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := newMemFireLog()
	require.NoError(t, log.RecordFire(ts(t, "2026-08-24 08:00")))

	runner := &fakeRunner{clock: clock, budget: 1, cancel: cancel}
	reporter := &fakeReporter{}

	s := New(runner, reporter, log, clock, time.Minute, zap.NewNop())
	require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The single fire happened on the 25th; the pre-fired 24th was skipped.
	require.Len(t, runner.fires, 1)
	assert.Equal(t, "2026-08-25", runner.fires[0].Format("2006-01-02"))
}

func TestRunConfigurationErrorIsNotReported(t *testing.T) {
	clock := newFakeClock(ts(t, "2026-08-24 08:00"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{
		clock:  clock,
		budget: 2,
		cancel: cancel,
		err:    errors.New("login.username is not configured"),
	}
	reporter := &fakeReporter{}

	s := New(runner, reporter, newMemFireLog(), clock, time.Minute, zap.NewNop())
	require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The loop survived both failures and never reported: no attempt ran.
	assert.Len(t, runner.fires, 2)
	assert.Empty(t, reporter.outs)
}

// interruptedRunner cancels the loop's context mid-attempt, the way a
// SIGINT would, and records whether its own context was aborted by that.
type interruptedRunner struct {
	cancel   context.CancelFunc
	aborted  bool
	finished bool
}

func (r *interruptedRunner) Run(ctx context.Context) (checkin.Outcome, error) {
	r.cancel()
	if ctx.Err() != nil {
		r.aborted = true
	}
	r.finished = true
	return checkin.Outcome{AttemptID: "a", Succeeded: true, ConfidenceBasis: "explicit-signal"}, nil
}

func TestRunInFlightAttemptSurvivesCancellation(t *testing.T) {
	clock := newFakeClock(ts(t, "2026-08-24 08:29"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &interruptedRunner{cancel: cancel}
	reporter := &fakeReporter{}

	s := New(runner, reporter, newMemFireLog(), clock, time.Minute, zap.NewNop())
	require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The attempt ran to completion under its own context even though the
	// loop was cancelled while it was in flight, and its outcome was still
	// reported; the loop then exited at the next tick.
	assert.True(t, runner.finished)
	assert.False(t, runner.aborted)
	require.Len(t, reporter.outs, 1)
	assert.True(t, reporter.outs[0].Succeeded)
}

func TestRunStopsBetweenTicks(t *testing.T) {
	clock := newFakeClock(ts(t, "2026-08-24 07:00"))
	ctx, cancel := context.WithCancel(context.Background())

	runner := &fakeRunner{clock: clock}
	s := New(runner, &fakeReporter{}, newMemFireLog(), clock, time.Minute, zap.NewNop())
	require.NoError(t, s.Arm(Entry{TimeOfDay: tod(t, "08:30"), Enabled: true}))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler loop did not observe cancellation")
	}
}
