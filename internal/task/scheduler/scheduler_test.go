package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "workflow/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 15m", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "15m", kind: SpecInterval, source: "duration", duration: 15 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix hhmm", raw: "every:00:30", kind: SpecInterval, source: "hhmm", duration: 30 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			if tt.kind == SpecInterval {
				assert.Equal(t, tt.duration, got.Every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "-5m", "00:00", "01:75", "cron:"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }

	require.ErrorIs(t, s.Add("", "1m", 0, noop), ErrNoName)
	require.Error(t, s.Add("poll", "1m", 0, nil))
	require.Error(t, s.Add("poll", "61 * * * *", 0, noop))
	require.ErrorIs(t, s.RunNow("missing"), ErrNotFound)
}

func TestRunNowRecordsStats(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var calls atomic.Int32
	require.NoError(t, s.Add("poll", "15m", time.Second, func(ctx context.Context) error {
		if calls.Add(1) == 2 {
			return errors.New("upstream down")
		}
		return nil
	}))

	require.NoError(t, s.RunNow("poll"))
	require.Eventually(t, func() bool { return s.Snapshot().Schedules[0].Runs == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.RunNow("poll"))
	require.Eventually(t, func() bool { return s.Snapshot().Schedules[0].Runs == 2 }, time.Second, 5*time.Millisecond)

	info := s.Snapshot().Schedules[0]
	assert.Equal(t, "poll", info.Name)
	assert.Equal(t, "@every 15m0s", info.Spec)
	assert.Equal(t, uint64(1), info.Failures)
	assert.Equal(t, "upstream down", info.LastError)
	assert.False(t, info.Prev.IsZero())
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	s := New(Config{}, logx.Nop())
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add("drain", "1m", 0, func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}))

	require.NoError(t, s.RunNow("drain"))
	<-started
	require.NoError(t, s.RunNow("drain"))
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return s.Snapshot().Schedules[0].Runs == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPanicIsRecovered(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var after atomic.Bool
	require.NoError(t, s.Add("boom", "1m", 0, func(ctx context.Context) error {
		if !after.Load() {
			after.Store(true)
			panic("kaboom")
		}
		return nil
	}))

	require.NoError(t, s.RunNow("boom"))
	require.Eventually(t, after.Load, time.Second, 5*time.Millisecond)
	// the guard must be released after a panic
	require.Eventually(t, func() bool {
		_ = s.RunNow("boom")
		return s.Snapshot().Schedules[0].Runs >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestJobTimeoutAndStop(t *testing.T) {
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	gotErr := make(chan error, 1)
	require.NoError(t, s.Add("slow", "1h", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		gotErr <- ctx.Err()
		return ctx.Err()
	}))
	s.Start(context.Background())

	snap := s.Snapshot()
	require.True(t, snap.Running)
	assert.Equal(t, "UTC", snap.Timezone)
	assert.False(t, snap.Schedules[0].Next.IsZero())

	require.NoError(t, s.RunNow("slow"))
	select {
	case err := <-gotErr:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job did not time out")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.False(t, s.Snapshot().Running)

	// runs after Stop are dropped
	require.NoError(t, s.RunNow("slow"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), s.Snapshot().Schedules[0].Runs)
}

func TestRemoveAndReplace(t *testing.T) {
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add("poll", "15m", 0, noop))
	require.NoError(t, s.Add("poll", "*/5 * * * *", 0, noop))
	require.Len(t, s.Snapshot().Schedules, 1)
	assert.Equal(t, "*/5 * * * *", s.Snapshot().Schedules[0].Spec)

	assert.True(t, s.Remove("poll"))
	assert.False(t, s.Remove("poll"))
	assert.Empty(t, s.Snapshot().Schedules)
}
