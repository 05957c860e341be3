package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type stubExpirer struct {
	expired int64
	err     error
	calls   atomic.Int64
}

func (s *stubExpirer) ExpireDue(_ context.Context, _ time.Time) (int64, error) {
	s.calls.Add(1)
	return s.expired, s.err
}

type stubPruner struct {
	calls      int
	lastCutoff time.Time
}

func (s *stubPruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	s.lastCutoff = cutoff
	return 3, nil
}

func TestNewExpiryJobDefaults(t *testing.T) {
	j := NewExpiryJob(jobTracer, &stubExpirer{}, nil, 0)
	if j.sweepInterval != 30*time.Second {
		t.Fatalf("expected 30s default sweep, got %v", j.sweepInterval)
	}
	if j.scoreRetention != 7*24*time.Hour {
		t.Fatalf("expected 7d score retention, got %v", j.scoreRetention)
	}
}

func TestExpiryJobSweepsAndPrunes(t *testing.T) {
	expirer := &stubExpirer{expired: 2}
	pruner := &stubPruner{}
	j := NewExpiryJob(jobTracer, expirer, pruner, time.Minute)

	j.runOnce(context.Background())

	if expirer.calls.Load() != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.calls.Load())
	}
	if pruner.calls != 1 {
		t.Fatalf("expected first run to prune, got %d", pruner.calls)
	}
	wantCutoff := time.Now().Add(-7 * 24 * time.Hour)
	if pruner.lastCutoff.Before(wantCutoff.Add(-time.Minute)) || pruner.lastCutoff.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("expected cutoff about 7d back, got %v", pruner.lastCutoff)
	}
}

func TestExpiryJobPrunesHourlyNotEverySweep(t *testing.T) {
	expirer := &stubExpirer{}
	pruner := &stubPruner{}
	j := NewExpiryJob(jobTracer, expirer, pruner, time.Minute)

	j.runOnce(context.Background())
	j.runOnce(context.Background())

	if expirer.calls.Load() != 2 {
		t.Fatalf("expected every run to sweep, got %d", expirer.calls.Load())
	}
	if pruner.calls != 1 {
		t.Fatalf("expected prune to wait an hour, got %d", pruner.calls)
	}
}

func TestExpiryJobToleratesMissingPruner(t *testing.T) {
	expirer := &stubExpirer{}
	j := NewExpiryJob(jobTracer, expirer, nil, time.Minute)

	j.runOnce(context.Background())
	if expirer.calls.Load() != 1 {
		t.Fatalf("expected sweep without pruner, got %d", expirer.calls.Load())
	}
}

func TestExpiryJobStartLoops(t *testing.T) {
	t.Parallel()

	expirer := &stubExpirer{}
	j := NewExpiryJob(jobTracer, expirer, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	waitFor(t, func() bool { return expirer.calls.Load() > 0 })
	cancel()
}
