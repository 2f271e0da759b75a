package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "puasapush/pkg/logx"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{Enabled: true, Timezone: "Asia/Kuala_Lumpur"}, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestSkipWhileRunning(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var runs atomic.Int32
	if _, err := s.AddCron("checkin", "*/10 * * * *", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		entered <- struct{}{}
		<-release
		return nil
	}); err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	def := s.defs[0]
	go s.fire(def)
	<-entered

	// A second tick while the first is in flight is dropped.
	s.fire(def)
	if ran, _ := s.RunNow(context.Background(), "checkin"); ran {
		t.Fatal("RunNow must not overlap a running job")
	}
	close(release)

	deadline := time.After(time.Second)
	for {
		snap := s.Snapshot()
		if !snap.Schedules[0].Running {
			if runs.Load() != 1 || snap.Schedules[0].Skipped != 2 || snap.Schedules[0].Runs != 1 {
				t.Fatalf("runs=%d info=%+v", runs.Load(), snap.Schedules[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("job did not finish")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPanicAndErrorAreContained(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	_, _ = s.AddCron("boom", "@every 1h", 0, func(context.Context) error { panic("kaboom") })
	_, _ = s.AddCron("fail", "@every 1h", 0, func(context.Context) error { return errors.New("store unavailable") })
	var okRuns atomic.Int32
	_, _ = s.AddCron("ok", "@every 1h", 0, func(context.Context) error { okRuns.Add(1); return nil })

	ran, err := s.RunNow(context.Background(), "boom")
	if !ran || err == nil {
		t.Fatalf("RunNow(boom) = %v, %v", ran, err)
	}
	if ran, err := s.RunNow(context.Background(), "fail"); !ran || err == nil {
		t.Fatalf("RunNow(fail) = %v, %v", ran, err)
	}
	// The panicking schedule is released and can run again.
	if ran, _ := s.RunNow(context.Background(), "boom"); !ran {
		t.Fatal("panicking job should not stay marked running")
	}
	if ran, err := s.RunNow(context.Background(), "ok"); !ran || err != nil || okRuns.Load() != 1 {
		t.Fatalf("RunNow(ok) = %v, %v (runs=%d)", ran, err, okRuns.Load())
	}

	hist := s.Snapshot().History
	if len(hist) != 4 || hist[0].Error == "" || hist[3].Error != "" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestJobTimeout(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	_, _ = s.AddCron("slow", "@every 1h", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if _, err := s.RunNow(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestStartReportsNextRunInZone(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	if _, err := s.AddSchedule("tick", "*/10 * * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if !s.NextRun("tick").IsZero() {
		t.Fatal("no next run before Start")
	}
	s.Start(context.Background())

	next := s.NextRun("tick")
	if next.IsZero() {
		t.Fatal("expected next run after Start")
	}
	if next.Minute()%10 != 0 || next.Second() != 0 {
		t.Fatalf("next = %v, want a 10-minute boundary", next)
	}
	if got := next.Location().String(); got != "Asia/Kuala_Lumpur" {
		t.Fatalf("location = %s", got)
	}
	if snap := s.Snapshot(); !snap.Started || snap.Timezone != "Asia/Kuala_Lumpur" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAddCronReplacesByName(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	_, _ = s.AddCron("job", "@every 1h", 0, func(context.Context) error { return nil })
	_, _ = s.AddCron("job", "@every 2h", 0, func(context.Context) error { return nil })
	if n := len(s.Snapshot().Schedules); n != 1 {
		t.Fatalf("schedules = %d, want 1", n)
	}
	if _, err := s.AddCron("bad", "61 * * * *", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if !s.Remove("job") || s.Remove("job") {
		t.Fatal("Remove should report true then false")
	}
}

func TestRunNowUsesCallerContext(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	_, _ = s.AddCron("wait", "@every 1h", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := s.RunNow(ctx, "wait"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Fatalf("caller deadline ignored: took %v", took)
	}
}
