package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	unlock, err := l.TryLock(ctx, "task:reminders", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryLock(ctx, "task:reminders", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second TryLock = %v, want ErrLockHeld", err)
	}
	if _, err := l.TryLock(ctx, "task:retention", time.Minute); err != nil {
		t.Fatalf("other key blocked: %v", err)
	}

	if err := unlock(ctx); err != nil {
		t.Fatal(err)
	}
	relock, err := l.TryLock(ctx, "task:reminders", time.Minute)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}

	// An expired lease can be taken over, and the stale holder's release
	// must not drop the new owner's lease.
	now = now.Add(2 * time.Minute)
	if _, err := l.TryLock(ctx, "task:reminders", time.Minute); err != nil {
		t.Fatalf("TryLock after expiry: %v", err)
	}
	_ = relock(ctx)
	if _, err := l.TryLock(ctx, "task:reminders", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("stale release freed the new lease: %v", err)
	}
}

func TestRegister(t *testing.T) {
	s := New(nil, 0, nil)
	noop := func(context.Context) error { return nil }

	if err := s.Register(Task{Name: "retention", Spec: "0 2 * * *", Run: noop}); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(Task{Name: "recurrence", Run: noop}); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(Task{Name: "retention", Spec: "@hourly", Run: noop}); err == nil {
		t.Error("duplicate task accepted")
	}
	if err := s.Register(Task{Name: "broken", Spec: "every tuesday", Run: noop}); err == nil {
		t.Error("invalid schedule accepted")
	}
	if err := s.Register(Task{Name: "", Run: noop}); err == nil {
		t.Error("unnamed task accepted")
	}

	got := s.Tasks()
	if len(got) != 2 || got[0] != "recurrence" || got[1] != "retention" {
		t.Fatalf("Tasks = %v", got)
	}
}

func TestRunNow(t *testing.T) {
	s := New(nil, time.Minute, nil)
	var runs int32
	failing := errors.New("store down")
	_ = s.Register(Task{Name: "ok", Run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}})
	_ = s.Register(Task{Name: "fails", Run: func(context.Context) error { return failing }})

	ctx := context.Background()
	if err := s.RunNow(ctx, "ok"); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(ctx, "ok"); err != nil {
		t.Fatalf("lock not released after run: %v", err)
	}
	if atomic.LoadInt32(&runs) != 2 {
		t.Fatalf("runs = %d", runs)
	}
	if err := s.RunNow(ctx, "fails"); !errors.Is(err, failing) {
		t.Fatalf("RunNow(fails) = %v", err)
	}
	if err := s.RunNow(ctx, "missing"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("RunNow(missing) = %v", err)
	}
}

func TestRunNowSkipsWhileHeld(t *testing.T) {
	locker := NewLocalLocker()
	s := New(locker, time.Minute, nil)
	_ = s.Register(Task{Name: "reminders", Run: func(context.Context) error { return nil }})

	unlock, err := locker.TryLock(context.Background(), "task:reminders", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock(context.Background())

	if err := s.RunNow(context.Background(), "reminders"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("RunNow while held = %v, want ErrLockHeld", err)
	}
}

func TestStopWaitsForRunningTask(t *testing.T) {
	s := New(nil, time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished int32
	_ = s.Register(Task{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		atomic.StoreInt32(&finished, 1)
		return nil
	}})
	s.Start()

	go func() { _ = s.RunNow(context.Background(), "slow") }()
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a task was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-stopped; err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Fatal("task did not finish before Stop returned")
	}

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrStopped) {
		t.Fatalf("RunNow after Stop = %v, want ErrStopped", err)
	}
}

func TestStopTimeoutCancelsTask(t *testing.T) {
	s := New(nil, time.Minute, nil)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	_ = s.Register(Task{Name: "stuck", Spec: "@every 1s", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}})
	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop = %v, want DeadlineExceeded", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
}

func TestRunTimeout(t *testing.T) {
	tests := []struct {
		name       string
		lockTTL    time.Duration
		runTimeout time.Duration
		want       time.Duration
	}{
		{"explicit timeout", time.Minute, 30 * time.Millisecond, 30 * time.Millisecond},
		{"zero falls back to lock TTL", 40 * time.Millisecond, 0, 40 * time.Millisecond},
		{"capped at lock TTL", 40 * time.Millisecond, time.Hour, 40 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, tt.lockTTL, nil)
			s.RunTimeout = tt.runTimeout
			var budget time.Duration
			_ = s.Register(Task{Name: "stuck", Run: func(ctx context.Context) error {
				deadline, ok := ctx.Deadline()
				if !ok {
					return errors.New("run context has no deadline")
				}
				budget = time.Until(deadline)
				<-ctx.Done()
				return ctx.Err()
			}})

			done := make(chan error, 1)
			go func() { done <- s.RunNow(context.Background(), "stuck") }()
			select {
			case err := <-done:
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Fatalf("RunNow = %v, want DeadlineExceeded", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("task run was not bounded")
			}
			if budget <= 0 || budget > tt.want {
				t.Errorf("run budget = %s, want at most %s", budget, tt.want)
			}
		})
	}
}
