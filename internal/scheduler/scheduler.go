// Package scheduler runs the periodic background tasks on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sharath018/calendar-backend/internal/metrics"
)

const DefaultLockTTL = 10 * time.Minute

var (
	ErrStopped     = errors.New("scheduler: stopped")
	ErrUnknownTask = errors.New("scheduler: unknown task")
)

// Task is one named periodic job. An empty Spec registers the task for
// RunNow only.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	// RunTimeout bounds a single task run. Zero means the lock TTL, so a
	// run never outlives the lock that admitted it.
	RunTimeout time.Duration

	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	tasks    map[string]Task
	stopping bool
	inflight sync.WaitGroup

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New builds a scheduler. A nil locker means process-local locking.
func New(locker Locker, lockTTL time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	cl := cronLogger{logger: logger.With("component", "cron")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		locker:    locker,
		lockTTL:   lockTTL,
		logger:    logger,
		tasks:     make(map[string]Task),
		runCtx:    ctx,
		cancelRun: cancel,
	}
}

func (s *Scheduler) Register(t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("scheduler: task needs a name and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[t.Name]; dup {
		return fmt.Errorf("scheduler: task %q already registered", t.Name)
	}
	if t.Spec != "" {
		if _, err := s.cron.AddFunc(t.Spec, func() { _ = s.execute(s.runCtx, t) }); err != nil {
			return fmt.Errorf("scheduler: task %q: invalid schedule %q: %w", t.Name, t.Spec, err)
		}
	}
	s.tasks[t.Name] = t
	s.logger.Info("task registered", "task", t.Name, "schedule", t.Spec)
	return nil
}

// Tasks lists the registered task names in order.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "tasks", len(s.Tasks()))
}

// Stop declines new runs and waits for in-flight ones. When ctx expires
// first the running tasks are cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelRun()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancelRun()
		s.logger.Warn("scheduler stop timed out, cancelled running tasks")
		return ctx.Err()
	}
}

// RunNow runs a task synchronously under the same lock as scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.execute(ctx, t)
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *Scheduler) execute(ctx context.Context, t Task) error {
	if !s.begin() {
		metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
		return ErrStopped
	}
	defer s.inflight.Done()

	log := s.logger.With("task", t.Name)
	unlock, err := s.locker.TryLock(ctx, "task:"+t.Name, s.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		log.Info("task already running elsewhere, skipping")
		metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
		return err
	}
	if err != nil {
		log.Error("task lock failed", "error", err)
		metrics.TaskRuns.WithLabelValues(t.Name, "failed").Inc()
		return fmt.Errorf("lock task %s: %w", t.Name, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("task unlock failed", "error", err)
		}
	}()

	timeout := s.RunTimeout
	if timeout <= 0 || timeout > s.lockTTL {
		timeout = s.lockTTL
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err = t.Run(runCtx)
	elapsed := time.Since(started)
	metrics.TaskDuration.WithLabelValues(t.Name).Observe(elapsed.Seconds())
	if err != nil {
		log.Error("task failed", "error", err, "elapsed", elapsed)
		metrics.TaskRuns.WithLabelValues(t.Name, "failed").Inc()
		return err
	}
	log.Info("task finished", "elapsed", elapsed)
	metrics.TaskRuns.WithLabelValues(t.Name, "ok").Inc()
	return nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
