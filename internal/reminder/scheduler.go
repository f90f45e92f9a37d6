// Package reminder fires the due reminders of upcoming events.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/metrics"
	"github.com/sharath018/calendar-backend/internal/notification"
	"github.com/sharath018/calendar-backend/internal/user"
)

const DefaultWindow = time.Minute

// Users resolves event owners.
type Users interface {
	GetByID(ctx context.Context, id uint) (*user.User, error)
}

// Deliverer sends one reminder for one event to its owner.
type Deliverer interface {
	Deliver(ctx context.Context, u *user.User, e *event.Event, r event.Reminder) error
}

type Scheduler struct {
	Repo      event.Repository
	Users     Users
	Deliverer Deliverer
	Window    time.Duration
	// StoreTimeout bounds each store or directory call made by a run.
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

type RunResult struct {
	Events    int `json:"events"`
	Delivered int `json:"delivered"`
	Disabled  int `json:"disabled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func NewScheduler(repo event.Repository, users Users, d Deliverer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Repo:         repo,
		Users:        users,
		Deliverer:    d,
		Window:       DefaultWindow,
		StoreTimeout: event.DefaultStoreTimeout,
		Now:          time.Now,
		Logger:       logger,
	}
}

func (s *Scheduler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.StoreTimeout)
}

// Due reports whether a reminder firing at dueAt should go out on a tick
// at now: dueAt <= now < dueAt+window.
func Due(dueAt, now time.Time, window time.Duration) bool {
	return !now.Before(dueAt) && now.Before(dueAt.Add(window))
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run checks every pending reminder once. Failures on one reminder are
// logged and the run moves on.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}

	listCtx, cancel := s.storeCtx(ctx)
	events, err := s.Repo.ListPendingReminders(listCtx, now)
	cancel()
	if err != nil {
		return res, err
	}
	res.Events = len(events)

	owners := make(map[uint]*user.User)
	for i := range events {
		if ctx.Err() != nil {
			s.logger().Warn("reminder run interrupted", "processed", i, "events", len(events))
			return res, nil
		}
		e := &events[i]
		for _, r := range e.Reminders {
			if r.Sent || !Due(r.DueAt(e.Start), now, window) {
				continue
			}
			owner, err := s.owner(ctx, owners, e.OwnerID)
			if err != nil {
				s.logger().Error("reminder owner lookup failed", "event_id", e.ID, "owner_id", e.OwnerID, "error", err)
				res.Failed++
				continue
			}
			s.fire(ctx, &res, owner, e, r, now)
		}
	}

	s.logger().Info("reminder run finished",
		"events", res.Events, "delivered", res.Delivered, "disabled", res.Disabled,
		"skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (s *Scheduler) owner(ctx context.Context, cache map[uint]*user.User, id uint) (*user.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = u
	return u, nil
}

func (s *Scheduler) fire(ctx context.Context, res *RunResult, owner *user.User, e *event.Event, r event.Reminder, now time.Time) {
	log := s.logger().With("event_id", e.ID, "reminder_id", r.ID, "channel", r.Type)

	if !owner.Preferences.ChannelEnabled(r.Type) {
		res.Disabled++
		metrics.RemindersDelivered.WithLabelValues(r.Type, "disabled").Inc()
		return
	}

	err := s.Deliverer.Deliver(ctx, owner, e, r)
	switch {
	case errors.Is(err, notification.ErrChannelUnavailable):
		log.Debug("reminder channel unavailable")
		res.Skipped++
		metrics.RemindersDelivered.WithLabelValues(r.Type, "unavailable").Inc()
		return
	case err != nil:
		log.Warn("reminder delivery failed", "error", err)
		res.Failed++
		metrics.RemindersDelivered.WithLabelValues(r.Type, "failed").Inc()
		return
	}

	markCtx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	marked, err := s.Repo.MarkReminderSent(markCtx, r.ID, now)
	cancel()
	if err != nil {
		log.Error("reminder delivered but not marked sent", "error", err)
		res.Failed++
		return
	}
	if !marked {
		log.Warn("reminder was already marked sent")
	}
	res.Delivered++
	metrics.RemindersDelivered.WithLabelValues(r.Type, "sent").Inc()
}
