// Package retention purges finished events once they are old enough.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/eventbus"
	"github.com/sharath018/calendar-backend/internal/metrics"
)

const DefaultWindow = 30 * 24 * time.Hour

// PurgeStatuses are the only statuses ever swept. Active events are kept
// regardless of age.
var PurgeStatuses = []string{event.StatusCancelled, event.StatusCompleted}

type Sweeper struct {
	Repo   event.Repository
	Bus    eventbus.Publisher
	Window time.Duration
	// StoreTimeout bounds the purge statement.
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

func NewSweeper(repo event.Repository, bus eventbus.Publisher, logger *slog.Logger) *Sweeper {
	return &Sweeper{Repo: repo, Bus: bus, Window: DefaultWindow, StoreTimeout: event.DefaultStoreTimeout, Now: time.Now, Logger: logger}
}

// Run deletes cancelled and completed events that ended before now minus
// the window and returns how many were removed.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	deleted, err := s.purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.EventsPurged.Add(float64(deleted))
	logger.Info("retention sweep finished", "cutoff", cutoff, "deleted", deleted)

	if deleted > 0 && s.Bus != nil {
		msg := eventbus.NewMessage(eventbus.TypeEventsPurged, 0, 0, now, map[string]interface{}{
			"cutoff": cutoff, "deleted": deleted,
		})
		if err := s.Bus.Publish(ctx, msg); err != nil {
			logger.Warn("event bus publish failed", "type", msg.Type, "error", err)
		}
	}
	return deleted, nil
}

func (s *Sweeper) purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.StoreTimeout)
		defer cancel()
	}
	return s.Repo.DeleteEndedBefore(ctx, cutoff, PurgeStatuses)
}
