package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/eventbus"
)

var now = time.Date(2024, time.April, 30, 2, 0, 0, 0, time.UTC)

type recordingBus struct {
	mu   sync.Mutex
	msgs []eventbus.Message
}

func (b *recordingBus) Publish(_ context.Context, msg eventbus.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func seed(t *testing.T, repo event.Repository, status string, endedAgo time.Duration) uint {
	t.Helper()
	end := now.Add(-endedAgo)
	e := &event.Event{
		OwnerID:  1,
		Title:    status,
		Start:    end.Add(-time.Hour),
		End:      end,
		Category: event.CategoryOther,
		Color:    event.DefaultColor,
		Status:   status,
	}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return e.ID
}

func TestSweeperRun(t *testing.T) {
	repo := event.NewMemoryRepository()
	const day = 24 * time.Hour
	oldCompleted := seed(t, repo, event.StatusCompleted, 31*day)
	oldCancelled := seed(t, repo, event.StatusCancelled, 45*day)
	oldActive := seed(t, repo, event.StatusActive, 90*day)
	recentCancelled := seed(t, repo, event.StatusCancelled, 29*day)

	bus := &recordingBus{}
	s := NewSweeper(repo, bus, nil)
	s.Now = func() time.Time { return now }

	deleted, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	ctx := context.Background()
	for _, id := range []uint{oldCompleted, oldCancelled} {
		if _, err := repo.FindByID(ctx, 1, id); !errors.Is(err, event.ErrNotFound) {
			t.Errorf("event %d survived: %v", id, err)
		}
	}
	for _, id := range []uint{oldActive, recentCancelled} {
		if _, err := repo.FindByID(ctx, 1, id); err != nil {
			t.Errorf("event %d was purged: %v", id, err)
		}
	}
	if len(bus.msgs) != 1 || bus.msgs[0].Type != eventbus.TypeEventsPurged {
		t.Errorf("published %+v", bus.msgs)
	}

	// Nothing left to purge, so nothing is published.
	if deleted, _ := s.Run(ctx); deleted != 0 || len(bus.msgs) != 1 {
		t.Errorf("second run deleted=%d published=%d", deleted, len(bus.msgs))
	}
}

func TestSweeperCustomWindow(t *testing.T) {
	repo := event.NewMemoryRepository()
	id := seed(t, repo, event.StatusCompleted, 8*24*time.Hour)

	s := NewSweeper(repo, nil, nil)
	s.Now = func() time.Time { return now }
	s.Window = 7 * 24 * time.Hour
	if deleted, err := s.Run(context.Background()); err != nil || deleted != 1 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}
	if _, err := repo.FindByID(context.Background(), 1, id); !errors.Is(err, event.ErrNotFound) {
		t.Fatal("event inside custom window kept")
	}
}

// stalledRepo never answers DeleteEndedBefore until the caller gives up.
type stalledRepo struct {
	event.Repository
}

func (stalledRepo) DeleteEndedBefore(ctx context.Context, _ time.Time, _ []string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSweeperStoreTimeout(t *testing.T) {
	bus := &recordingBus{}
	s := NewSweeper(stalledRepo{event.NewMemoryRepository()}, bus, nil)
	s.Now = func() time.Time { return now }
	s.StoreTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run hung on a stalled store")
	}
	if len(bus.msgs) != 0 {
		t.Errorf("published %d messages after a failed sweep", len(bus.msgs))
	}
}
