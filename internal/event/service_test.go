package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sharath018/calendar-backend/internal/auditlog"
	"github.com/sharath018/calendar-backend/internal/eventbus"
)

var testNow = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

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

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.msgs))
	for _, m := range b.msgs {
		out = append(out, m.Type)
	}
	return out
}

type fixedReminderDefaults int

func (f fixedReminderDefaults) DefaultReminderMinutes(context.Context, uint) (int, error) {
	return int(f), nil
}

type fixture struct {
	svc   *Service
	repo  *memoryRepository
	audit auditlog.Repository
	bus   *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewMemoryRepository().(*memoryRepository)
	auditRepo := auditlog.NewMemoryRepository()
	bus := &recordingBus{}
	svc := NewService(repo, auditlog.NewService(auditRepo), bus)
	svc.Now = func() time.Time { return testNow }
	return &fixture{svc: svc, repo: repo, audit: auditRepo, bus: bus}
}

func (fx *fixture) create(t *testing.T, owner uint, req CreateEventRequest) *Event {
	t.Helper()
	e, err := fx.svc.CreateEvent(context.Background(), owner, &req, "127.0.0.1")
	if err != nil {
		t.Fatalf("CreateEvent(%q): %v", req.Title, err)
	}
	return e
}

func (fx *fixture) auditActions(t *testing.T, status string) []string {
	t.Helper()
	logs, _, err := fx.audit.GetByFilter(context.Background(), auditlog.AuditLogFilter{Status: status, Page: 1, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func at(d, h, m int) time.Time {
	return time.Date(2024, time.March, d, h, m, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func TestCreateEventDefaults(t *testing.T) {
	fx := newFixture(t)
	fx.svc.Users = fixedReminderDefaults(30)

	e := fx.create(t, 1, CreateEventRequest{
		Title:     "  Dentist ",
		Start:     at(20, 9, 0),
		End:       at(20, 10, 0),
		Attendees: []AttendeeInput{{Email: "ann@example.com"}},
		Reminders: []ReminderInput{{}},
	})

	if e.ID == 0 {
		t.Fatal("no id assigned")
	}
	if e.Title != "Dentist" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Category != CategoryOther || e.Color != DefaultColor || e.Status != StatusActive {
		t.Errorf("defaults not applied: category=%s color=%s status=%s", e.Category, e.Color, e.Status)
	}
	if e.Recurring.IsRecurring || e.Recurring.Pattern != PatternWeekly || e.Recurring.Interval != 1 {
		t.Errorf("recurrence defaults = %+v", e.Recurring)
	}
	if e.Attendees[0].Response != ResponsePending {
		t.Errorf("attendee response = %q", e.Attendees[0].Response)
	}
	if len(e.Reminders) != 1 || e.Reminders[0].Type != ReminderEmail || e.Reminders[0].Time != 30 || e.Reminders[0].Sent {
		t.Errorf("reminders = %+v", e.Reminders)
	}
	if got := fx.bus.types(); len(got) != 1 || got[0] != eventbus.TypeEventCreated {
		t.Errorf("published %v", got)
	}
	if got := fx.auditActions(t, "success"); len(got) != 1 || got[0] != "EVENT_CREATED" {
		t.Errorf("audit = %v", got)
	}
}

func TestCreateEventRejectsInvalid(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateEvent(context.Background(), 1, &CreateEventRequest{
		Title: "Backwards",
		Start: at(20, 10, 0),
		End:   at(20, 9, 0),
	}, "")

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(fx.repo.events) != 0 {
		t.Fatal("invalid event was stored")
	}
	if got := fx.auditActions(t, "failure"); len(got) != 1 {
		t.Errorf("failure audit = %v", got)
	}
	if len(fx.bus.types()) != 0 {
		t.Error("published for a rejected create")
	}
}

func TestCreateEventStoreFailure(t *testing.T) {
	fx := newFixture(t)
	fx.repo.createHook = func(*Event) error {
		return storeErr("create event", errors.New("connection reset"))
	}

	_, err := fx.svc.CreateEvent(context.Background(), 1, &CreateEventRequest{
		Title: "Lunch", Start: at(20, 12, 0), End: at(20, 13, 0),
	}, "")

	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("store failure not reported as transient")
	}
}

func TestUpdateEventPartial(t *testing.T) {
	fx := newFixture(t)
	e := fx.create(t, 1, CreateEventRequest{
		Title:       "Review",
		Description: "quarterly numbers",
		Location:    "Room 4",
		Category:    CategoryWork,
		Start:       at(20, 9, 0),
		End:         at(20, 10, 0),
		Tags:        []string{"finance"},
	})

	updated, err := fx.svc.UpdateEvent(context.Background(), 1, e.ID, &UpdateEventRequest{
		Title: strPtr("Quarterly review"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Quarterly review" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.Description != e.Description || updated.Location != e.Location ||
		updated.Category != e.Category || !updated.Start.Equal(e.Start) || !updated.End.Equal(e.End) {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "finance" {
		t.Errorf("tags = %v", updated.Tags)
	}
}

func TestUpdateEventValidatesMergedResult(t *testing.T) {
	fx := newFixture(t)
	e := fx.create(t, 1, CreateEventRequest{Title: "Call", Start: at(20, 9, 0), End: at(20, 10, 0)})

	// Only the end moves, but it lands before the stored start.
	newEnd := at(20, 8, 0)
	_, err := fx.svc.UpdateEvent(context.Background(), 1, e.ID, &UpdateEventRequest{End: &newEnd}, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	stored, err := fx.svc.GetEvent(context.Background(), 1, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.End.Equal(e.End) {
		t.Errorf("rejected update was persisted: end = %s", stored.End)
	}
}

func TestOwnerIsolation(t *testing.T) {
	fx := newFixture(t)
	e := fx.create(t, 1, CreateEventRequest{Title: "Private", Start: at(20, 9, 0), End: at(20, 10, 0)})
	ctx := context.Background()

	if _, err := fx.svc.GetEvent(ctx, 2, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent by other owner: %v", err)
	}
	if _, err := fx.svc.UpdateEvent(ctx, 2, e.ID, &UpdateEventRequest{Title: strPtr("Mine")}, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateEvent by other owner: %v", err)
	}
	if err := fx.svc.DeleteEvent(ctx, 2, e.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteEvent by other owner: %v", err)
	}
	if got, _ := fx.svc.GetEvent(ctx, 1, e.ID); got == nil || got.Title != "Private" {
		t.Errorf("owner's event changed: %+v", got)
	}
}

func TestBulkUpdate(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, 1, CreateEventRequest{Title: "A", Start: at(20, 9, 0), End: at(20, 10, 0)})
	b := fx.create(t, 1, CreateEventRequest{Title: "B", Start: at(21, 9, 0), End: at(21, 10, 0)})
	foreign := fx.create(t, 2, CreateEventRequest{Title: "C", Start: at(22, 9, 0), End: at(22, 10, 0)})
	ctx := context.Background()

	modified, err := fx.svc.BulkUpdate(ctx, 1, []uint{a.ID, b.ID, foreign.ID, 999}, &UpdateEventRequest{
		Status: strPtr(StatusCancelled),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if modified != 2 {
		t.Fatalf("modified = %d, want 2", modified)
	}
	for _, id := range []uint{a.ID, b.ID} {
		e, _ := fx.svc.GetEvent(ctx, 1, id)
		if e.Status != StatusCancelled {
			t.Errorf("event %d status = %s", id, e.Status)
		}
	}
	if e, _ := fx.svc.GetEvent(ctx, 2, foreign.ID); e.Status != StatusActive {
		t.Errorf("foreign event modified: %s", e.Status)
	}
}

func TestBulkUpdateRejects(t *testing.T) {
	fx := newFixture(t)
	a := fx.create(t, 1, CreateEventRequest{Title: "A", Start: at(20, 9, 0), End: at(20, 10, 0)})
	b := fx.create(t, 1, CreateEventRequest{Title: "B", Start: at(21, 9, 0), End: at(21, 10, 0)})
	ctx := context.Background()

	var verr *ValidationError
	if _, err := fx.svc.BulkUpdate(ctx, 1, nil, &UpdateEventRequest{}, ""); !errors.As(err, &verr) {
		t.Fatalf("empty ids: %v", err)
	}

	// The new end is valid for A but not for B, so nothing is written.
	end := at(20, 11, 0)
	if _, err := fx.svc.BulkUpdate(ctx, 1, []uint{a.ID, b.ID}, &UpdateEventRequest{End: &end}, ""); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got, _ := fx.svc.GetEvent(ctx, 1, a.ID); !got.End.Equal(at(20, 10, 0)) {
		t.Errorf("batch partially applied: A end = %s", got.End)
	}
}

func TestStandupLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	e := fx.create(t, 7, CreateEventRequest{
		Title:    "Standup",
		Category: CategoryMeeting,
		Start:    at(18, 9, 0),
		End:      at(18, 9, 15),
	})

	page, err := fx.svc.ListByCategory(ctx, 7, CategoryMeeting, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 1 || page.Events[0].ID != e.ID || page.Pagination.TotalEvents != 1 {
		t.Fatalf("ListByCategory = %+v", page)
	}

	if err := fx.svc.DeleteEvent(ctx, 7, e.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.GetEvent(ctx, 7, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetEvent after delete: %v", err)
	}

	want := []string{eventbus.TypeEventCreated, eventbus.TypeEventDeleted}
	got := fx.bus.types()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestListEventsFilters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.create(t, 1, CreateEventRequest{Title: "Gym", Category: CategoryPersonal, Start: at(11, 7, 0), End: at(11, 8, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Planning", Description: "sprint 12", Category: CategoryWork, Start: at(12, 9, 0), End: at(12, 10, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Offsite", Category: CategoryWork, Start: at(10, 9, 0), End: at(16, 17, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Old", Category: CategoryWork, Status: StatusCompleted, Start: at(1, 9, 0), End: at(1, 10, 0)})

	tests := []struct {
		name  string
		f     Filter
		count int
	}{
		{"active only by default", Filter{}, 3},
		{"all statuses", Filter{Status: StatusAll}, 4},
		{"category", Filter{Category: CategoryWork}, 2},
		{"search description", Filter{Search: "SPRINT"}, 1},
		{"range overlaps multi-day event", Filter{Range: &DateRange{From: at(13, 0, 0), To: at(13, 23, 59)}}, 1},
		{"search and range", Filter{Search: "gym", Range: &DateRange{From: at(12, 0, 0), To: at(12, 23, 0)}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := fx.svc.ListEvents(ctx, 1, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(page.Events) != tt.count || page.Pagination.TotalEvents != int64(tt.count) {
				t.Fatalf("got %d events (total %d), want %d", len(page.Events), page.Pagination.TotalEvents, tt.count)
			}
		})
	}

	page, err := fx.svc.ListEvents(ctx, 1, Filter{Limit: 2, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 1 || !page.Pagination.HasPrevPage || page.Pagination.HasNextPage {
		t.Errorf("second page = %+v", page.Pagination)
	}
	if page.Events[0].Title != "Planning" {
		t.Errorf("events not ordered by start: %s", page.Events[0].Title)
	}
}

func TestListByDateRange(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.create(t, 1, CreateEventRequest{Title: "Trip", Start: at(9, 8, 0), End: at(12, 20, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Later", Start: at(25, 8, 0), End: at(25, 9, 0)})

	events, err := fx.svc.ListByDateRange(ctx, 1, at(10, 0, 0), at(11, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Title != "Trip" {
		t.Fatalf("events = %+v", events)
	}

	var verr *ValidationError
	if _, err := fx.svc.ListByDateRange(ctx, 1, at(10, 0, 0), time.Time{}); !errors.As(err, &verr) {
		t.Errorf("missing end: %v", err)
	}
	if _, err := fx.svc.ListByDateRange(ctx, 1, at(11, 0, 0), at(10, 0, 0)); !errors.As(err, &verr) {
		t.Errorf("inverted range: %v", err)
	}
}

func TestListUpcomingAndStats(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.create(t, 1, CreateEventRequest{Title: "Earlier this week", Category: CategoryWork, Start: at(11, 9, 0), End: at(11, 10, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Earlier this month", Category: CategoryWork, Start: at(2, 9, 0), End: at(2, 10, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Tomorrow", Category: CategoryPersonal, Start: at(15, 9, 0), End: at(15, 10, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Next week", Category: CategoryPersonal, Start: at(21, 9, 0), End: at(21, 10, 0)})
	fx.create(t, 1, CreateEventRequest{Title: "Cancelled", Status: StatusCancelled, Start: at(16, 9, 0), End: at(16, 10, 0)})

	upcoming, err := fx.svc.ListUpcoming(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(upcoming) != 1 || upcoming[0].Title != "Tomorrow" {
		t.Fatalf("upcoming = %+v", upcoming)
	}

	stats, err := fx.svc.GetStats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 4 || stats.ThisWeek != 1 || stats.ThisMonth != 2 || stats.Upcoming != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByCategory[CategoryWork] != 2 || stats.ByCategory[CategoryPersonal] != 2 {
		t.Errorf("by category = %v", stats.ByCategory)
	}
}
