package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryRepository keeps events in process. It backs DB_DRIVER=memory and
// the tests, and follows the same contract as the gorm store.
type memoryRepository struct {
	mu         sync.Mutex
	events     map[uint]*Event
	nextID     uint
	nextRemID  uint
	createHook func(*Event) error
}

func NewMemoryRepository() Repository {
	return &memoryRepository{events: make(map[uint]*Event)}
}

func (r *memoryRepository) assignReminderIDs(e *Event) {
	for i := range e.Reminders {
		r.nextRemID++
		e.Reminders[i].ID = r.nextRemID
		e.Reminders[i].EventID = e.ID
	}
}

func (r *memoryRepository) insert(e *Event, now time.Time) {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt, e.UpdatedAt = now, now
	r.assignReminderIDs(e)
	r.events[e.ID] = e.Clone()
}

func (r *memoryRepository) Create(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return storeErr("create event", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createHook != nil {
		if err := r.createHook(e); err != nil {
			return err
		}
	}
	r.insert(e, time.Now())
	return nil
}

func (r *memoryRepository) FindByID(ctx context.Context, ownerID, id uint) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find event", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// sorted returns clones of the matching events ordered by start, then id.
func (r *memoryRepository) sorted(match func(*Event) bool) []Event {
	out := make([]Event, 0)
	for _, e := range r.events {
		if match(e) {
			out = append(out, *e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryRepository) List(ctx context.Context, ownerID uint, f Filter) ([]Event, int64, error) {
	all, err := r.ListAll(ctx, ownerID, f)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	from := f.Offset()
	if from > len(all) {
		from = len(all)
	}
	to := from + f.Limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total, nil
}

func (r *memoryRepository) ListAll(ctx context.Context, ownerID uint, f Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list events", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(e *Event) bool { return e.OwnerID == ownerID && f.Matches(e) }), nil
}

func (r *memoryRepository) ListUpcoming(ctx context.Context, ownerID uint, now time.Time, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list upcoming events", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(e *Event) bool {
		return e.OwnerID == ownerID && e.Status == StatusActive && !e.Start.Before(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// apply runs mutate on a copy so a failed mutation leaves the stored event
// untouched.
func (r *memoryRepository) apply(stored *Event, mutate func(*Event) error) (*Event, error) {
	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID, working.OwnerID, working.CreatedAt = stored.ID, stored.OwnerID, stored.CreatedAt
	working.UpdatedAt = time.Now()
	if !sameReminders(stored.Reminders, working.Reminders) {
		r.assignReminderIDs(working)
	} else {
		working.Reminders = append([]Reminder(nil), stored.Reminders...)
	}
	return working, nil
}

func (r *memoryRepository) Update(ctx context.Context, ownerID, id uint, mutate func(*Event) error) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("update event", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.events[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	updated, err := r.apply(stored, mutate)
	if err != nil {
		return nil, err
	}
	r.events[id] = updated
	return updated.Clone(), nil
}

func (r *memoryRepository) UpdateMany(ctx context.Context, ownerID uint, ids []uint, mutate func(*Event) error) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("bulk update events", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[uint]*Event)
	for _, id := range ids {
		stored, ok := r.events[id]
		if !ok || stored.OwnerID != ownerID {
			continue
		}
		if _, done := staged[id]; done {
			continue
		}
		updated, err := r.apply(stored, mutate)
		if err != nil {
			return 0, err
		}
		staged[id] = updated
	}
	for id, e := range staged {
		r.events[id] = e
	}
	return int64(len(staged)), nil
}

func (r *memoryRepository) Delete(ctx context.Context, ownerID, id uint) error {
	if err := ctx.Err(); err != nil {
		return storeErr("delete event", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memoryRepository) Stats(ctx context.Context, ownerID uint, now time.Time) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("stats", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	weekStart, monthStart := statsWindows(now)
	stats := &Stats{ByCategory: map[string]int64{}}
	for _, e := range r.events {
		if e.OwnerID != ownerID || e.Status != StatusActive {
			continue
		}
		stats.Total++
		stats.ByCategory[e.Category]++
		if !e.Start.Before(weekStart) && !e.Start.After(now) {
			stats.ThisWeek++
		}
		if !e.Start.Before(monthStart) && !e.Start.After(now) {
			stats.ThisMonth++
		}
		if !e.Start.Before(now) {
			stats.Upcoming++
		}
	}
	return stats, nil
}

func (r *memoryRepository) ListTemplates(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list templates", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(e *Event) bool { return e.Recurring.IsRecurring && e.Status == StatusActive })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) AddOccurrence(ctx context.Context, templateID uint, prev *time.Time, next time.Time, occ *Event) error {
	if err := ctx.Err(); err != nil {
		return storeErr("add occurrence", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.events[templateID]
	if !ok || !tmpl.Recurring.IsRecurring {
		return ErrConflict
	}
	last := tmpl.Recurring.LastOccurrence
	switch {
	case prev == nil && last != nil,
		prev != nil && (last == nil || !last.Equal(*prev)):
		return ErrConflict
	}
	marker := next
	tmpl.Recurring.LastOccurrence = &marker
	tmpl.UpdatedAt = time.Now()
	if occ != nil {
		r.insert(occ, time.Now())
	}
	return nil
}

func (r *memoryRepository) ListPendingReminders(ctx context.Context, now time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list pending reminders", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(e *Event) bool {
		return e.Status == StatusActive && e.Start.After(now) && len(e.UnsentReminders()) > 0
	})
	for i := range out {
		out[i].Reminders = out[i].UnsentReminders()
	}
	return out, nil
}

func (r *memoryRepository) MarkReminderSent(ctx context.Context, reminderID uint, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr("mark reminder sent", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		for i := range e.Reminders {
			rem := &e.Reminders[i]
			if rem.ID != reminderID {
				continue
			}
			if rem.Sent {
				return false, nil
			}
			sentAt := at
			rem.Sent, rem.SentAt = true, &sentAt
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time, statuses []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("delete expired events", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, e := range r.events {
		if e.End.Before(cutoff) && contains(statuses, e.Status) {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}
