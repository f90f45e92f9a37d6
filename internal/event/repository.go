package event

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the event store. Every owner-facing method is scoped by
// owner id; the background methods at the bottom run across all owners.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	FindByID(ctx context.Context, ownerID, id uint) (*Event, error)
	List(ctx context.Context, ownerID uint, f Filter) ([]Event, int64, error)
	// ListAll ignores pagination.
	ListAll(ctx context.Context, ownerID uint, f Filter) ([]Event, error)
	ListUpcoming(ctx context.Context, ownerID uint, now time.Time, limit int) ([]Event, error)
	// Update locks the row, hands it to mutate and saves the result in one
	// transaction. An error from mutate aborts without writing.
	Update(ctx context.Context, ownerID, id uint, mutate func(*Event) error) (*Event, error)
	// UpdateMany applies mutate to every listed event the owner holds. Ids
	// of other owners are skipped. Any mutate error rolls back the batch.
	UpdateMany(ctx context.Context, ownerID uint, ids []uint, mutate func(*Event) error) (int64, error)
	Delete(ctx context.Context, ownerID, id uint) error
	Stats(ctx context.Context, ownerID uint, now time.Time) (*Stats, error)

	ListTemplates(ctx context.Context) ([]Event, error)
	// AddOccurrence moves the template's last occurrence from prev to next
	// and stores occ, atomically. ErrConflict when prev is stale. A nil occ
	// only advances the marker.
	AddOccurrence(ctx context.Context, templateID uint, prev *time.Time, next time.Time, occ *Event) error
	// ListPendingReminders returns active future events preloaded with
	// their unsent reminders only.
	ListPendingReminders(ctx context.Context, now time.Time) ([]Event, error)
	// MarkReminderSent flips sent false to true. It reports false when the
	// reminder was already sent or no longer exists.
	MarkReminderSent(ctx context.Context, reminderID uint, at time.Time) (bool, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time, statuses []string) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func orderedReminders(db *gorm.DB) *gorm.DB {
	return db.Order("event_reminders.id ASC")
}

func unsentReminders(db *gorm.DB) *gorm.DB {
	return db.Where("sent = ?", false).Order("event_reminders.id ASC")
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.Status != StatusAll {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Range != nil {
		from, to := f.Range.From, f.Range.To
		q = q.Where("((start_at BETWEEN ? AND ?) OR (end_at BETWEEN ? AND ?) OR (start_at <= ? AND end_at >= ?))",
			from, to, from, to, from, to)
	}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		q = q.Where("(title ILIKE ? OR description ILIKE ?)", like, like)
	}
	return q
}

// ===========================
// 🎯 Create Event
func (r *gormRepository) Create(ctx context.Context, e *Event) error {
	return storeErr("create event", r.db.WithContext(ctx).Create(e).Error)
}

// ===========================
// 🔍 Get Event By ID
func (r *gormRepository) FindByID(ctx context.Context, ownerID, id uint) (*Event, error) {
	var e Event
	err := r.db.WithContext(ctx).
		Preload("Reminders", orderedReminders).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&e).Error
	if err != nil {
		return nil, storeErr("find event", err)
	}
	return &e, nil
}

// ===========================
// 📄 List Events With Pagination & Search
func (r *gormRepository) List(ctx context.Context, ownerID uint, f Filter) ([]Event, int64, error) {
	var total int64
	err := applyFilter(r.db.WithContext(ctx).Model(&Event{}).Where("owner_id = ?", ownerID), f).
		Count(&total).Error
	if err != nil {
		return nil, 0, storeErr("count events", err)
	}

	var events []Event
	err = applyFilter(r.db.WithContext(ctx).Where("owner_id = ?", ownerID), f).
		Preload("Reminders", orderedReminders).
		Order("start_at ASC, id ASC").
		Limit(f.Limit).
		Offset(f.Offset()).
		Find(&events).Error
	if err != nil {
		return nil, 0, storeErr("list events", err)
	}
	return events, total, nil
}

func (r *gormRepository) ListAll(ctx context.Context, ownerID uint, f Filter) ([]Event, error) {
	var events []Event
	err := applyFilter(r.db.WithContext(ctx).Where("owner_id = ?", ownerID), f).
		Preload("Reminders", orderedReminders).
		Order("start_at ASC, id ASC").
		Find(&events).Error
	return events, storeErr("list events", err)
}

// ===========================
// 📆 Get Upcoming Events
func (r *gormRepository) ListUpcoming(ctx context.Context, ownerID uint, now time.Time, limit int) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Preload("Reminders", orderedReminders).
		Where("owner_id = ? AND status = ? AND start_at >= ?", ownerID, StatusActive, now).
		Order("start_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, storeErr("list upcoming events", err)
}

// ===========================
// 🛠 Update Event
func (r *gormRepository) Update(ctx context.Context, ownerID, id uint, mutate func(*Event) error) (*Event, error) {
	var out Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			First(&out).Error; err != nil {
			return err
		}
		return updateLocked(tx, &out, mutate)
	})
	if err != nil {
		return nil, storeErr("update event", err)
	}
	return &out, nil
}

func (r *gormRepository) UpdateMany(ctx context.Context, ownerID uint, ids []uint, mutate func(*Event) error) (int64, error) {
	var modified int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var events []Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND id IN ?", ownerID, ids).
			Order("id ASC").
			Find(&events).Error; err != nil {
			return err
		}
		for i := range events {
			if err := updateLocked(tx, &events[i], mutate); err != nil {
				return err
			}
		}
		modified = int64(len(events))
		return nil
	})
	if err != nil {
		return 0, storeErr("bulk update events", err)
	}
	return modified, nil
}

// updateLocked runs mutate on a row already locked by tx. Reminder rows are
// only rewritten when the list actually changed, so sent flags survive
// unrelated edits.
func updateLocked(tx *gorm.DB, e *Event, mutate func(*Event) error) error {
	if err := tx.Where("event_id = ?", e.ID).Order("id ASC").Find(&e.Reminders).Error; err != nil {
		return err
	}
	id, ownerID := e.ID, e.OwnerID
	before := append([]Reminder(nil), e.Reminders...)

	if err := mutate(e); err != nil {
		return err
	}
	e.ID, e.OwnerID = id, ownerID

	if err := tx.Omit(clause.Associations).Save(e).Error; err != nil {
		return err
	}
	if sameReminders(before, e.Reminders) {
		e.Reminders = before
		return nil
	}
	if err := tx.Where("event_id = ?", e.ID).Delete(&Reminder{}).Error; err != nil {
		return err
	}
	for i := range e.Reminders {
		e.Reminders[i].ID = 0
		e.Reminders[i].EventID = e.ID
	}
	if len(e.Reminders) == 0 {
		return nil
	}
	return tx.Create(&e.Reminders).Error
}

func sameReminders(a, b []Reminder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Time != b[i].Time || a[i].Sent != b[i].Sent {
			return false
		}
	}
	return true
}

// ===========================
// ❌ Delete Event
func (r *gormRepository) Delete(ctx context.Context, ownerID, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("event_id = ?", id).Delete(&Reminder{}).Error
	})
	return storeErr("delete event", err)
}

// ===========================
// 📊 Event Dashboard Stats
func (r *gormRepository) Stats(ctx context.Context, ownerID uint, now time.Time) (*Stats, error) {
	active := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&Event{}).Where("owner_id = ? AND status = ?", ownerID, StatusActive)
	}
	weekStart, monthStart := statsWindows(now)
	stats := &Stats{ByCategory: map[string]int64{}}

	if err := active().Count(&stats.Total).Error; err != nil {
		return nil, storeErr("stats", err)
	}
	if err := active().Where("start_at >= ? AND start_at <= ?", weekStart, now).Count(&stats.ThisWeek).Error; err != nil {
		return nil, storeErr("stats", err)
	}
	if err := active().Where("start_at >= ? AND start_at <= ?", monthStart, now).Count(&stats.ThisMonth).Error; err != nil {
		return nil, storeErr("stats", err)
	}
	if err := active().Where("start_at >= ?", now).Count(&stats.Upcoming).Error; err != nil {
		return nil, storeErr("stats", err)
	}

	var rows []struct {
		Category string
		Count    int64
	}
	if err := active().Select("category, COUNT(*) AS count").Group("category").Scan(&rows).Error; err != nil {
		return nil, storeErr("stats", err)
	}
	for _, row := range rows {
		stats.ByCategory[row.Category] = row.Count
	}
	return stats, nil
}

// ===========================
// 🔁 Background task queries

func (r *gormRepository) ListTemplates(ctx context.Context) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Preload("Reminders", orderedReminders).
		Where("recurring_is_recurring = ? AND status = ?", true, StatusActive).
		Order("id ASC").
		Find(&events).Error
	return events, storeErr("list templates", err)
}

func (r *gormRepository) AddOccurrence(ctx context.Context, templateID uint, prev *time.Time, next time.Time, occ *Event) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&Event{}).Where("id = ? AND recurring_is_recurring = ?", templateID, true)
		if prev == nil {
			q = q.Where("recurring_last_occurrence IS NULL")
		} else {
			q = q.Where("recurring_last_occurrence = ?", *prev)
		}
		res := q.Update("recurring_last_occurrence", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if occ == nil {
			return nil
		}
		return tx.Create(occ).Error
	})
	return storeErr("add occurrence", err)
}

func (r *gormRepository) ListPendingReminders(ctx context.Context, now time.Time) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Preload("Reminders", unsentReminders).
		Where("status = ? AND start_at > ?", StatusActive, now).
		Where("EXISTS (SELECT 1 FROM event_reminders er WHERE er.event_id = events.id AND er.sent = ?)", false).
		Order("start_at ASC, id ASC").
		Find(&events).Error
	return events, storeErr("list pending reminders", err)
}

func (r *gormRepository) MarkReminderSent(ctx context.Context, reminderID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Reminder{}).
		Where("id = ? AND sent = ?", reminderID, false).
		Updates(map[string]interface{}{"sent": true, "sent_at": at})
	if res.Error != nil {
		return false, storeErr("mark reminder sent", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time, statuses []string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&Event{}).Select("id").Where("end_at < ? AND status IN ?", cutoff, statuses)
		if err := tx.Where("event_id IN (?)", expired).Delete(&Reminder{}).Error; err != nil {
			return err
		}
		res := tx.Where("end_at < ? AND status IN ?", cutoff, statuses).Delete(&Event{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storeErr("delete expired events", err)
	}
	return deleted, nil
}
