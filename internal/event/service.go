package event

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sharath018/calendar-backend/internal/auditlog"
	"github.com/sharath018/calendar-backend/internal/eventbus"
	"github.com/sharath018/calendar-backend/internal/metrics"
)

const DefaultStoreTimeout = 5 * time.Second

// ReminderDefaults supplies the lead time used for reminders created
// without an explicit time.
type ReminderDefaults interface {
	DefaultReminderMinutes(ctx context.Context, ownerID uint) (int, error)
}

// Service wraps business logic for calendar events
type Service struct {
	Repo     Repository
	AuditSvc auditlog.Service
	Bus      eventbus.Publisher
	Users    ReminderDefaults
	Timeout  time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewService(r Repository, auditSvc auditlog.Service, bus eventbus.Publisher) *Service {
	return &Service{
		Repo:     r,
		AuditSvc: auditSvc,
		Bus:      bus,
		Timeout:  DefaultStoreTimeout,
		Now:      time.Now,
		Logger:   slog.Default(),
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *Service) reminderMinutes(ctx context.Context, ownerID uint) int {
	if s.Users == nil {
		return DefaultReminderMinutes
	}
	m, err := s.Users.DefaultReminderMinutes(ctx, ownerID)
	if err != nil {
		s.logger().Warn("reminder preference lookup failed", "owner_id", ownerID, "error", err)
		return DefaultReminderMinutes
	}
	return m
}

// audit records the outcome of a mutation. It runs on a context detached
// from the request so a timed out call is still recorded.
func (s *Service) audit(ctx context.Context, ownerID uint, eventID *uint, action string, details map[string]interface{}, ip string, opErr error) {
	status := auditlog.StatusSuccess
	if opErr != nil {
		status = auditlog.StatusFailure
		details["error"] = opErr.Error()
	}
	metrics.EventMutations.WithLabelValues(action, status).Inc()
	if s.AuditSvc == nil {
		return
	}
	if err := s.AuditSvc.LogAction(context.WithoutCancel(ctx), &ownerID, eventID, action, details, ip, status); err != nil {
		s.logger().Error("audit log write failed", "action", action, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, msgType string, ownerID, eventID uint, data map[string]interface{}) {
	if s.Bus == nil {
		return
	}
	msg := eventbus.NewMessage(msgType, ownerID, eventID, s.now(), data)
	if err := s.Bus.Publish(context.WithoutCancel(ctx), msg); err != nil {
		s.logger().Warn("event bus publish failed", "type", msgType, "event_id", eventID, "error", err)
	}
}

// ===========================
// 🎯 Create Event
func (s *Service) CreateEvent(ctx context.Context, ownerID uint, req *CreateEventRequest, ip string) (*Event, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	e := req.toEvent(ownerID, s.reminderMinutes(ctx, ownerID))
	normalize(e)
	details := map[string]interface{}{"title": e.Title, "category": e.Category}

	if err := validate(e); err != nil {
		s.audit(ctx, ownerID, nil, auditlog.ActionEventCreated, details, ip, err)
		return nil, err
	}
	if err := s.Repo.Create(ctx, e); err != nil {
		s.audit(ctx, ownerID, nil, auditlog.ActionEventCreated, details, ip, err)
		return nil, err
	}

	details["event_id"] = e.ID
	details["start"] = e.Start
	s.audit(ctx, ownerID, &e.ID, auditlog.ActionEventCreated, details, ip, nil)
	s.publish(ctx, eventbus.TypeEventCreated, ownerID, e.ID, map[string]interface{}{
		"title": e.Title, "start": e.Start, "end": e.End, "category": e.Category,
	})
	return e, nil
}

// ===========================
// 🔍 Get Event
func (s *Service) GetEvent(ctx context.Context, ownerID, id uint) (*Event, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Repo.FindByID(ctx, ownerID, id)
}

// ===========================
// 🛠 Update Event
func (s *Service) UpdateEvent(ctx context.Context, ownerID, id uint, req *UpdateEventRequest, ip string) (*Event, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	minutes := s.reminderMinutes(ctx, ownerID)
	updated, err := s.Repo.Update(ctx, ownerID, id, func(e *Event) error {
		req.apply(e, minutes)
		normalize(e)
		return validate(e)
	})
	details := map[string]interface{}{"event_id": id}
	if err != nil {
		// Probing for other owners' ids should not leave a trail keyed to them.
		if !errors.Is(err, ErrNotFound) {
			s.audit(ctx, ownerID, &id, auditlog.ActionEventUpdated, details, ip, err)
		}
		return nil, err
	}

	details["title"] = updated.Title
	details["status"] = updated.Status
	s.audit(ctx, ownerID, &id, auditlog.ActionEventUpdated, details, ip, nil)
	s.publish(ctx, eventbus.TypeEventUpdated, ownerID, id, map[string]interface{}{
		"title": updated.Title, "start": updated.Start, "end": updated.End, "status": updated.Status,
	})
	return updated, nil
}

// ===========================
// ❌ Delete Event
func (s *Service) DeleteEvent(ctx context.Context, ownerID, id uint, ip string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	err := s.Repo.Delete(ctx, ownerID, id)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	s.audit(ctx, ownerID, &id, auditlog.ActionEventDeleted, map[string]interface{}{"event_id": id}, ip, err)
	if err != nil {
		return err
	}
	s.publish(ctx, eventbus.TypeEventDeleted, ownerID, id, nil)
	return nil
}

// ===========================
// 📦 Bulk Update
// BulkUpdate applies one partial update to every listed event the owner
// holds and returns how many were modified.
func (s *Service) BulkUpdate(ctx context.Context, ownerID uint, ids []uint, req *UpdateEventRequest, ip string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("event_ids", "at least one event id is required")
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	minutes := s.reminderMinutes(ctx, ownerID)
	modified, err := s.Repo.UpdateMany(ctx, ownerID, ids, func(e *Event) error {
		req.apply(e, minutes)
		normalize(e)
		if err := validate(e); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				for i := range verr.Fields {
					verr.Fields[i].Message = "event " + strconv.FormatUint(uint64(e.ID), 10) + ": " + verr.Fields[i].Message
				}
			}
			return err
		}
		return nil
	})
	details := map[string]interface{}{"event_ids": ids, "requested": len(ids), "modified": modified}
	s.audit(ctx, ownerID, nil, auditlog.ActionEventsBulkUpdated, details, ip, err)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, eventbus.TypeEventsBulkUpdated, ownerID, 0, map[string]interface{}{
		"event_ids": ids, "modified": modified,
	})
	return modified, nil
}

// ===========================
// 📄 Queries

func (s *Service) ListEvents(ctx context.Context, ownerID uint, f Filter) (*Page, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	f = f.normalized()
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	events, total, err := s.Repo.List(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return &Page{Events: events, Pagination: NewPagination(f.Page, f.Limit, total)}, nil
}

// ===========================
// 📆 Upcoming Events
func (s *Service) ListUpcoming(ctx context.Context, ownerID uint, limit int) ([]Event, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Repo.ListUpcoming(ctx, ownerID, s.now(), coerceLimit(limit, DefaultUpcomingLimit))
}

// ListByDateRange returns active events overlapping [from, to]. Both bounds
// are required.
func (s *Service) ListByDateRange(ctx context.Context, ownerID uint, from, to time.Time) ([]Event, error) {
	v := &ValidationError{}
	if from.IsZero() {
		v.Add("start", "start date is required")
	}
	if to.IsZero() {
		v.Add("end", "end date is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		v.Add("end", "end date must not be before start date")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Repo.ListAll(ctx, ownerID, Filter{Status: StatusActive, Range: &DateRange{From: from, To: to}})
}

func (s *Service) ListByCategory(ctx context.Context, ownerID uint, category string, page, limit int) (*Page, error) {
	if !ValidCategory(category) {
		return nil, invalid("category", "unknown category "+category)
	}
	return s.ListEvents(ctx, ownerID, Filter{Category: category, Status: StatusActive, Page: page, Limit: limit})
}

// ExportEvents returns every event matching f, unpaginated.
func (s *Service) ExportEvents(ctx context.Context, ownerID uint, f Filter) ([]Event, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	f = f.normalized()
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Repo.ListAll(ctx, ownerID, f)
}

// ===========================
// 📊 Event Stats
func (s *Service) GetStats(ctx context.Context, ownerID uint) (*Stats, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Repo.Stats(ctx, ownerID, s.now())
}
