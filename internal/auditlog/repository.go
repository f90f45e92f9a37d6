package auditlog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	GetByFilter(ctx context.Context, filter AuditLogFilter) ([]AuditLog, int64, error)
	GetByID(ctx context.Context, userID, id uint) (*AuditLog, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts a new audit log entry
func (r *repository) Create(ctx context.Context, log *AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) filtered(ctx context.Context, filter AuditLogFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&AuditLog{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.Action != "" {
		query = query.Where("action ILIKE ?", "%"+filter.Action+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	return query
}

// GetByFilter retrieves audit logs with filtering and pagination
func (r *repository) GetByFilter(ctx context.Context, filter AuditLogFilter) ([]AuditLog, int64, error) {
	filter.normalize()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []AuditLog
	err := r.filtered(ctx, filter).
		Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// GetByID retrieves one of the user's audit logs
func (r *repository) GetByID(ctx context.Context, userID, id uint) (*AuditLog, error) {
	var log AuditLog
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

type memoryRepository struct {
	mu     sync.Mutex
	logs   []AuditLog
	nextID uint
}

// NewMemoryRepository keeps audit entries in process.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Create(_ context.Context, log *AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	log.ID = r.nextID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memoryRepository) GetByFilter(_ context.Context, filter AuditLogFilter) ([]AuditLog, int64, error) {
	filter.normalize()
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []AuditLog
	for _, l := range r.logs {
		switch {
		case filter.UserID != nil && (l.UserID == nil || *l.UserID != *filter.UserID),
			filter.EventID != nil && (l.EventID == nil || *l.EventID != *filter.EventID),
			filter.Action != "" && !strings.Contains(strings.ToLower(l.Action), strings.ToLower(filter.Action)),
			filter.Status != "" && l.Status != filter.Status,
			filter.FromDate != nil && l.CreatedAt.Before(*filter.FromDate),
			filter.ToDate != nil && l.CreatedAt.After(*filter.ToDate):
			continue
		}
		matched = append(matched, l)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	from := (filter.Page - 1) * filter.Limit
	if from > len(matched) {
		from = len(matched)
	}
	to := from + filter.Limit
	if to > len(matched) {
		to = len(matched)
	}
	return matched[from:to], total, nil
}

func (r *memoryRepository) GetByID(_ context.Context, userID, id uint) (*AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id && l.UserID != nil && *l.UserID == userID {
			out := l
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
