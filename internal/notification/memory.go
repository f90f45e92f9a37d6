package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.Mutex
	logs   []NotificationLog
	tokens []FCMDeviceToken
	nextID uint
}

// NewMemoryRepository keeps logs and device tokens in process.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) id() uint {
	r.nextID++
	return r.nextID
}

func (r *memoryRepository) CreateLog(_ context.Context, log *NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = r.id()
	now := time.Now()
	log.CreatedAt, log.UpdatedAt = now, now
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memoryRepository) UpdateLog(_ context.Context, log *NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.logs {
		if r.logs[i].ID == log.ID {
			r.logs[i].Status = log.Status
			r.logs[i].Error = log.Error
			r.logs[i].UpdatedAt = log.UpdatedAt
			return nil
		}
	}
	return nil
}

func (r *memoryRepository) ListLogs(_ context.Context, userID uint, limit int) ([]NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationLog, 0)
	for _, l := range r.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) SaveDeviceToken(_ context.Context, token *FCMDeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := range r.tokens {
		t := &r.tokens[i]
		if t.UserID == token.UserID && t.DeviceToken == token.DeviceToken {
			t.IsActive = true
			t.LastUsedAt = now
			t.DeviceType, t.DeviceName = token.DeviceType, token.DeviceName
			t.UpdatedAt = now
			*token = *t
			return nil
		}
	}
	token.ID = r.id()
	token.IsActive = true
	token.LastUsedAt, token.CreatedAt, token.UpdatedAt = now, now, now
	r.tokens = append(r.tokens, *token)
	return nil
}

func (r *memoryRepository) ActiveDeviceTokens(_ context.Context, userID uint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.tokens {
		if t.UserID == userID && t.IsActive {
			out = append(out, t.DeviceToken)
		}
	}
	return out, nil
}

func (r *memoryRepository) RemoveDeviceToken(_ context.Context, userID uint, deviceToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		t := &r.tokens[i]
		if t.UserID == userID && t.DeviceToken == deviceToken && t.IsActive {
			t.IsActive = false
			return nil
		}
	}
	return ErrTokenNotFound
}

func (r *memoryRepository) DeactivateTokens(_ context.Context, deviceTokens []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		for _, d := range deviceTokens {
			if r.tokens[i].DeviceToken == d {
				r.tokens[i].IsActive = false
			}
		}
	}
	return nil
}
