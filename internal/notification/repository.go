package notification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("device token not found")

type Repository interface {
	// Logs
	CreateLog(ctx context.Context, log *NotificationLog) error
	UpdateLog(ctx context.Context, log *NotificationLog) error
	ListLogs(ctx context.Context, userID uint, limit int) ([]NotificationLog, error)

	// FCM device tokens
	SaveDeviceToken(ctx context.Context, token *FCMDeviceToken) error
	ActiveDeviceTokens(ctx context.Context, userID uint) ([]string, error)
	RemoveDeviceToken(ctx context.Context, userID uint, deviceToken string) error
	DeactivateTokens(ctx context.Context, deviceTokens []string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ------------------------------
// Logs
// ------------------------------

func (r *repository) CreateLog(ctx context.Context, log *NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) UpdateLog(ctx context.Context, log *NotificationLog) error {
	return r.db.WithContext(ctx).
		Model(&NotificationLog{}).
		Where("id = ?", log.ID).
		Updates(map[string]interface{}{
			"status":     log.Status,
			"error":      log.Error,
			"updated_at": log.UpdatedAt,
		}).Error
}

func (r *repository) ListLogs(ctx context.Context, userID uint, limit int) ([]NotificationLog, error) {
	var logs []NotificationLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ------------------------------
// Device tokens
// ------------------------------

// SaveDeviceToken creates the token or reactivates an existing one.
func (r *repository) SaveDeviceToken(ctx context.Context, token *FCMDeviceToken) error {
	var existing FCMDeviceToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_token = ?", token.UserID, token.DeviceToken).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		token.IsActive = true
		token.LastUsedAt = time.Now()
		return r.db.WithContext(ctx).Create(token).Error
	}
	if err != nil {
		return err
	}

	existing.IsActive = true
	existing.LastUsedAt = time.Now()
	existing.DeviceType = token.DeviceType
	existing.DeviceName = token.DeviceName
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*token = existing
	return nil
}

func (r *repository) ActiveDeviceTokens(ctx context.Context, userID uint) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&FCMDeviceToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Pluck("device_token", &tokens).Error
	return tokens, err
}

func (r *repository) RemoveDeviceToken(ctx context.Context, userID uint, deviceToken string) error {
	res := r.db.WithContext(ctx).
		Model(&FCMDeviceToken{}).
		Where("user_id = ? AND device_token = ? AND is_active = ?", userID, deviceToken, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *repository) DeactivateTokens(ctx context.Context, deviceTokens []string) error {
	if len(deviceTokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&FCMDeviceToken{}).
		Where("device_token IN ?", deviceTokens).
		Update("is_active", false).Error
}
