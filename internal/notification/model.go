package notification

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// NotificationLog - each reminder delivery attempt
type NotificationLog struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	UserID     uint                        `gorm:"not null;index" json:"user_id"`
	EventID    uint                        `gorm:"not null;index" json:"event_id"`
	ReminderID uint                        `gorm:"not null;index" json:"reminder_id"`
	Channel    string                      `gorm:"size:20;not null" json:"channel"` // email, push, sms
	Subject    string                      `gorm:"size:255" json:"subject,omitempty"`
	Body       string                      `gorm:"type:text;not null" json:"body"`
	Recipients datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"recipients"`
	Status     string                      `gorm:"size:20;default:'pending'" json:"status"`
	Error      *string                     `json:"error,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// FCMDeviceToken - device tokens used by the push channel
type FCMDeviceToken struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_user_token" json:"user_id"`
	DeviceToken string    `gorm:"size:255;not null;index:idx_user_token,unique" json:"device_token"`
	DeviceType  string    `gorm:"size:20" json:"device_type"` // android, ios, web
	DeviceName  string    `gorm:"size:100" json:"device_name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	LastUsedAt  time.Time `json:"last_used_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InAppMessage is the payload published for in-app display.
type InAppMessage struct {
	UserID     uint      `json:"user_id"`
	EventID    uint      `json:"event_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Channel    string    `json:"channel"`
	EventStart time.Time `json:"event_start"`
	CreatedAt  time.Time `json:"created_at"`
}
