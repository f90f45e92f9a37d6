package user

import (
	"time"
)

// User is the owner of events. Accounts are provisioned from the command
// line; this package never handles credentials.
type User struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	FullName    string      `gorm:"size:100;not null" json:"full_name"`
	Email       string      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone       string      `gorm:"size:20" json:"phone,omitempty"`
	Preferences Preferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Preferences struct {
	Timezone           string `gorm:"size:64;not null" json:"timezone"`
	EmailNotifications bool   `gorm:"not null" json:"email_notifications"`
	PushNotifications  bool   `gorm:"not null" json:"push_notifications"`
	SMSNotifications   bool   `gorm:"not null" json:"sms_notifications"`
	// ReminderTime is the lead time in minutes for reminders created
	// without one.
	ReminderTime int `gorm:"not null" json:"reminder_time"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Timezone:           "UTC",
		EmailNotifications: true,
		ReminderTime:       15,
	}
}

// Location resolves the preferred timezone, falling back to UTC.
func (p Preferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ChannelEnabled reports whether the user accepts reminders on channel.
func (p Preferences) ChannelEnabled(channel string) bool {
	switch channel {
	case "email":
		return p.EmailNotifications
	case "push":
		return p.PushNotifications
	case "sms":
		return p.SMSNotifications
	}
	return false
}
