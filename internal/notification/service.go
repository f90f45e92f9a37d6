package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharath018/calendar-backend/config"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/eventbus"
	"github.com/sharath018/calendar-backend/internal/user"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

var (
	ErrInvalidDevice = errors.New("invalid device token")
	DeviceTypes      = []string{"android", "ios", "web"}
)

// availability is implemented by channels that know whether they are
// configured.
type availability interface {
	Available() bool
}

func (e *EmailSender) Available() bool { return e.configured() }
func (f *FCMChannel) Available() bool  { return f.client != nil }
func (smsChannel) Available() bool     { return false }

// Service delivers reminders and manages the push device registry.
type Service struct {
	Repo   Repository
	Email  Channel
	Push   Channel
	SMS    Channel
	Redis  *redis.Client
	Bus    eventbus.Publisher
	Logger *slog.Logger
}

func NewService(ctx context.Context, repo Repository, cfg *config.Config, rdb *redis.Client, bus eventbus.Publisher, logger *slog.Logger) *Service {
	s := &Service{
		Repo:   repo,
		Email:  NewEmailSender(cfg),
		SMS:    NewSMSChannel(),
		Redis:  rdb,
		Bus:    bus,
		Logger: logger,
	}
	push := NewFCMChannel(ctx, cfg)
	push.Prune = s.pruneTokens
	s.Push = push
	return s
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// InAppChannel is the Redis pub/sub channel carrying a user's in-app
// notifications.
func InAppChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

func (s *Service) channel(name string) Channel {
	var ch Channel
	switch name {
	case event.ReminderEmail:
		ch = s.Email
	case event.ReminderPush:
		ch = s.Push
	case event.ReminderSMS:
		ch = s.SMS
	}
	if ch == nil {
		return nil
	}
	if a, ok := ch.(availability); ok && !a.Available() {
		return nil
	}
	return ch
}

func (s *Service) recipients(ctx context.Context, u *user.User, channel string) ([]string, error) {
	switch channel {
	case event.ReminderEmail:
		if u.Email == "" {
			return nil, nil
		}
		return []string{u.Email}, nil
	case event.ReminderPush:
		return s.Repo.ActiveDeviceTokens(ctx, u.ID)
	case event.ReminderSMS:
		if u.Phone == "" {
			return nil, nil
		}
		return []string{u.Phone}, nil
	}
	return nil, fmt.Errorf("unsupported channel: %s", channel)
}

// ===========================
// 🔔 Deliver Reminder
// Deliver sends reminder r for event e to its owner u. It returns
// ErrChannelUnavailable, untouched, when the channel cannot be used.
func (s *Service) Deliver(ctx context.Context, u *user.User, e *event.Event, r event.Reminder) error {
	ch := s.channel(r.Type)
	if ch == nil {
		return ErrChannelUnavailable
	}
	to, err := s.recipients(ctx, u, r.Type)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return ErrChannelUnavailable
	}

	msg, err := render(e, r, u.Preferences.Location())
	if err != nil {
		return err
	}
	body := msg.Text
	if r.Type == event.ReminderEmail {
		body = msg.HTML
	}

	entry := &NotificationLog{
		UserID:     u.ID,
		EventID:    e.ID,
		ReminderID: r.ID,
		Channel:    r.Type,
		Subject:    msg.Subject,
		Body:       body,
		Recipients: to,
		Status:     StatusPending,
	}
	if err := s.Repo.CreateLog(ctx, entry); err != nil {
		return fmt.Errorf("create notification log: %w", err)
	}

	sendErr := ch.Send(ctx, to, msg.Subject, body)
	entry.Status = StatusSent
	if sendErr != nil {
		errMsg := sendErr.Error()
		entry.Status = StatusFailed
		entry.Error = &errMsg
	}
	entry.UpdatedAt = time.Now()
	if err := s.Repo.UpdateLog(context.WithoutCancel(ctx), entry); err != nil {
		s.logger().Warn("notification log update failed", "log_id", entry.ID, "error", err)
	}
	if sendErr != nil {
		return sendErr
	}

	s.pushInApp(ctx, u, e, r, msg)
	if s.Bus != nil {
		m := eventbus.NewMessage(eventbus.TypeReminderDelivered, u.ID, e.ID, time.Now(), map[string]interface{}{
			"reminder_id": r.ID, "channel": r.Type,
		})
		if err := s.Bus.Publish(context.WithoutCancel(ctx), m); err != nil {
			s.logger().Warn("event bus publish failed", "type", m.Type, "error", err)
		}
	}
	return nil
}

func (s *Service) pushInApp(ctx context.Context, u *user.User, e *event.Event, r event.Reminder, msg message) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(InAppMessage{
		UserID:     u.ID,
		EventID:    e.ID,
		Title:      msg.Subject,
		Message:    msg.Text,
		Channel:    r.Type,
		EventStart: e.Start,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.Redis.Publish(ctx, InAppChannel(u.ID), payload).Err(); err != nil {
		s.logger().Warn("in-app publish failed", "user_id", u.ID, "error", err)
	}
}

func (s *Service) pruneTokens(ctx context.Context, tokens []string) {
	if err := s.Repo.DeactivateTokens(ctx, tokens); err != nil {
		s.logger().Warn("failed to deactivate stale device tokens", "count", len(tokens), "error", err)
		return
	}
	s.logger().Info("deactivated stale device tokens", "count", len(tokens))
}

// ===========================
// 📜 Delivery Logs
func (s *Service) ListLogs(ctx context.Context, userID uint, limit int) ([]NotificationLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}
	return s.Repo.ListLogs(ctx, userID, limit)
}

// ===========================
// 📱 Device Tokens
func (s *Service) RegisterDevice(ctx context.Context, userID uint, deviceToken, deviceType, deviceName string) (*FCMDeviceToken, error) {
	deviceToken = strings.TrimSpace(deviceToken)
	deviceType = strings.ToLower(strings.TrimSpace(deviceType))
	if deviceToken == "" || len(deviceToken) > 255 {
		return nil, ErrInvalidDevice
	}
	if deviceType != "" && !validDeviceType(deviceType) {
		return nil, fmt.Errorf("%w: device_type must be one of %s", ErrInvalidDevice, strings.Join(DeviceTypes, ", "))
	}
	token := &FCMDeviceToken{
		UserID:      userID,
		DeviceToken: deviceToken,
		DeviceType:  deviceType,
		DeviceName:  strings.TrimSpace(deviceName),
	}
	if err := s.Repo.SaveDeviceToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Service) RemoveDevice(ctx context.Context, userID uint, deviceToken string) error {
	return s.Repo.RemoveDeviceToken(ctx, userID, strings.TrimSpace(deviceToken))
}

func validDeviceType(t string) bool {
	for _, d := range DeviceTypes {
		if d == t {
			return true
		}
	}
	return false
}
