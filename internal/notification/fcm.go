package notification

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sharath018/calendar-backend/config"
	"google.golang.org/api/option"
)

// FCM allows at most 500 tokens per multicast.
const fcmBatchSize = 500

// FCMChannel implements Channel for Firebase Cloud Messaging. Recipients
// are device tokens; subject becomes the notification title.
type FCMChannel struct {
	client *messaging.Client
	// Prune, when set, receives tokens FCM reports as unregistered.
	Prune func(ctx context.Context, tokens []string)
}

// NewFCMChannel initializes FCM with service account credentials. A missing
// or broken configuration yields a channel that reports itself unavailable.
func NewFCMChannel(ctx context.Context, cfg *config.Config) *FCMChannel {
	if cfg.FCMCredentialsPath == "" {
		slog.Warn("FCM not configured, push reminders disabled")
		return &FCMChannel{}
	}

	var fbCfg *firebase.Config
	if cfg.FCMProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FCMProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsFile(cfg.FCMCredentialsPath))
	if err != nil {
		slog.Error("firebase app init failed, push reminders disabled", "error", err)
		return &FCMChannel{}
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		slog.Error("FCM client init failed, push reminders disabled", "error", err)
		return &FCMChannel{}
	}

	slog.Info("FCM initialized", "project_id", cfg.FCMProjectID)
	return &FCMChannel{client: client}
}

func (f *FCMChannel) Send(ctx context.Context, tokens []string, title, body string) error {
	if f.client == nil || len(tokens) == 0 {
		return ErrChannelUnavailable
	}

	var stale []string
	sent, failed := 0, 0
	var lastErr error
	for i := 0; i < len(tokens); i += fcmBatchSize {
		end := min(i+fcmBatchSize, len(tokens))
		batch := tokens[i:end]

		resp, err := f.client.SendEachForMulticast(ctx, multicast(batch, title, body))
		if err != nil {
			failed += len(batch)
			lastErr = err
			continue
		}
		sent += resp.SuccessCount
		failed += resp.FailureCount
		for idx, r := range resp.Responses {
			if r.Success {
				continue
			}
			lastErr = r.Error
			if messaging.IsUnregistered(r.Error) {
				stale = append(stale, batch[idx])
			}
		}
	}

	if len(stale) > 0 && f.Prune != nil {
		f.Prune(context.WithoutCancel(ctx), stale)
	}
	if sent == 0 {
		return fmt.Errorf("push failed for all %d tokens: %w", len(tokens), lastErr)
	}
	if failed > 0 {
		slog.Warn("push partially delivered", "sent", sent, "failed", failed, "error", lastErr)
	}
	return nil
}

func multicast(tokens []string, title, body string) *messaging.MulticastMessage {
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "calendar_reminders",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", Badge: &badge},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
			},
		},
	}
}
