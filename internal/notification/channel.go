package notification

import (
	"context"
	"errors"
)

// ErrChannelUnavailable means the channel is not configured or has no
// way to reach the user. Such reminders are skipped, not failed.
var ErrChannelUnavailable = errors.New("notification channel unavailable")

// Channel delivers one rendered message to a set of recipients.
type Channel interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// smsChannel has no provider behind it yet.
type smsChannel struct{}

func NewSMSChannel() Channel {
	return smsChannel{}
}

func (smsChannel) Send(context.Context, []string, string, string) error {
	return ErrChannelUnavailable
}
