// Package eventbus publishes event lifecycle messages for other services.
package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeEventCreated      = "event.created"
	TypeEventUpdated      = "event.updated"
	TypeEventDeleted      = "event.deleted"
	TypeEventsBulkUpdated = "event.bulk_updated"
	TypeOccurrenceCreated = "event.occurrence_created"
	TypeReminderDelivered = "reminder.delivered"
	TypeEventsPurged      = "event.purged"
)

type Message struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OwnerID    uint                   `json:"owner_id"`
	EventID    uint                   `json:"event_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func NewMessage(msgType string, ownerID, eventID uint, at time.Time, data map[string]interface{}) Message {
	return Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		OwnerID:    ownerID,
		EventID:    eventID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// Publisher delivers messages. Implementations must be safe for
// concurrent use. Publish failures never roll back the change that
// produced the message.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NopPublisher drops everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
func (NopPublisher) Close() error                           { return nil }
