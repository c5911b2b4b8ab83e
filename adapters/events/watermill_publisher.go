package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/nametag/core"
)

const (
	// IdentityTopic carries identity lifecycle events
	IdentityTopic = "nametag.identity"

	// UsernameChangedType is the event type emitted after a successful rename
	UsernameChangedType = "identity.username_changed"
)

// UsernameChangedEvent represents a username change
type UsernameChangedEvent struct {
	Type          string    `json:"type"`
	ID            int64     `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Username      string    `json:"username"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     IdentityTopic,
	}
}

// PublishUsernameChanged publishes a username change event
func (p *WatermillPublisher) PublishUsernameChanged(ctx context.Context, identity *core.Identity) error {
	event := UsernameChangedEvent{
		Type:          UsernameChangedType,
		ID:            identity.ID,
		WalletAddress: identity.WalletAddress,
		OccurredAt:    time.Now().UTC(),
	}
	if identity.Username != nil {
		event.Username = *identity.Username
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", UsernameChangedType)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops events. It is used when no event backend is configured.
type NopPublisher struct{}

func (NopPublisher) PublishUsernameChanged(context.Context, *core.Identity) error { return nil }
