package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/sessionkit/core"
	"github.com/layer-3/sessionkit/ports"
)

// KeyTopic carries key lifecycle events
const KeyTopic = "sessionkit.keys"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     KeyTopic,
	}
}

// PublishKeyEvent publishes a key lifecycle event
func (p *WatermillPublisher) PublishKeyEvent(ctx context.Context, event core.KeyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// DecodeKeyEvent reads a key event back out of a message
func DecodeKeyEvent(msg *message.Message) (core.KeyEvent, error) {
	var event core.KeyEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return core.KeyEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
