package ports

import (
	"context"

	"github.com/layer-3/sessionkit/core"
)

// EventPublisher publishes key lifecycle events to other instances
type EventPublisher interface {
	PublishKeyEvent(ctx context.Context, event core.KeyEvent) error
}
