// Package eventbus publishes and consumes execution lifecycle events.
package eventbus

import (
	"context"

	"github.com/dukex/blockflow/pkg/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// PublishAll publishes every event keyed by execution id and stops at the first error.
func PublishAll(ctx context.Context, publisher EventPublisher, executionID string, list []events.Event) error {
	for _, event := range list {
		if err := publisher.Publish(ctx, executionID, event); err != nil {
			return err
		}
	}

	return nil
}
