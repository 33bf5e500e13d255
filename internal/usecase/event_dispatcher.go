package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// EventHandlerFunc applies the side effects of one event type.
type EventHandlerFunc func(ctx context.Context, event *stripe.Event) error

// EventDispatcher routes verified events to the handler registered for their type.
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[stripe.EventType]EventHandlerFunc
	logger   *zap.Logger
}

// NewEventDispatcher creates an empty dispatch table
func NewEventDispatcher(logger *zap.Logger) *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[stripe.EventType]EventHandlerFunc),
		logger:   logger,
	}
}

// Register binds a handler to an event type. Each type has at most one handler.
func (d *EventDispatcher) Register(eventType stripe.EventType, handler EventHandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", eventType)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[eventType]; exists {
		return fmt.Errorf("%w: %s", domainErrors.ErrHandlerAlreadyRegistered, eventType)
	}
	d.handlers[eventType] = handler
	return nil
}

// Handles reports whether a handler is registered for eventType
func (d *EventDispatcher) Handles(eventType stripe.EventType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// EventTypes lists the registered types in lexical order
func (d *EventDispatcher) EventTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler for event synchronously. Unknown types are
// acknowledged as a no-op. Handler failures come back as *HandlerError.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *stripe.Event) error {
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Info("Ignoring unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil
	}

	if err := handler(ctx, event); err != nil {
		var handlerErr *domainErrors.HandlerError
		if errors.As(err, &handlerErr) {
			return err
		}
		return &domainErrors.HandlerError{
			EventID:   event.ID,
			EventType: string(event.Type),
			Err:       err,
		}
	}
	return nil
}
