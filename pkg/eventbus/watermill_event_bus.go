package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/archonhq/archon/pkg/events"
	"github.com/archonhq/archon/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		tracer:        otel.Tracer("eventbus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			if eb.dispatch(ctx, msg) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		}
	}()

	return nil
}

// dispatch routes one message to its handler. It reports whether the
// message should be acknowledged; unroutable event types are dropped
// rather than redelivered forever.
func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) bool {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	spanCtx, span := otelhelper.StartSpan(ctx, eb.tracer, "eventbus consume",
		attribute.String(otelhelper.EventIDKey, msg.UUID),
		attribute.String("event.type", string(eventType)),
	)
	defer span.End()

	handler, exists := eb.subscriptions[eventType]
	if !exists {
		return true
	}

	event := newEvent(eventType)
	if event == nil {
		otelhelper.SetError(span, fmt.Errorf("unknown event type %q", eventType))

		return true
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		otelhelper.SetError(span, err)

		return false
	}

	if err := handler(spanCtx, event); err != nil {
		otelhelper.SetError(span, err)

		return false
	}

	return true
}

func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.WorkflowStartedEvent:
		return &events.WorkflowStarted{}
	case events.WorkflowTransitionedEvent:
		return &events.WorkflowTransitioned{}
	case events.WorkflowCancelledEvent:
		return &events.WorkflowCancelled{}
	case events.WorkflowCompletedEvent:
		return &events.WorkflowCompleted{}
	case events.FeatureExecutedEvent:
		return &events.FeatureExecuted{}
	case events.FeatureFailedEvent:
		return &events.FeatureFailed{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}
