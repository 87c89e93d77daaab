// Package registry resolves stored outbox rows into the topic and typed
// payload the publisher needs.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is a decoded outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row the dispatcher should dead-letter at once.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func rejectf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// route groups the event types that share a topic and payload schema.
type route struct {
	topic   string
	factory func() interface{}
	events  []enums.OutboxEventType
}

// NewEventRegistry builds the registry from the configured topic names.
// Course transitions, custody movements and contract changes each go to
// their own topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	missing := make([]error, 0, 3)
	for name, topic := range map[string]string{
		"courses":  cfg.CoursesTopic,
		"custody":  cfg.CustodyTopic,
		"contract": cfg.ContractTopic,
	} {
		if topic == "" {
			missing = append(missing, fmt.Errorf("%s topic is required", name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	routes := []route{
		{
			topic:   cfg.CoursesTopic,
			factory: func() interface{} { return &payloads.CourseTransitionEvent{} },
			events: []enums.OutboxEventType{
				enums.EventCoursePurchased,
				enums.EventCourseRepurchased,
				enums.EventCourseActivated,
				enums.EventCourseDeactivated,
			},
		},
		{
			topic:   cfg.CustodyTopic,
			factory: func() interface{} { return &payloads.FundsMovedEvent{} },
			events: []enums.OutboxEventType{
				enums.EventFundsWithdrawn,
				enums.EventFundsDeposited,
				enums.EventEmergencyWithdrawn,
			},
		},
		{
			topic:   cfg.ContractTopic,
			factory: func() interface{} { return &payloads.OwnershipTransferredEvent{} },
			events:  []enums.OutboxEventType{enums.EventOwnershipTransferred},
		},
		{
			topic:   cfg.ContractTopic,
			factory: func() interface{} { return &payloads.ContractStatusEvent{} },
			events: []enums.OutboxEventType{
				enums.EventContractPaused,
				enums.EventContractUnpaused,
				enums.EventContractDestroyed,
			},
		},
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, rt := range routes {
		for _, eventType := range rt.events {
			reg.entries[eventType] = EventDescriptor{
				EventType:      eventType,
				AggregateType:  eventType.Aggregate(),
				Topic:          rt.topic,
				PayloadFactory: rt.factory,
			}
		}
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable since the row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, rejectf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, rejectf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == "":
		return nil, rejectf("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, rejectf("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, rejectf("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
