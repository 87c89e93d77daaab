// Package outbox writes domain events in the same database transaction as
// the state change they describe. The outbox-publisher binary drains them.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

const currentEnvelopeVersion = 1

// DomainEvent is what a transition hands to Emit. AggregateType may be
// left empty; it is derived from EventType.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	TransactionID uuid.UUID
	BlockNumber   int64
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit stores the event inside tx so it is published only if the surrounding
// transition commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := s.normalize(&event); err != nil {
		return err
	}

	envelope, err := s.envelope(event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}); err != nil {
		return err
	}

	if s.logg != nil && ctx != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
		}), "outbox event queued")
	}
	return nil
}

func (s *Service) normalize(event *DomainEvent) error {
	aggregate := event.EventType.Aggregate()
	switch {
	case aggregate == "":
		return fmt.Errorf("unknown event type %q", event.EventType)
	case event.AggregateType == "":
		event.AggregateType = aggregate
	case event.AggregateType != aggregate:
		return fmt.Errorf("event %s belongs to aggregate %s, not %s", event.EventType, aggregate, event.AggregateType)
	}
	if event.AggregateID == "" {
		return errors.New("aggregate id required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if event.Version == 0 {
		event.Version = currentEnvelopeVersion
	}
	return nil
}

func (s *Service) envelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	envelope := PayloadEnvelope{
		Version:     event.Version,
		EventID:     uuid.NewString(),
		OccurredAt:  event.OccurredAt,
		BlockNumber: event.BlockNumber,
		Actor:       event.Actor,
		Data:        data,
	}
	if event.TransactionID != uuid.Nil {
		envelope.TransactionID = event.TransactionID.String()
	}
	return envelope, nil
}
