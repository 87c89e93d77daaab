package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

type fakeDLQAdmin struct {
	entries  []models.OutboxDLQ
	requeued []uuid.UUID
}

func (f *fakeDLQAdmin) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	return f.entries, nil
}

func (f *fakeDLQAdmin) Requeue(ctx context.Context, eventID uuid.UUID) error {
	f.requeued = append(f.requeued, eventID)
	return nil
}

func TestRunDLQCommandRequeue(t *testing.T) {
	admin := &fakeDLQAdmin{}
	id := uuid.New()
	var out bytes.Buffer

	ran, err := runDLQCommand(context.Background(), &out, admin, false, id.String(), 0)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []uuid.UUID{id}, admin.requeued)

	ran, err = runDLQCommand(context.Background(), &out, admin, false, "not-a-uuid", 0)
	assert.True(t, ran)
	assert.Error(t, err)
}

func TestRunDLQCommandList(t *testing.T) {
	id := uuid.New()
	admin := &fakeDLQAdmin{entries: []models.OutboxDLQ{{
		EventID:      id,
		EventType:    enums.EventContractPaused,
		AggregateID:  "0xabc",
		ErrorReason:  enums.OutboxDLQReasonNoPublisher,
		AttemptCount: 3,
		FailedAt:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}}}
	var out bytes.Buffer

	ran, err := runDLQCommand(context.Background(), &out, admin, true, "", 10)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Contains(t, out.String(), id.String())
	assert.Contains(t, out.String(), "no_publisher")
	assert.Contains(t, out.String(), "2026-09-01T09:00:00Z")
}

func TestRunDLQCommandNoop(t *testing.T) {
	ran, err := runDLQCommand(context.Background(), &bytes.Buffer{}, &fakeDLQAdmin{}, false, "", 0)
	require.NoError(t, err)
	assert.False(t, ran)
}
