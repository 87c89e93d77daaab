package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the wallet that submitted the transaction behind the
// event.
type ActorRef struct {
	Address string `json:"address"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version       int             `json:"version"`
	EventID       string          `json:"eventId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	TransactionID string          `json:"transactionId,omitempty"`
	BlockNumber   int64           `json:"blockNumber,omitempty"`
	Actor         *ActorRef       `json:"actor,omitempty"`
	Data          json.RawMessage `json:"data"`
}
