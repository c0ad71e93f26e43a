package domain

import (
	"encoding/json"
	"time"
)

const EventTypeQuotationApproved = "quotation.approved"

// EventEnvelope is the payload delivered for business events raised inside an
// audited unit of work and dispatched through the outbox.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	ProjectID  int64           `json:"project_id"`
	ActorID    *int64          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
