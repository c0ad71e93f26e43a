package domain

import (
	"encoding/json"
	"time"
)

type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionUpdate ChangeAction = "UPDATE"
	ActionDelete ChangeAction = "DELETE"
)

func ValidateAction(action ChangeAction) error {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
		return nil
	default:
		return ErrInvalidFilter
	}
}

// ChangeLogEntry is one captured row mutation. Entries are written by the
// change-capture hooks inside the mutating transaction and never modified
// afterwards by the application.
type ChangeLogEntry struct {
	ID         int64
	EntryID    string
	TableName  string
	RecordID   string
	Action     ChangeAction
	Before     json.RawMessage
	After      json.RawMessage
	ActorID    *int64
	OccurredAt time.Time
}

// ActorProfile is the minimal user projection attached to change-log entries
// on the read side.
type ActorProfile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type EnrichedChangeLogEntry struct {
	ChangeLogEntry
	Actor *ActorProfile
}

type ChangeLogFilter struct {
	TableName  string
	RecordID   string
	Action     ChangeAction
	ActorID    *int64
	OccurredAt TimeRange
	Limit      int
	Offset     int
}

// TimeRange is an inclusive occurred-at window; zero bounds are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

type ChangeLogPage struct {
	Entries    []EnrichedChangeLogEntry
	TotalCount int64
	Limit      int
	Offset     int
	HasMore    bool
}
