package model

import (
	"encoding/json"
	"time"
)

// Operation is the kind of write a queued mutation replays on the remote.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

// MutationQueueItem is a not-yet-confirmed outbound write. Payload is an
// independent copy of the record taken at enqueue time.
type MutationQueueItem struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Operation  Operation       `json:"operation"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"record_id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Confirmed  bool            `json:"confirmed"`
}
