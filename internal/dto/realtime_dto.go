package dto

import (
	"encoding/json"
	"time"
)

// Change event types carried on the realtime channel.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is one row-level change on a remote collection. Record holds
// the new row for INSERT/UPDATE; OldID identifies the row for DELETE.
type ChangeEvent struct {
	Type            string          `json:"type"`
	Collection      string          `json:"collection"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldID           string          `json:"old_id,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}
