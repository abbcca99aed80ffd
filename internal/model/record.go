package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a JSON object has no usable id.
var ErrInvalidRecord = errors.New("record: missing id")

// Record is a collection-agnostic row: the JSON document plus the two fields
// the sync layer reasons about. It marshals as the bare document.
type Record struct {
	ID        string
	UpdatedAt time.Time
	Data      json.RawMessage
}

type recordKeys struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordFromJSON copies raw and extracts id and updated_at from it.
func RecordFromJSON(raw []byte) (Record, error) {
	var k recordKeys
	if err := json.Unmarshal(raw, &k); err != nil {
		return Record{}, fmt.Errorf("record: %w", err)
	}
	if k.ID == "" {
		return Record{}, ErrInvalidRecord
	}
	data := make(json.RawMessage, len(raw))
	copy(data, raw)
	return Record{ID: k.ID, UpdatedAt: k.UpdatedAt.UTC(), Data: data}, nil
}

// NewRecord serialises an entity.
func NewRecord(e Entity) (Record, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return Record{}, fmt.Errorf("record: marshal %s: %w", e.CollectionName(), err)
	}
	return Record{ID: e.GetID(), UpdatedAt: e.GetUpdatedAt().UTC(), Data: raw}, nil
}

// Decode unmarshals the document into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// NewerThan reports whether r was written after other.
func (r Record) NewerThan(other Record) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Data) == 0 {
		return []byte("null"), nil
	}
	return r.Data, nil
}

func (r *Record) UnmarshalJSON(raw []byte) error {
	rec, err := RecordFromJSON(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
