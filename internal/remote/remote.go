// Package remote is the shop client's view of the central backend: the seven
// collections addressed by id, plus a health probe.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

var (
	// ErrConflict is returned by Insert when the id already exists remotely.
	ErrConflict = errors.New("remote: record already exists")
	// ErrNotFound is returned by Update when the id does not exist remotely.
	ErrNotFound     = errors.New("remote: record not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrUnavailable covers transport failures and 5xx responses.
	ErrUnavailable = errors.New("remote: unavailable")
)

// Backend is implemented by HTTPClient and by Memory.
type Backend interface {
	FetchAll(ctx context.Context, collection string) ([]model.Record, error)
	// FetchUpdatedSince returns records with updated_at strictly after since,
	// oldest first.
	FetchUpdatedSince(ctx context.Context, collection string, since time.Time) ([]model.Record, error)
	Insert(ctx context.Context, collection string, rec model.Record) error
	Upsert(ctx context.Context, collection string, rec model.Record) error
	Update(ctx context.Context, collection string, rec model.Record) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

// CollectionResponse is the body of GET /v1/collections/:collection.
type CollectionResponse struct {
	Collection string         `json:"collection"`
	Records    []model.Record `json:"records"`
	ServerTime time.Time      `json:"server_time"`
}

// WriteResponse is the body of a successful write. Applied is false when the
// server kept a newer copy of the row.
type WriteResponse struct {
	Applied bool          `json:"applied"`
	Record  *model.Record `json:"record,omitempty"`
}
