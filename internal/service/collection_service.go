package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/realtime"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"

	"github.com/rs/zerolog/log"
)

// CollectionService is the server side of the sync protocol: the mirrored
// collections addressed by id. Every write that changes a row is announced
// as a dto.ChangeEvent.
type CollectionService interface {
	List(ctx context.Context, collection string, since *time.Time) ([]model.Record, error)
	Insert(ctx context.Context, collection string, raw []byte) (model.Record, error)
	Upsert(ctx context.Context, collection, id string, raw []byte) (model.Record, bool, error)
	Update(ctx context.Context, collection, id string, raw []byte) (model.Record, bool, error)
	Delete(ctx context.Context, collection, id string) (bool, error)
}

type collectionService struct {
	repos *repository.Registry
	pub   realtime.Publisher
	now   func() time.Time
}

func NewCollectionService(repos *repository.Registry, pub realtime.Publisher) CollectionService {
	return &collectionService{repos: repos, pub: pub, now: time.Now}
}

func (s *collectionService) List(ctx context.Context, collection string, since *time.Time) ([]model.Record, error) {
	repo, err := s.repos.Get(collection)
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, since)
}

func (s *collectionService) Insert(ctx context.Context, collection string, raw []byte) (model.Record, error) {
	repo, rec, err := s.prepare(collection, "", raw)
	if err != nil {
		return model.Record{}, err
	}
	out, err := repo.Insert(ctx, rec)
	if err != nil {
		return model.Record{}, err
	}
	s.announce(ctx, dto.ChangeInsert, collection, out, "")
	return out, nil
}

func (s *collectionService) Upsert(ctx context.Context, collection, id string, raw []byte) (model.Record, bool, error) {
	repo, rec, err := s.prepare(collection, id, raw)
	if err != nil {
		return model.Record{}, false, err
	}
	out, applied, err := repo.Upsert(ctx, rec)
	if err != nil {
		return model.Record{}, false, err
	}
	if applied {
		s.announce(ctx, dto.ChangeUpdate, collection, out, "")
	}
	return out, applied, nil
}

func (s *collectionService) Update(ctx context.Context, collection, id string, raw []byte) (model.Record, bool, error) {
	repo, rec, err := s.prepare(collection, id, raw)
	if err != nil {
		return model.Record{}, false, err
	}
	out, applied, err := repo.Update(ctx, rec)
	if err != nil {
		return model.Record{}, false, err
	}
	if applied {
		s.announce(ctx, dto.ChangeUpdate, collection, out, "")
	}
	return out, applied, nil
}

func (s *collectionService) Delete(ctx context.Context, collection, id string) (bool, error) {
	repo, err := s.repos.Get(collection)
	if err != nil {
		return false, err
	}
	deleted, err := repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.announce(ctx, dto.ChangeDelete, collection, model.Record{}, id)
	}
	return deleted, nil
}

// prepare resolves the repository and parses the body. When the route names
// an id, the document must carry the same one.
func (s *collectionService) prepare(collection, id string, raw []byte) (repository.CollectionRepository, model.Record, error) {
	repo, err := s.repos.Get(collection)
	if err != nil {
		return nil, model.Record{}, err
	}
	rec, err := model.RecordFromJSON(raw)
	if err != nil {
		return nil, model.Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if id != "" && rec.ID != id {
		return nil, model.Record{}, fmt.Errorf("%w: id %q no corpo difere de %q na rota", ErrInvalidInput, rec.ID, id)
	}
	return repo, rec, nil
}

// announce never fails the write: subscribers that miss an event catch up
// on their next delta sync.
func (s *collectionService) announce(ctx context.Context, typ, collection string, rec model.Record, oldID string) {
	ev := dto.ChangeEvent{
		Type:            typ,
		Collection:      collection,
		OldID:           oldID,
		CommitTimestamp: s.now().UTC(),
	}
	if len(rec.Data) > 0 {
		ev.Record = json.RawMessage(rec.Data)
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("collection", collection).Str("type", typ).Msg("collections: change event not published")
	}
}
