package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
)

// Load decodes the entity of type T stored under id.
func Load[T any, PT interface {
	*T
	entity.Record
}](ctx context.Context, r Reader, id string) (PT, bool, error) {
	kind := PT(new(T)).EntityKind()
	body, ok, err := r.Get(ctx, kind, id)
	if err != nil || !ok {
		return nil, false, err
	}
	out := PT(new(T))
	if err := json.Unmarshal(body, out); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return out, true, nil
}

// List decodes every entity of type T whose id starts with prefix. A limit
// of 0 returns all matches.
func List[T any, PT interface {
	*T
	entity.Record
}](ctx context.Context, r Reader, prefix string, limit int) ([]PT, error) {
	kind := PT(new(T)).EntityKind()
	var out []PT
	err := r.Scan(ctx, kind, prefix, func(id string, body []byte) error {
		item := PT(new(T))
		if err := json.Unmarshal(body, item); err != nil {
			return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			return ErrStopScan
		}
		return nil
	})
	return out, err
}

// Save buffers rec in the unit of work.
func Save(u *UnitOfWork, rec entity.Record) error {
	return u.Put(rec.EntityKind(), rec.EntityID(), rec)
}
