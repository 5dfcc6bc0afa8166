package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UnitOfWork buffers the writes of one event on top of a Reader. Reads see
// buffered writes. Nothing reaches the backend until Changes are committed.
type UnitOfWork struct {
	base    Reader
	pending map[string]*Change
	order   []string
}

// NewUnitOfWork starts an empty unit of work over base.
func NewUnitOfWork(base Reader) *UnitOfWork {
	return &UnitOfWork{base: base, pending: make(map[string]*Change)}
}

func pendingKey(kind, id string) string {
	return kind + "\x00" + id
}

func (u *UnitOfWork) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	if c, ok := u.pending[pendingKey(kind, id)]; ok {
		if c.Op == OpDelete {
			return nil, false, nil
		}
		return c.Body, true, nil
	}
	return u.base.Get(ctx, kind, id)
}

// Scan merges buffered writes into the backend scan.
func (u *UnitOfWork) Scan(ctx context.Context, kind, prefix string, fn func(id string, body []byte) error) error {
	overlay := make(map[string]*Change)
	for _, c := range u.pending {
		if c.Kind == kind && strings.HasPrefix(c.ID, prefix) {
			overlay[c.ID] = c
		}
	}
	if len(overlay) == 0 {
		return u.base.Scan(ctx, kind, prefix, fn)
	}

	merged := make(map[string][]byte)
	err := u.base.Scan(ctx, kind, prefix, func(id string, body []byte) error {
		merged[id] = body
		return nil
	})
	if err != nil {
		return err
	}
	for id, c := range overlay {
		if c.Op == OpDelete {
			delete(merged, id)
			continue
		}
		merged[id] = c.Body
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(id, merged[id]); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put buffers an encoded entity.
func (u *UnitOfWork) Put(kind, id string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	u.record(&Change{Op: OpPut, Kind: kind, ID: id, Body: body})
	return nil
}

// Delete buffers a deletion.
func (u *UnitOfWork) Delete(kind, id string) {
	u.record(&Change{Op: OpDelete, Kind: kind, ID: id})
}

func (u *UnitOfWork) record(c *Change) {
	key := pendingKey(c.Kind, c.ID)
	if _, ok := u.pending[key]; !ok {
		u.order = append(u.order, key)
	}
	u.pending[key] = c
}

// Changes returns the final write per entity in first-write order.
func (u *UnitOfWork) Changes() []Change {
	out := make([]Change, 0, len(u.order))
	for _, key := range u.order {
		out = append(out, *u.pending[key])
	}
	return out
}

// Len returns the number of distinct entities written.
func (u *UnitOfWork) Len() int {
	return len(u.order)
}
