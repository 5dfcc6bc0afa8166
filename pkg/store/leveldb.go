package store

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB stores entities under "<kind>\x00<id>" keys.
type LevelDB struct {
	db   *leveldb.DB
	sync bool
}

// OpenLevelDB opens or creates a database at path.
func OpenLevelDB(path string, sync bool) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &LevelDB{db: db, sync: sync}, nil
}

func levelKey(kind, id string) []byte {
	return []byte(kind + "\x00" + id)
}

func (l *LevelDB) Get(_ context.Context, kind, id string) ([]byte, bool, error) {
	body, err := l.db.Get(levelKey(kind, id), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}
	return body, true, nil
}

func (l *LevelDB) Scan(ctx context.Context, kind, prefix string, fn func(id string, body []byte) error) error {
	ns := len(kind) + 1
	iter := l.db.NewIterator(util.BytesPrefix(levelKey(kind, prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := iter.Key()
		body := append([]byte(nil), iter.Value()...)
		if err := fn(string(key[ns:]), body); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", kind, err)
	}
	return nil
}

func (l *LevelDB) Commit(_ context.Context, changes []Change) error {
	batch := new(leveldb.Batch)
	for _, c := range changes {
		switch c.Op {
		case OpPut:
			batch.Put(levelKey(c.Kind, c.ID), c.Body)
		case OpDelete:
			batch.Delete(levelKey(c.Kind, c.ID))
		}
	}
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: l.sync}); err != nil {
		return fmt.Errorf("failed to commit %d changes: %w", len(changes), err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
