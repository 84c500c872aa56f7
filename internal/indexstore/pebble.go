package indexstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sh3r4rd/object_index/internal/model"
)

// PebbleStore keeps index records in an embedded pebble database. Values
// are msgpack-encoded records keyed by the raw filename.
type PebbleStore struct {
	db *pebble.DB

	// Writes to the same key are serialized so PutIf can compare and set.
	// An entry lives only while some writer holds or waits for it.
	locks *xsync.MapOf[string, *keyLock]
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// OpenPebbleStore opens or creates the database in dir. opts may be nil.
func OpenPebbleStore(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", dir, err)
	}

	return &PebbleStore{
		db:    db,
		locks: xsync.NewMapOf[string, *keyLock](),
	}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) Lookup(_ context.Context, filename string) (model.IndexRecord, bool, error) {
	if filename == "" {
		return model.IndexRecord{}, false, ErrEmptyKey
	}

	rec, ok, err := s.get(filename)
	if err != nil {
		return model.IndexRecord{}, false, newTransportError(OpLookup, filename, err)
	}

	return rec, ok, nil
}

func (s *PebbleStore) Put(_ context.Context, rec model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	unlock := s.lock(rec.Filename)
	defer unlock()

	if err := s.set(rec); err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	return nil
}

func (s *PebbleStore) PutIf(_ context.Context, rec model.IndexRecord, prev *model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	unlock := s.lock(rec.Filename)
	defer unlock()

	stored, ok, err := s.get(rec.Filename)
	if err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	switch {
	case prev == nil && ok:
		return ErrConflict
	case prev != nil && (!ok || !matches(stored, *prev)):
		return ErrConflict
	}

	if err := s.set(rec); err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	return nil
}

func (s *PebbleStore) Delete(_ context.Context, filename string) error {
	if filename == "" {
		return ErrEmptyKey
	}

	unlock := s.lock(filename)
	defer unlock()

	if err := s.db.Delete([]byte(filename), pebble.Sync); err != nil {
		return newTransportError(OpDelete, filename, err)
	}

	return nil
}

func (s *PebbleStore) lock(filename string) func() {
	l, _ := s.locks.Compute(filename, func(l *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			l = &keyLock{}
		}
		l.refs++
		return l, false
	})
	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		s.locks.Compute(filename, func(l *keyLock, _ bool) (*keyLock, bool) {
			l.refs--
			return l, l.refs == 0
		})
	}
}

func (s *PebbleStore) get(filename string) (model.IndexRecord, bool, error) {
	value, closer, err := s.db.Get([]byte(filename))
	if errors.Is(err, pebble.ErrNotFound) {
		return model.IndexRecord{}, false, nil
	}
	if err != nil {
		return model.IndexRecord{}, false, err
	}
	defer closer.Close()

	var rec model.IndexRecord
	if err := msgpack.Unmarshal(value, &rec); err != nil {
		return model.IndexRecord{}, false, fmt.Errorf("decode record: %w", err)
	}

	return rec, true, nil
}

func (s *PebbleStore) set(rec model.IndexRecord) error {
	value, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.db.Set([]byte(rec.Filename), value, pebble.Sync)
}
