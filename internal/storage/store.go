// Package storage wraps LevelDB for raw key-value persistence.
//
// It is the persistent backend behind mixer.Store: the fixed regions
// (roots, subtree, state) and the per-nullifier records all live here.
// Thread-safe: LevelDB handles its own synchronization.
package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"mixerpool/internal/mixer"
)

// LevelStore is a LevelDB-backed mixer.Store.
type LevelStore struct {
	db *leveldb.DB
}

// Open opens or creates a LevelDB database at the given path. An empty path
// opens an in-memory database.
func Open(path string) (*LevelStore, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// OpenMemory opens an in-memory store, for tests and local runs.
func OpenMemory() (*LevelStore, error) {
	return Open("")
}

// Get retrieves a value by key. Returns found=false if the key is absent.
func (s *LevelStore) Get(key []byte) ([]byte, bool, error) {
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %x: %w", key, err)
	}
	return data, true, nil
}

// WriteBatch applies all writes atomically: either every pair lands or none
// does.
func (s *LevelStore) WriteBatch(kvs []mixer.KV) error {
	batch := new(leveldb.Batch)
	for _, kv := range kvs {
		batch.Put(kv.Key, kv.Value)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write batch of %d: %w", len(kvs), err)
	}
	return nil
}

// Close closes the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
