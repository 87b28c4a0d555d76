package mixer

import (
	"errors"
	"testing"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	data map[string][]byte
	// failWrites makes WriteBatch return an error, for rollback tests.
	failWrites bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *memStore) WriteBatch(kvs []KV) error {
	if m.failWrites {
		return errors.New("write failure injected")
	}
	for _, kv := range kvs {
		v := make([]byte, len(kv.Value))
		copy(v, kv.Value)
		m.data[string(kv.Key)] = v
	}
	return nil
}

func TestNullifierRegisterOnce(t *testing.T) {
	cfg := testConfig(t, 4, RootsCount, 1)
	store := newMemStore()
	reg := NewNullifierRegistry(store)

	n := testLeaf(cfg, 1)
	kv, err := reg.Register(n)
	if err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	// Nothing is spent until the staged write commits.
	if spent, _ := reg.Spent(n); spent {
		t.Fatal("nullifier spent before commit")
	}
	if err := store.WriteBatch([]KV{kv}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if spent, _ := reg.Spent(n); !spent {
		t.Fatal("nullifier not spent after commit")
	}
	if _, err := reg.Register(n); !errors.Is(err, ErrAlreadySpent) {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
}

func TestNullifierRejectsBadLength(t *testing.T) {
	reg := NewNullifierRegistry(newMemStore())
	if _, err := reg.Register([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short nullifier")
	}
}

func TestNullifierIndependence(t *testing.T) {
	cfg := testConfig(t, 4, RootsCount, 1)
	store := newMemStore()
	reg := NewNullifierRegistry(store)

	a := testLeaf(cfg, 1)
	b := testLeaf(cfg, 2)
	kv, err := reg.Register(a)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := store.WriteBatch([]KV{kv}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if spent, _ := reg.Spent(b); spent {
		t.Fatal("unrelated nullifier reported spent")
	}
	if _, err := reg.Register(b); err != nil {
		t.Fatalf("registering distinct nullifier failed: %v", err)
	}
}
