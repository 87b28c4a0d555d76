// nullifier.go - Double-spend registry.
//
// A nullifier is revealed exactly when a commitment is spent. The registry
// is a grow-only set over the store's key space: existence of the record is
// the spent flag, no value is needed. There is no deletion path.

package mixer

import "fmt"

// NullifierRegistry guards exactly-once spending. Calls are serialized by
// the owning Pool, which makes Register an atomic test-and-set: the check
// here and the batched write commit as one unit.
type NullifierRegistry struct {
	store Store
}

// NewNullifierRegistry returns a registry over the given store.
func NewNullifierRegistry(store Store) *NullifierRegistry {
	return &NullifierRegistry{store: store}
}

// Register stages the spent record for the nullifier. It fails closed with
// ErrAlreadySpent if the nullifier was ever registered before. The returned
// write must be committed in the caller's batch.
func (r *NullifierRegistry) Register(nullifier []byte) (KV, error) {
	if len(nullifier) != 32 {
		return KV{}, fmt.Errorf("nullifier must be 32 bytes, got %d", len(nullifier))
	}
	key := NullifierKey(nullifier)
	_, found, err := r.store.Get(key)
	if err != nil {
		return KV{}, fmt.Errorf("nullifier lookup: %w", err)
	}
	if found {
		return KV{}, ErrAlreadySpent
	}
	return KV{Key: key, Value: []byte{}}, nil
}

// Spent reports whether the nullifier was consumed before.
func (r *NullifierRegistry) Spent(nullifier []byte) (bool, error) {
	_, found, err := r.store.Get(NullifierKey(nullifier))
	if err != nil {
		return false, fmt.Errorf("nullifier lookup: %w", err)
	}
	return found, nil
}
