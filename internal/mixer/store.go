// store.go - Persistent key-value backend contract and region layout.
//
// The pool persists three logical regions: the roots ring buffer, the
// subtree frontier, and one zero-size record per spent nullifier, plus a
// fixed-size pool state record. Every mutating call stages all its writes
// and commits them in a single atomic batch.

package mixer

// Region keys in the store.
var (
	KeyRoots   = []byte("roots")   // 32 * RootsCount bytes
	KeySubtree = []byte("subtree") // 32 * Depth bytes
	KeyState   = []byte("state")   // encoded poolState record
)

// nullifierKeyPrefix namespaces the dynamically created nullifier records.
const nullifierKeyPrefix = "n:"

// NullifierKey returns the storage key of the spent record for a nullifier.
// Existence of the key is the spent flag; the value is always empty.
func NullifierKey(nullifier []byte) []byte {
	return append([]byte(nullifierKeyPrefix), nullifier...)
}

// KV is one staged write.
type KV struct {
	Key   []byte
	Value []byte
}

// Store is the persistent backend. WriteBatch must apply all writes
// atomically: either every KV lands or none does.
type Store interface {
	Get(key []byte) (value []byte, found bool, err error)
	WriteBatch(kvs []KV) error
}
