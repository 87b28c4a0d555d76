// roots.go - Rolling history of recent tree roots.
//
// Proofs are generated off-chain against a root that may be a few
// insertions stale by the time the withdrawal lands. Keeping the last
// RootsCount roots gives concurrent provers a bounded staleness window;
// older roots are silently evicted once the buffer wraps.

package mixer

import (
	"bytes"
	"fmt"
)

// RootHistory is a fixed-capacity circular buffer of 32-byte roots with a
// write cursor. Push always succeeds by unconditional overwrite.
type RootHistory struct {
	slots []byte // 32 * RootsCount bytes
	next  uint32 // slot the next Push writes to
}

// NewRootHistory returns an empty history.
func NewRootHistory(cfg *Config) *RootHistory {
	return &RootHistory{slots: make([]byte, 32*cfg.RootsCount)}
}

// LoadRootHistory restores a history from persisted slot bytes and cursor.
func LoadRootHistory(cfg *Config, slots []byte, next uint32) (*RootHistory, error) {
	if len(slots) != 32*cfg.RootsCount {
		return nil, fmt.Errorf("roots region must be %d bytes, got %d", 32*cfg.RootsCount, len(slots))
	}
	if int(next) >= cfg.RootsCount {
		return nil, fmt.Errorf("root cursor %d out of range", next)
	}
	s := make([]byte, len(slots))
	copy(s, slots)
	return &RootHistory{slots: s, next: next}, nil
}

// Push writes root at the cursor slot and advances the cursor, overwriting
// the oldest entry once the buffer has wrapped.
func (h *RootHistory) Push(root []byte) {
	copy(h.slots[int(h.next)*32:], root)
	h.next = (h.next + 1) % uint32(len(h.slots)/32)
}

// Contains scans every slot for the root. The buffer wraps, so no ordering
// is assumed.
func (h *RootHistory) Contains(root []byte) bool {
	for i := 0; i < len(h.slots)/32; i++ {
		if bytes.Equal(h.slots[i*32:(i+1)*32], root) {
			return true
		}
	}
	return false
}

// Next returns the write cursor for persistence.
func (h *RootHistory) Next() uint32 {
	return h.next
}

// Slots returns the raw slot bytes for persistence.
func (h *RootHistory) Slots() []byte {
	return h.slots
}
