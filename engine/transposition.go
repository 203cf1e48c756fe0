package engine

import (
	"unsafe"
)

// Size in MB
const ttSize = 64

// TransTable is the cache of positions visited by the full helpmate search.
// Unlike an alpha-beta table it stores no verdicts, only the depth budget a
// position was last expanded with: a probe hit with at least as much depth
// left means the branch can be skipped, nothing more. Replacement is
// unconditional to bound memory.
type TransTable struct {
	isInitialized bool
	entries       []ttEntry
	count         uint64
}

type ttEntry struct {
	hash  uint64
	depth int32
}

func (tt *TransTable) init() {
	entrySize := uint64(unsafe.Sizeof(ttEntry{}))
	count := uint64(ttSize) * 1024 * 1024 / entrySize
	if count == 0 {
		count = 1
	}
	tt.count = count
	tt.entries = make([]ttEntry, count)
	tt.isInitialized = true
}

// reset clears every slot, initializing the table on first use.
func (tt *TransTable) reset() {
	if !tt.isInitialized {
		tt.init()
		return
	}
	clear(tt.entries)
}

// probe returns the stored depth for the position, if present.
func (tt *TransTable) probe(hash uint64) (depth int32, found bool) {
	if tt.count == 0 {
		return 0, false
	}
	entry := &tt.entries[hash%tt.count]
	if entry.hash == hash {
		return entry.depth, true
	}
	return 0, false
}

// save records the position at the given depth, overwriting whatever was in
// the slot.
func (tt *TransTable) save(hash uint64, depth int32) {
	if tt.count == 0 {
		return
	}
	tt.entries[hash%tt.count] = ttEntry{hash: hash, depth: depth}
}
