package volume

import (
	"github.com/cespare/xxhash/v2"

	"github.com/janelia-flyem/tsdf/core"
)

const emptySlot = -1

// blockTable is an open-addressed hash table with linear probing that maps a
// block coordinate to its index in the volume's key list.  It holds no keys of
// its own and resolves collisions by comparing against the key list.
type blockTable struct {
	slots []int32
	mask  uint64
	count int
}

func newBlockTable(capacity int) *blockTable {
	n := 16
	for n < 2*capacity {
		n <<= 1
	}
	t := &blockTable{
		slots: make([]int32, n),
		mask:  uint64(n - 1),
	}
	for i := range t.slots {
		t.slots[i] = emptySlot
	}
	return t
}

func hashKey(key core.ChunkPoint3d) uint64 {
	var buf [core.ChunkPoint3dSize]byte
	return xxhash.Sum64(key.AppendBytes(buf[:0]))
}

// find returns the slot holding key or the empty slot where it would go.
func (t *blockTable) find(keys []core.ChunkPoint3d, key core.ChunkPoint3d) (slot uint64, idx int32) {
	slot = hashKey(key) & t.mask
	for {
		idx = t.slots[slot]
		if idx == emptySlot || keys[idx] == key {
			return
		}
		slot = (slot + 1) & t.mask
	}
}

func (t *blockTable) lookup(keys []core.ChunkPoint3d, key core.ChunkPoint3d) (int32, bool) {
	_, idx := t.find(keys, key)
	return idx, idx != emptySlot
}

// insert records keys[idx].  The key must not already be present.
func (t *blockTable) insert(keys []core.ChunkPoint3d, idx int32) {
	if 2*(t.count+1) > len(t.slots) {
		t.grow(keys)
	}
	slot, _ := t.find(keys, keys[idx])
	t.slots[slot] = idx
	t.count++
}

func (t *blockTable) grow(keys []core.ChunkPoint3d) {
	bigger := newBlockTable(len(t.slots))
	for _, idx := range t.slots {
		if idx == emptySlot {
			continue
		}
		slot, _ := bigger.find(keys, keys[idx])
		bigger.slots[slot] = idx
		bigger.count++
	}
	*t = *bigger
}

func (t *blockTable) clone() *blockTable {
	c := &blockTable{
		slots: make([]int32, len(t.slots)),
		mask:  t.mask,
		count: t.count,
	}
	copy(c.slots, t.slots)
	return c
}
