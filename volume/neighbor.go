package volume

import (
	"fmt"
	"math/bits"

	"github.com/janelia-flyem/tsdf/grid"
)

// NeighborMask records which of a block's 27 neighbors are active.  Bit nb is
// set when the block at grid.NeighborOffset(nb) exists.
type NeighborMask uint32

// Has returns true if neighbor nb is marked present.
func (m NeighborMask) Has(nb int) bool {
	return m&(1<<uint(nb)) != 0
}

// Set marks neighbor nb present.
func (m *NeighborMask) Set(nb int) {
	*m |= 1 << uint(nb)
}

// Count returns the number of neighbors marked present.
func (m NeighborMask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// NeighborView resolves a (block, neighbor slot) pair onto the block index of
// the neighboring block in the same volume.  It stores only the 27 indices per
// block; voxel data is read through the volume's own arenas.
type NeighborView struct {
	vol  *Volume
	nbrs []int32 // NumNeighbors entries per block, -1 if absent
}

// NewNeighborView builds the neighbor table and validity masks of the volume's
// current blocks.
func NewNeighborView(vol *Volume) (*NeighborView, []NeighborMask) {
	n := len(vol.keys)
	nv := &NeighborView{
		vol:  vol,
		nbrs: make([]int32, n*grid.NumNeighbors),
	}
	masks := make([]NeighborMask, n)
	for i, key := range vol.keys {
		for nb := 0; nb < grid.NumNeighbors; nb++ {
			dx, dy, dz := grid.NeighborOffset(nb)
			idx, found := vol.table.lookup(vol.keys, key.Offset(int32(dx), int32(dy), int32(dz)))
			if found {
				masks[i].Set(nb)
			} else {
				idx = emptySlot
			}
			nv.nbrs[i*grid.NumNeighbors+nb] = idx
		}
	}
	return nv, masks
}

// Volume returns the volume the view was built from.
func (nv *NeighborView) Volume() *Volume {
	return nv.vol
}

// NumBlocks returns the number of blocks covered by the view.
func (nv *NeighborView) NumBlocks() int {
	return len(nv.nbrs) / grid.NumNeighbors
}

// Block returns the index of neighbor nb of the given block.
func (nv *NeighborView) Block(keyIdx int64, nb int) (int64, bool) {
	idx := nv.nbrs[keyIdx*grid.NumNeighbors+int64(nb)]
	return int64(idx), idx != emptySlot
}

// Float32 returns a typed neighbor view of the named float32 channel.
func (nv *NeighborView) Float32(name string) (NeighborFloat32View, error) {
	data, err := nv.vol.Float32Channel(name)
	if err != nil {
		return NeighborFloat32View{}, err
	}
	return NeighborFloat32View{nv: nv, data: data}, nil
}

// NeighborFloat32View reads a float32 channel through a NeighborView.
type NeighborFloat32View struct {
	nv   *NeighborView
	data []float32
}

// At returns the slot of voxel offset value within neighbor nb of block key.
// It panics if the neighbor is absent, so callers must check validity first.
func (v NeighborFloat32View) At(key int64, nb int, value int64) *float32 {
	idx, found := v.nv.Block(key, nb)
	if !found {
		panic(fmt.Sprintf("neighbor %d of block %d is not active", nb, key))
	}
	return &v.data[idx*v.nv.vol.nvox+value]
}
