/*
	Package volume implements a sparse voxel-block grid: a hash table of block
	coordinates onto dense res x res x res blocks holding one or more channels
	of per-voxel values.
*/
package volume

import (
	"fmt"
	"math"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/grid"
)

// MaxResolution bounds the block edge so a block's voxel count fits an int32.
const MaxResolution = 1024

// Volume is a sparse set of voxel blocks.  Channel data is kept in one arena
// slice per channel with block i occupying [i*nvox, (i+1)*nvox).  Blocks are
// only ever added, so a block index is stable for the life of the volume.
//
// A Volume is not safe for concurrent Activate calls.  Concurrent access to
// distinct voxels of existing blocks is safe.
type Volume struct {
	id     uuid.UUID
	res    int64
	nvox   int64
	block  grid.Dense
	layout Layout

	keys  []core.ChunkPoint3d
	table *blockTable

	// per channel, exactly one of f32[i] and i32[i] is used.
	f32 [][]float32
	i32 [][]int32
}

// New returns an empty volume with blocks of the given resolution.
func New(res int64, layout Layout) (*Volume, error) {
	if res < 1 || res > MaxResolution {
		return nil, fmt.Errorf("block resolution must be in [1, %d], got %d", MaxResolution, res)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	v := &Volume{
		id:     uuid.New(),
		res:    res,
		nvox:   res * res * res,
		block:  grid.NewCube(res),
		layout: append(Layout(nil), layout...),
		table:  newBlockTable(0),
		f32:    make([][]float32, len(layout)),
		i32:    make([][]int32, len(layout)),
	}
	return v, nil
}

// ID returns the identity assigned to the volume when created or restored.
func (v *Volume) ID() uuid.UUID {
	return v.id
}

// SetID replaces the volume identity, e.g., when restoring from a store.
func (v *Volume) SetID(id uuid.UUID) {
	v.id = id
}

// Resolution returns the number of voxels along each edge of a block.
func (v *Volume) Resolution() int64 {
	return v.res
}

// BlockVoxels returns the number of voxels in a block.
func (v *Volume) BlockVoxels() int64 {
	return v.nvox
}

// Block returns the dense indexer for voxels within a block.
func (v *Volume) Block() grid.Dense {
	return v.block
}

// Layout returns a copy of the volume's channel layout.
func (v *Volume) Layout() Layout {
	return append(Layout(nil), v.layout...)
}

// NumBlocks returns the number of active blocks.
func (v *Volume) NumBlocks() int {
	return len(v.keys)
}

// Key returns the coordinate of the block with the given index.
func (v *Volume) Key(blockIdx int) core.ChunkPoint3d {
	return v.keys[blockIdx]
}

// Keys returns the active block coordinates in block index order.  The returned
// slice must not be modified.
func (v *Volume) Keys() []core.ChunkPoint3d {
	return v.keys
}

// Find returns the block index of the given block coordinate.
func (v *Volume) Find(key core.ChunkPoint3d) (int, bool) {
	idx, found := v.table.lookup(v.keys, key)
	return int(idx), found
}

// Activate allocates any of the given blocks not already present, initializing
// each channel to its fill value.  It returns the number of blocks added.
func (v *Volume) Activate(keys ...core.ChunkPoint3d) (int, error) {
	var added int
	for _, key := range keys {
		if _, found := v.table.lookup(v.keys, key); found {
			continue
		}
		if len(v.keys) >= math.MaxInt32 {
			return added, fmt.Errorf("volume cannot hold more than %d blocks", math.MaxInt32)
		}
		v.keys = append(v.keys, key)
		v.table.insert(v.keys, int32(len(v.keys)-1))
		v.growChannels()
		added++
	}
	return added, nil
}

func (v *Volume) growChannels() {
	for i, ch := range v.layout {
		switch ch.Type {
		case Float32:
			start := len(v.f32[i])
			v.f32[i] = append(v.f32[i], make([]float32, v.nvox)...)
			if fill := float32(ch.Fill); fill != 0 {
				for j := start; j < len(v.f32[i]); j++ {
					v.f32[i][j] = fill
				}
			}
		case Int32:
			start := len(v.i32[i])
			v.i32[i] = append(v.i32[i], make([]int32, v.nvox)...)
			if fill := int32(ch.Fill); fill != 0 {
				for j := start; j < len(v.i32[i]); j++ {
					v.i32[i][j] = fill
				}
			}
		}
	}
}

// Aligned returns a new volume with the same resolution and blocks, in the same
// order, holding the given channels at their fill values.
func (v *Volume) Aligned(layout Layout) (*Volume, error) {
	a, err := New(v.res, layout)
	if err != nil {
		return nil, err
	}
	a.keys = append(make([]core.ChunkPoint3d, 0, len(v.keys)), v.keys...)
	a.table = v.table.clone()
	for i, ch := range a.layout {
		n := int64(len(v.keys)) * v.nvox
		switch ch.Type {
		case Float32:
			a.f32[i] = make([]float32, n)
			if fill := float32(ch.Fill); fill != 0 {
				for j := range a.f32[i] {
					a.f32[i][j] = fill
				}
			}
		case Int32:
			a.i32[i] = make([]int32, n)
			if fill := int32(ch.Fill); fill != 0 {
				for j := range a.i32[i] {
					a.i32[i][j] = fill
				}
			}
		}
	}
	return a, nil
}

// AlignedWith returns true if both volumes have the same resolution and the same
// blocks in the same order.
func (v *Volume) AlignedWith(o *Volume) bool {
	if v.res != o.res || len(v.keys) != len(o.keys) {
		return false
	}
	for i, key := range v.keys {
		if o.keys[i] != key {
			return false
		}
	}
	return true
}

func (v *Volume) channel(name string, want DataType) (int, error) {
	i := v.layout.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("volume has no %q channel, layout %s", name, v.layout)
	}
	if v.layout[i].Type != want {
		return -1, fmt.Errorf("channel %q is %s, not %s", name, v.layout[i].Type, want)
	}
	return i, nil
}

// Float32Channel returns the arena of a float32 channel across all blocks.
func (v *Volume) Float32Channel(name string) ([]float32, error) {
	i, err := v.channel(name, Float32)
	if err != nil {
		return nil, err
	}
	return v.f32[i], nil
}

// Int32Channel returns the arena of an int32 channel across all blocks.
func (v *Volume) Int32Channel(name string) ([]int32, error) {
	i, err := v.channel(name, Int32)
	if err != nil {
		return nil, err
	}
	return v.i32[i], nil
}

// Global returns the global voxel coordinate of a voxel given its block index
// and offset within the block.
func (v *Volume) Global(blockIdx int, offset int64) core.Point3d {
	x, y, z := v.block.OffsetTo3D(offset)
	origin := v.keys[blockIdx].MinPoint(int32(v.res))
	return origin.Add(core.Point3d{int32(x), int32(y), int32(z)})
}

// Bounds returns the minimum and maximum block coordinates.  ok is false for an
// empty volume.
func (v *Volume) Bounds() (lo, hi core.ChunkPoint3d, ok bool) {
	if len(v.keys) == 0 {
		return
	}
	lo, hi = core.MaxChunkPoint3d, core.MinChunkPoint3d
	for _, key := range v.keys {
		lo.SetMinimum(key)
		hi.SetMaximum(key)
	}
	return lo, hi, true
}

// MemoryUsage returns the approximate number of bytes held by the volume.
func (v *Volume) MemoryUsage() int {
	return size.Of(v.f32) + size.Of(v.i32) + size.Of(v.keys) + size.Of(v.table.slots)
}

func (v *Volume) String() string {
	return fmt.Sprintf("volume %s: %d blocks of %d^3, channels %s, %s", v.id, len(v.keys), v.res,
		v.layout, humanize.Bytes(uint64(v.MemoryUsage())))
}

// LogStats writes a summary of the volume at info level.
func (v *Volume) LogStats() {
	lo, hi, ok := v.Bounds()
	if !ok {
		core.Infof("Volume %s is empty\n", v.id)
		return
	}
	core.Infof("%s, block extents %s -> %s\n", v, lo, hi)
}
