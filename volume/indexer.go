package volume

import (
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/grid"
)

// Indexer flattens a volume's active voxels into workload indices for parallel
// kernels.  Workload w addresses voxel w % nvox of block w / nvox.
//
// Views returned by an Indexer alias the volume's arenas and are invalidated by
// a later Activate.
type Indexer struct {
	vol   *Volume
	nvox  int64
	nwork int64
}

// NewIndexer returns an indexer over the volume's current blocks.
func NewIndexer(vol *Volume) *Indexer {
	return &Indexer{
		vol:   vol,
		nvox:  vol.nvox,
		nwork: int64(len(vol.keys)) * vol.nvox,
	}
}

// NumWorkloads returns the number of active voxels.
func (ix *Indexer) NumWorkloads() int64 {
	return ix.nwork
}

// WorkloadIdx returns the block index and offset within the block of a workload.
func (ix *Indexer) WorkloadIdx(w int64) (key, value int64) {
	return w / ix.nvox, w % ix.nvox
}

// Key returns the block coordinate of the given block index.
func (ix *Indexer) Key(keyIdx int64) core.ChunkPoint3d {
	return ix.vol.keys[keyIdx]
}

// Block returns the dense indexer within a block.
func (ix *Indexer) Block() grid.Dense {
	return ix.vol.block
}

// Resolution returns the block edge length in voxels.
func (ix *Indexer) Resolution() int64 {
	return ix.vol.res
}

// Volume returns the indexed volume.
func (ix *Indexer) Volume() *Volume {
	return ix.vol
}

// Float32 returns a typed view of the named float32 channel.
func (ix *Indexer) Float32(name string) (Float32View, error) {
	data, err := ix.vol.Float32Channel(name)
	if err != nil {
		return Float32View{}, err
	}
	return Float32View{data: data, nvox: ix.nvox}, nil
}

// Int32 returns a typed view of the named int32 channel.
func (ix *Indexer) Int32(name string) (Int32View, error) {
	data, err := ix.vol.Int32Channel(name)
	if err != nil {
		return Int32View{}, err
	}
	return Int32View{data: data, nvox: ix.nvox}, nil
}

// Float32View addresses one float32 channel by (block index, voxel offset).
type Float32View struct {
	data []float32
	nvox int64
}

// At returns the slot of a voxel.
func (v Float32View) At(key, value int64) *float32 {
	return &v.data[key*v.nvox+value]
}

// Int32View addresses one int32 channel by (block index, voxel offset).
type Int32View struct {
	data []int32
	nvox int64
}

// At returns the slot of a voxel.
func (v Int32View) At(key, value int64) *int32 {
	return &v.data[key*v.nvox+value]
}
