package kernel

import (
	"sync/atomic"

	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/grid"
	"github.com/janelia-flyem/tsdf/volume"
)

// DefaultCapacity is the vertex capacity used when none is configured.
const DefaultCapacity = 1700000

// Vertices holds extracted vertex coordinates in metres, one entry per vertex.
type Vertices struct {
	X, Y, Z []float32
}

// Len returns the number of vertices.
func (v *Vertices) Len() int {
	if v == nil {
		return 0
	}
	return len(v.X)
}

// Vertex returns the coordinate of vertex i.
func (v *Vertices) Vertex(i int) [3]float32 {
	return [3]float32{v.X[i], v.Y[i], v.Z[i]}
}

// ExtractArgs are the inputs of ExtractSurfaceVertices.
type ExtractArgs struct {
	// TSDF is the fused volume with tsdf and weight channels.
	TSDF *volume.Volume

	// Neighbors resolves the 27 neighbors of each TSDF block.
	Neighbors *volume.NeighborView

	// Validity has one mask per TSDF block marking neighbors that may be read.
	Validity []volume.NeighborMask

	// Surface receives, per voxel and positive axis, the index of the vertex on
	// the edge leaving the voxel in that direction.
	Surface *volume.Volume

	VoxelSize float32

	// Capacity is the maximum number of vertices returned.
	Capacity int
}

func (args *ExtractArgs) validate() error {
	op := OpExtractSurface
	switch {
	case args.TSDF == nil:
		return configErrorf(op, "no tsdf volume")
	case args.Neighbors == nil:
		return configErrorf(op, "no neighbor view")
	case args.Surface == nil:
		return configErrorf(op, "no surface volume")
	case args.VoxelSize <= 0:
		return configErrorf(op, "voxel size must be positive, got %g", args.VoxelSize)
	case args.Capacity < 0:
		return configErrorf(op, "capacity must not be negative, got %d", args.Capacity)
	}
	if !args.Neighbors.Volume().AlignedWith(args.TSDF) {
		return configErrorf(op, "neighbor view not built from the tsdf volume's blocks")
	}
	if !args.Surface.AlignedWith(args.TSDF) {
		return configErrorf(op, "surface volume (%d blocks of %d^3) not aligned with tsdf volume (%d blocks of %d^3)",
			args.Surface.NumBlocks(), args.Surface.Resolution(), args.TSDF.NumBlocks(), args.TSDF.Resolution())
	}
	if len(args.Validity) != args.TSDF.NumBlocks() {
		return configErrorf(op, "got %d neighbor masks for %d blocks", len(args.Validity), args.TSDF.NumBlocks())
	}
	return nil
}

// ExtractSurfaceVertices emits one vertex for every voxel edge along +x, +y or
// +z whose two weighted endpoints have TSDF values of opposite sign.  Vertex
// indices come from a shared counter so their order depends on scheduling.
// Edges into neighbor blocks not marked in Validity are skipped.
//
// If more than Capacity vertices are found, a *CapacityError holding the exact
// count is returned along with the first Capacity vertices.  Vertices past the
// capacity are neither stored nor recorded in the surface volume.
func ExtractSurfaceVertices(l Launcher, args ExtractArgs) (*Vertices, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	op := OpExtractSurface

	ix := volume.NewIndexer(args.TSDF)
	tsdf, err := ix.Float32(volume.TSDFChannel)
	if err != nil {
		return nil, configErrorf(op, "%v", err)
	}
	weight, err := ix.Float32(volume.WeightChannel)
	if err != nil {
		return nil, configErrorf(op, "%v", err)
	}
	nbTSDF, err := args.Neighbors.Float32(volume.TSDFChannel)
	if err != nil {
		return nil, configErrorf(op, "%v", err)
	}
	nbWeight, err := args.Neighbors.Float32(volume.WeightChannel)
	if err != nil {
		return nil, configErrorf(op, "%v", err)
	}
	surfIx := volume.NewIndexer(args.Surface)
	var surface [3]volume.Int32View
	for i, name := range volume.SurfaceChannels {
		if surface[i], err = surfIx.Int32(name); err != nil {
			return nil, configErrorf(op, "%v", err)
		}
	}

	capacity := int64(args.Capacity)
	out := &Vertices{
		X: make([]float32, capacity),
		Y: make([]float32, capacity),
		Z: make([]float32, capacity),
	}
	block := ix.Block()
	res := ix.Resolution()
	voxelSize := args.VoxelSize
	var count atomic.Int64

	timedLog := core.NewTimeLog()
	err = l.Launch(ix.NumWorkloads(), func(w int64) {
		key, value := ix.WorkloadIdx(w)
		wo := *weight.At(key, value)
		if wo == 0 {
			return
		}
		to := *tsdf.At(key, value)
		mask := args.Validity[key]
		xv, yv, zv := block.OffsetTo3D(value)

		for i := 0; i < 3; i++ {
			step := [3]int64{xv, yv, zv}
			step[i]++
			nb, lx, ly, lz, ok := grid.Resolve(step[0], step[1], step[2], res)
			if !ok || !mask.Has(nb) {
				continue
			}
			offset := block.Offset3D(lx, ly, lz)
			if *nbWeight.At(key, nb, offset) == 0 {
				continue
			}
			ti := *nbTSDF.At(key, nb, offset)
			if ti*to >= 0 {
				continue
			}
			ratio := ti / (ti - to)
			idx := count.Add(1) - 1
			if idx >= capacity {
				continue
			}
			*surface[i].At(key, value) = int32(idx)

			bk := ix.Key(key)
			g := [3]float32{
				float32(int64(bk[0])*res + xv),
				float32(int64(bk[1])*res + yv),
				float32(int64(bk[2])*res + zv),
			}
			g[i] += ratio
			out.X[idx] = voxelSize * g[0]
			out.Y[idx] = voxelSize * g[1]
			out.Z[idx] = voxelSize * g[2]
		}
	})
	if err != nil {
		return nil, err
	}

	actual := count.Load()
	if actual > capacity {
		core.Errorf("Surface extraction found %d vertices with capacity for %d\n", actual, capacity)
		return out, &CapacityError{Count: actual, Capacity: capacity}
	}
	out.X = out.X[:actual]
	out.Y = out.Y[:actual]
	out.Z = out.Z[:actual]
	timedLog.Debugf("Extracted %d vertices from %d blocks", actual, args.TSDF.NumBlocks())
	return out, nil
}
