package fusion

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/core"
)

// TouchBlocks returns the blocks within sdfTrunc of any surface point seen in
// the depth frame, sampling every stride-th pixel along each image axis.  Keys
// are unique and sorted in z, y, x order.
func TouchBlocks(depth *camera.DepthImage, intr camera.Intrinsics, extr camera.Extrinsics,
	voxelSize, sdfTrunc float32, res int64, stride int) ([]core.ChunkPoint3d, error) {

	if depth == nil {
		return nil, fmt.Errorf("no depth image")
	}
	if err := depth.Validate(); err != nil {
		return nil, err
	}
	if voxelSize <= 0 || sdfTrunc <= 0 || res <= 0 {
		return nil, fmt.Errorf("voxel size (%g), truncation (%g) and resolution (%d) must be positive",
			voxelSize, sdfTrunc, res)
	}
	if stride < 1 {
		stride = 1
	}
	camToWorld, err := extr.Inverse()
	if err != nil {
		return nil, err
	}
	proj := camera.NewProjector(intr, extr, voxelSize)
	blockSize := float64(voxelSize) * float64(res)
	trunc := float64(sdfTrunc)

	touched := make(map[core.ChunkPoint3d]struct{})
	for y := 0; y < depth.Height; y += stride {
		for x := 0; x < depth.Width; x += stride {
			d := depth.At(x, y)
			if d <= 0 {
				continue
			}
			xc, yc, zc := proj.Unproject(float32(x), float32(y), d)
			p := camToWorld.Apply(r3.Vec{X: float64(xc), Y: float64(yc), Z: float64(zc)})
			lo := blockOf(r3.Sub(p, r3.Vec{X: trunc, Y: trunc, Z: trunc}), blockSize)
			hi := blockOf(r3.Add(p, r3.Vec{X: trunc, Y: trunc, Z: trunc}), blockSize)
			for bz := lo[2]; bz <= hi[2]; bz++ {
				for by := lo[1]; by <= hi[1]; by++ {
					for bx := lo[0]; bx <= hi[0]; bx++ {
						touched[core.ChunkPoint3d{bx, by, bz}] = struct{}{}
					}
				}
			}
		}
	}

	keys := make([]core.ChunkPoint3d, 0, len(touched))
	for key := range touched {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].SortableBytes(), keys[j].SortableBytes()) < 0
	})
	return keys, nil
}

func blockOf(p r3.Vec, blockSize float64) core.ChunkPoint3d {
	return core.ChunkPoint3d{
		int32(math.Floor(p.X / blockSize)),
		int32(math.Floor(p.Y / blockSize)),
		int32(math.Floor(p.Z / blockSize)),
	}
}
