package kernel

import (
	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/volume"
)

// Integrate fuses a depth frame into every active voxel of the volume using a
// running average of truncated signed distances.  Voxels that project outside
// the image, lack depth, lie behind the camera or lie further than sdfTrunc
// behind the observed surface are left unchanged.
func Integrate(l Launcher, vol *volume.Volume, depth *camera.DepthImage, intr camera.Intrinsics,
	extr camera.Extrinsics, voxelSize, sdfTrunc float32) error {

	if vol == nil {
		return configErrorf(OpIntegrate, "no volume")
	}
	if depth == nil {
		return configErrorf(OpIntegrate, "no depth image")
	}
	if err := depth.Validate(); err != nil {
		return configErrorf(OpIntegrate, "%v", err)
	}
	if voxelSize <= 0 {
		return configErrorf(OpIntegrate, "voxel size must be positive, got %g", voxelSize)
	}
	if sdfTrunc <= 0 {
		return configErrorf(OpIntegrate, "truncation distance must be positive, got %g", sdfTrunc)
	}

	ix := volume.NewIndexer(vol)
	tsdf, err := ix.Float32(volume.TSDFChannel)
	if err != nil {
		return configErrorf(OpIntegrate, "%v", err)
	}
	weight, err := ix.Float32(volume.WeightChannel)
	if err != nil {
		return configErrorf(OpIntegrate, "%v", err)
	}

	proj := camera.NewProjector(intr, extr, voxelSize)
	img := depth.Indexer()
	block := ix.Block()
	res := ix.Resolution()

	timedLog := core.NewTimeLog()
	err = l.Launch(ix.NumWorkloads(), func(w int64) {
		key, value := ix.WorkloadIdx(w)
		bk := ix.Key(key)
		xv, yv, zv := block.OffsetTo3D(value)
		x := int64(bk[0])*res + xv
		y := int64(bk[1])*res + yv
		z := int64(bk[2])*res + zv

		xc, yc, zc := proj.Transform(float32(x), float32(y), float32(z))
		if zc <= 0 {
			return
		}
		u, v := proj.Project(xc, yc, zc)
		if !img.InBounds2D(u, v) {
			return
		}
		d := depth.Data[img.Offset2D(int64(u), int64(v))]
		sdf := d - zc
		if d <= 0 || sdf < -sdfTrunc {
			return
		}
		if sdf > sdfTrunc {
			sdf = sdfTrunc
		}
		sdf /= sdfTrunc

		tp := tsdf.At(key, value)
		wp := weight.At(key, value)
		*tp = ((*wp)*(*tp) + sdf) / (*wp + 1)
		*wp++
	})
	if err != nil {
		return err
	}
	timedLog.Debugf("Integrated %d voxels in %d blocks", ix.NumWorkloads(), vol.NumBlocks())
	return nil
}
