/*
	Package fusion drives the kernels frame by frame: it allocates the blocks a
	depth frame can affect, integrates the frame, and extracts surface vertices
	from the accumulated volume.
*/
package fusion

import (
	"errors"
	"fmt"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/kernel"
	"github.com/janelia-flyem/tsdf/volume"
)

// Options configure a Pipeline.
type Options struct {
	Resolution int64
	VoxelSize  float32
	SDFTrunc   float32

	// Stride is the pixel step used when allocating blocks from depth.
	Stride int

	// Capacity is the vertex capacity of extraction.
	Capacity int

	// GrowCapacity retries extraction once with the exact vertex count when
	// Capacity is exceeded.
	GrowCapacity bool

	// Workers bounds kernel parallelism.  Zero uses every core and a negative
	// value runs kernels serially.
	Workers int
}

// DefaultOptions returns options for 4mm voxels in blocks of 16^3.
func DefaultOptions() Options {
	return Options{
		Resolution: 16,
		VoxelSize:  0.004,
		SDFTrunc:   0.02,
		Stride:     4,
		Capacity:   kernel.DefaultCapacity,
	}
}

// Validate checks the options describe a usable volume.
func (opts Options) Validate() error {
	if opts.Resolution < 2 || opts.Resolution > volume.MaxResolution {
		return fmt.Errorf("block resolution must be in [2, %d], got %d", volume.MaxResolution, opts.Resolution)
	}
	if opts.VoxelSize <= 0 {
		return fmt.Errorf("voxel size must be positive, got %g", opts.VoxelSize)
	}
	if opts.SDFTrunc <= 0 {
		return fmt.Errorf("truncation distance must be positive, got %g", opts.SDFTrunc)
	}
	if opts.Capacity <= 0 {
		return fmt.Errorf("vertex capacity must be positive, got %d", opts.Capacity)
	}
	return nil
}

// Launcher returns the kernel launcher described by Workers.
func (opts Options) Launcher() kernel.Launcher {
	if opts.Workers < 0 {
		return kernel.SerialLauncher{}
	}
	return kernel.NewParallelLauncher(opts.Workers)
}

// Pipeline accumulates depth frames into a TSDF volume.  It is not safe for
// concurrent use.
type Pipeline struct {
	opts       Options
	intrinsics camera.Intrinsics
	vol        *volume.Volume
	launcher   kernel.Launcher
	frames     int
}

// NewPipeline returns a pipeline with an empty volume.
func NewPipeline(opts Options, intr camera.Intrinsics) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	vol, err := volume.New(opts.Resolution, volume.TSDFLayout())
	if err != nil {
		return nil, err
	}
	return NewPipelineWithVolume(opts, intr, vol)
}

// NewPipelineWithVolume returns a pipeline continuing to fuse into an existing volume.
func NewPipelineWithVolume(opts Options, intr camera.Intrinsics, vol *volume.Volume) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := intr.Validate(); err != nil {
		return nil, err
	}
	if vol.Resolution() != opts.Resolution {
		return nil, fmt.Errorf("volume resolution %d does not match configured resolution %d",
			vol.Resolution(), opts.Resolution)
	}
	return &Pipeline{
		opts:       opts,
		intrinsics: intr,
		vol:        vol,
		launcher:   opts.Launcher(),
	}, nil
}

// Volume returns the fused volume.
func (p *Pipeline) Volume() *volume.Volume {
	return p.vol
}

// Frames returns the number of frames integrated by this pipeline.
func (p *Pipeline) Frames() int {
	return p.frames
}

// IntegrateFrame allocates the blocks touched by the frame and fuses it.  It
// returns the number of newly allocated blocks.
func (p *Pipeline) IntegrateFrame(depth *camera.DepthImage, extr camera.Extrinsics) (int, error) {
	timedLog := core.NewTimeLog()
	keys, err := TouchBlocks(depth, p.intrinsics, extr, p.opts.VoxelSize, p.opts.SDFTrunc, p.opts.Resolution, p.opts.Stride)
	if err != nil {
		return 0, err
	}
	added, err := p.vol.Activate(keys...)
	if err != nil {
		return added, err
	}
	args := kernel.IntegrateArgs{
		Volume:     p.vol,
		Depth:      depth,
		Intrinsics: p.intrinsics,
		Extrinsics: extr,
		VoxelSize:  p.opts.VoxelSize,
		SDFTrunc:   p.opts.SDFTrunc,
	}
	if _, err := kernel.Dispatch(p.launcher, kernel.OpIntegrate, args); err != nil {
		return added, err
	}
	p.frames++
	timedLog.Infof("Frame %d: touched %d blocks, %d new, %d total", p.frames, len(keys), added, p.vol.NumBlocks())
	return added, nil
}

// ExtractSurface extracts the zero-crossing vertices of the fused volume.  The
// returned surface volume is aligned with the fused volume and records the
// vertex index of each voxel edge.
func (p *Pipeline) ExtractSurface() (*kernel.Vertices, *volume.Volume, error) {
	verts, surf, err := p.extract(p.opts.Capacity)
	var capErr *kernel.CapacityError
	if err != nil && p.opts.GrowCapacity && errors.As(err, &capErr) {
		core.Warningf("Vertex capacity %d exceeded, retrying with capacity %d\n", capErr.Capacity, capErr.Count)
		verts, surf, err = p.extract(int(capErr.Count))
	}
	return verts, surf, err
}

func (p *Pipeline) extract(capacity int) (*kernel.Vertices, *volume.Volume, error) {
	timedLog := core.NewTimeLog()
	surf, err := p.vol.Aligned(volume.SurfaceLayout())
	if err != nil {
		return nil, nil, err
	}
	nv, masks := volume.NewNeighborView(p.vol)
	args := kernel.ExtractArgs{
		TSDF:      p.vol,
		Neighbors: nv,
		Validity:  masks,
		Surface:   surf,
		VoxelSize: p.opts.VoxelSize,
		Capacity:  capacity,
	}
	verts, err := kernel.Dispatch(p.launcher, kernel.OpExtractSurface, args)
	if err != nil {
		return verts, surf, err
	}
	timedLog.Infof("Extracted %d vertices from %d blocks", verts.Len(), p.vol.NumBlocks())
	return verts, surf, nil
}
