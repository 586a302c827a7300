package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/config"
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/export"
	"github.com/janelia-flyem/tsdf/fusion"
	"github.com/janelia-flyem/tsdf/kernel"
	"github.com/janelia-flyem/tsdf/storage"
	"github.com/janelia-flyem/tsdf/volume"
)

//go:generate go run ../gen-version -o version.go

// gitVersion is set by generated code from the git tags of the source.
var gitVersion = "unknown"

// Versions returns a chart of compile-time version information.
func Versions() string {
	text := "\nCompile-time version information for this tsdf executable:\n\n"
	writeLine := func(name, version string) {
		text += fmt.Sprintf("%-15s   %s\n", name, version)
	}
	writeLine("Name", "Version")
	writeLine("tsdf", gitVersion)
	writeLine("Store format", storage.FormatVersion.String())
	writeLine("Go", runtime.Version())
	writeLine("Operators", fmt.Sprintf("%s, %s", kernel.OpIntegrate, kernel.OpExtractSurface))
	return text
}

func loadConfig(filename string) (*config.Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("command must be followed by the path to a TOML configuration")
	}
	c, err := config.Load(filename)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyLogging(); err != nil {
		return nil, err
	}
	if *runVerbose {
		core.SetLogMode(core.DebugMode)
	}
	return c, nil
}

func openStore(c *config.Config) (*storage.Store, error) {
	if !c.HasStore() {
		return nil, fmt.Errorf("no [store] path configured in %s", c.Location())
	}
	sc, err := c.StoreConfig()
	if err != nil {
		return nil, err
	}
	return storage.Open(sc)
}

// DoIntegrate performs the "integrate" command, fusing every configured depth
// frame with its trajectory pose.
func DoIntegrate(filename string) error {
	c, err := loadConfig(filename)
	if err != nil {
		return err
	}
	intr, err := c.Intrinsics()
	if err != nil {
		return err
	}
	if c.Camera.Trajectory == "" {
		return fmt.Errorf("no camera trajectory configured in %s", c.Location())
	}
	frames, err := camera.ReadTrajectory(c.Camera.Trajectory)
	if err != nil {
		return err
	}
	depthFiles, err := c.DepthFiles()
	if err != nil {
		return err
	}
	n := len(frames)
	if len(depthFiles) != n {
		core.Warningf("Trajectory has %d poses and %s has %d depth images\n", n, c.Camera.DepthDir, len(depthFiles))
		if len(depthFiles) < n {
			n = len(depthFiles)
		}
	}
	if c.Camera.Frames > 0 && c.Camera.Frames < n {
		n = c.Camera.Frames
	}

	var store *storage.Store
	var vol *volume.Volume
	if c.HasStore() {
		if store, err = openStore(c); err != nil {
			return err
		}
		defer store.Close()
		vol, err = store.LoadVolume(c.Volume.Name)
		if err == nil {
			core.Infof("Resuming %s\n", vol)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	var p *fusion.Pipeline
	if vol != nil {
		p, err = fusion.NewPipelineWithVolume(c.FusionOptions(), intr, vol)
	} else {
		p, err = fusion.NewPipeline(c.FusionOptions(), intr)
	}
	if err != nil {
		return err
	}

	timedLog := core.NewTimeLog()
	for i := 0; i < n; i++ {
		if stopping.Load() {
			core.Warningf("Stopping integration after %d of %d frames\n", i, n)
			break
		}
		depth, err := camera.ReadDepthPNG(depthFiles[i], c.Camera.DepthScale, c.Camera.DepthMax)
		if err != nil {
			return err
		}
		extr, err := frames[i].Extrinsic()
		if err != nil {
			return fmt.Errorf("frame %d: %v", i, err)
		}
		added, err := p.IntegrateFrame(depth, extr)
		if err != nil {
			return fmt.Errorf("frame %d (%s): %v", i, depthFiles[i], err)
		}
		core.Debugf("Integrated frame %d, %d new blocks\n", i, added)
	}
	timedLog.Infof("Integrated %d frames into %s", p.Frames(), p.Volume())
	p.Volume().LogStats()

	if store != nil {
		if err := store.SaveVolume(c.Volume.Name, p.Volume()); err != nil {
			return err
		}
		store.LogStats()
	}
	if c.Extract.Output != "" {
		return extract(p, c.Extract.Output)
	}
	return nil
}

// DoExtract performs the "extract" command on a stored volume.  The output
// argument overrides the configured output file.
func DoExtract(filename, output string) error {
	c, err := loadConfig(filename)
	if err != nil {
		return err
	}
	if output == "" {
		output = c.Extract.Output
	}
	if output == "" {
		return fmt.Errorf("no output file given or configured for extraction")
	}
	intr, err := c.Intrinsics()
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	vol, err := store.LoadVolume(c.Volume.Name)
	if err != nil {
		return err
	}
	opts := c.FusionOptions()
	opts.Resolution = vol.Resolution()
	p, err := fusion.NewPipelineWithVolume(opts, intr, vol)
	if err != nil {
		return err
	}
	return extract(p, output)
}

func extract(p *fusion.Pipeline, output string) error {
	verts, _, err := p.ExtractSurface()
	var capErr *kernel.CapacityError
	if errors.As(err, &capErr) {
		core.Warningf("Writing %d of %d vertices: %v\n", verts.Len(), capErr.Count, err)
	} else if err != nil {
		return err
	}
	return export.SaveFile(output, verts)
}

// DoInfo performs the "info" command, listing stored volumes.
func DoInfo(filename string) error {
	c, err := loadConfig(filename)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	infos, err := store.ListVolumes()
	if err != nil {
		return err
	}
	lsm, vlog := store.Size()
	fmt.Printf("%s: %d volumes, %s on disk\n", store, len(infos), humanize.Bytes(uint64(lsm+vlog)))
	for _, info := range infos {
		m := info.Metadata
		voxels := uint64(m.NumBlocks) * uint64(m.Resolution*m.Resolution*m.Resolution)
		fmt.Printf("%-20s  %s  %d blocks of %d^3 (%s voxels), channels %s\n", info.Name, m.ID,
			m.NumBlocks, m.Resolution, humanize.Comma(int64(voxels)), m.Layout)
	}
	return nil
}

// DoDelete performs the "delete" command.
func DoDelete(filename, name string) error {
	if name == "" {
		return fmt.Errorf("delete command must be followed by a configuration and a volume name")
	}
	c, err := loadConfig(filename)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.DeleteVolume(name); err != nil {
		return err
	}
	fmt.Printf("Deleted volume %q from %s\n", name, store)
	return nil
}
