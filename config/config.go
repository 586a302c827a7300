/*
	Package config reads the TOML configuration of a fusion run.  A minimal
	configuration names only the depth frames and trajectory:

		[camera]
		trajectory = "trajectory.log"
		depth_dir = "depth"

	Relative paths are resolved against the directory of the configuration file.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/fusion"
	"github.com/janelia-flyem/tsdf/storage"
)

// DefaultVolumeName is the store name of a volume when none is configured.
const DefaultVolumeName = "scene"

// Config is a parsed TOML configuration.
type Config struct {
	Volume  VolumeConfig
	Camera  CameraConfig
	Extract ExtractConfig
	Workers WorkersConfig
	Store   StoreConfig
	Logging LoggingConfig

	// location of the file this configuration was loaded from, if any.
	location string
}

// VolumeConfig is the [volume] section.
type VolumeConfig struct {
	Name       string
	Resolution int64
	VoxelSize  float32 `toml:"voxel_size"`
	SDFTrunc   float32 `toml:"sdf_trunc"`
	Stride     int
}

// CameraConfig is the [camera] section.
type CameraConfig struct {
	// Intrinsic is a pinhole camera JSON file.  If empty, PrimeSense defaults are used.
	Intrinsic  string
	Trajectory string
	DepthDir   string  `toml:"depth_dir"`
	DepthScale float32 `toml:"depth_scale"`
	DepthMax   float32 `toml:"depth_max"`

	// Frames limits the number of integrated frames if positive.
	Frames int
}

// ExtractConfig is the [extract] section.
type ExtractConfig struct {
	Capacity     int
	GrowCapacity bool `toml:"grow_capacity"`

	// Output is the vertex file, .ply or .glb.
	Output string
}

// WorkersConfig is the [workers] section.
type WorkersConfig struct {
	// Count bounds kernel parallelism.  Zero uses every core; negative runs serially.
	Count int
}

// StoreConfig is the [store] section.  An empty path disables persistence.
type StoreConfig struct {
	Path        string
	InMemory    bool   `toml:"in_memory"`
	SyncWrites  bool   `toml:"sync_writes"`
	CacheSize   string `toml:"cache_size"`
	Compression string
}

// LoggingConfig is the [logging] section.
type LoggingConfig struct {
	core.LogConfig
	Level string
}

// Default returns the configuration used for settings absent from a file.
func Default() *Config {
	opts := fusion.DefaultOptions()
	return &Config{
		Volume: VolumeConfig{
			Name:       DefaultVolumeName,
			Resolution: opts.Resolution,
			VoxelSize:  opts.VoxelSize,
			SDFTrunc:   opts.SDFTrunc,
			Stride:     opts.Stride,
		},
		Camera: CameraConfig{
			DepthScale: 1000,
			DepthMax:   3,
		},
		Extract: ExtractConfig{
			Capacity: opts.Capacity,
		},
		Store: StoreConfig{
			CacheSize:   humanize.IBytes(storage.DefaultCacheSize),
			Compression: "snappy",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML configuration file over the defaults and validates it.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := Default()
	md, err := toml.DecodeFile(filename, c)
	if err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		core.Warningf("Ignoring unknown settings in %s: %v\n", filename, undecoded)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	core.Debugf("Loaded configuration %s: %+v\n", filename, *c)
	return c, nil
}

// Location returns the file the configuration was loaded from.
func (c *Config) Location() string {
	return c.location
}

// Some settings can be given as relative paths to the TOML file's directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir := filepath.Dir(configPath)
	paths := []struct {
		setting string
		path    *string
	}{
		{"camera.intrinsic", &c.Camera.Intrinsic},
		{"camera.trajectory", &c.Camera.Trajectory},
		{"camera.depth_dir", &c.Camera.DepthDir},
		{"extract.output", &c.Extract.Output},
		{"store.path", &c.Store.Path},
		{"logging.logfile", &c.Logging.Logfile},
	}
	for _, p := range paths {
		if *p.path == "" {
			continue
		}
		absPath, err := core.ConvertToAbsolute(*p.path, configDir)
		if err != nil {
			return fmt.Errorf("error converting %s to absolute path: %q", p.setting, *p.path)
		}
		*p.path = absPath
	}
	return nil
}

// Validate checks settings that do not require reading other files.
func (c *Config) Validate() error {
	if err := c.FusionOptions().Validate(); err != nil {
		return err
	}
	if c.Volume.Name == "" {
		return fmt.Errorf("volume name must not be empty")
	}
	if c.Camera.DepthScale <= 0 {
		return fmt.Errorf("depth scale must be positive, got %g", c.Camera.DepthScale)
	}
	if c.Camera.DepthMax < 0 {
		return fmt.Errorf("depth max must not be negative, got %g", c.Camera.DepthMax)
	}
	if c.Extract.Output != "" {
		switch ext := strings.ToLower(filepath.Ext(c.Extract.Output)); ext {
		case ".ply", ".glb":
		default:
			return fmt.Errorf("extract output %q must be a .ply or .glb file", c.Extract.Output)
		}
	}
	if _, err := c.StoreConfig(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// FusionOptions returns the pipeline options of the configuration.
func (c *Config) FusionOptions() fusion.Options {
	return fusion.Options{
		Resolution:   c.Volume.Resolution,
		VoxelSize:    c.Volume.VoxelSize,
		SDFTrunc:     c.Volume.SDFTrunc,
		Stride:       c.Volume.Stride,
		Capacity:     c.Extract.Capacity,
		GrowCapacity: c.Extract.GrowCapacity,
		Workers:      c.Workers.Count,
	}
}

// HasStore returns true if a store is configured.
func (c *Config) HasStore() bool {
	return c.Store.Path != "" || c.Store.InMemory
}

// StoreConfig returns the storage settings of the configuration.
func (c *Config) StoreConfig() (storage.Config, error) {
	compress, err := core.ParseCompression(c.Store.Compression)
	if err != nil {
		return storage.Config{}, err
	}
	var cacheSize uint64
	if c.Store.CacheSize != "" {
		if cacheSize, err = humanize.ParseBytes(c.Store.CacheSize); err != nil {
			return storage.Config{}, fmt.Errorf("bad store cache size %q: %v", c.Store.CacheSize, err)
		}
	}
	return storage.Config{
		Path:        c.Store.Path,
		InMemory:    c.Store.InMemory,
		SyncWrites:  c.Store.SyncWrites,
		CacheSize:   int(cacheSize),
		Compression: compress,
	}, nil
}

// Intrinsics loads the camera intrinsics, defaulting to PrimeSense parameters.
func (c *Config) Intrinsics() (camera.Intrinsics, error) {
	if c.Camera.Intrinsic == "" {
		return camera.PrimeSenseDefault(), nil
	}
	return camera.ReadIntrinsicJSON(c.Camera.Intrinsic)
}

// DepthFiles returns the sorted PNG files of the depth directory.
func (c *Config) DepthFiles() ([]string, error) {
	if c.Camera.DepthDir == "" {
		return nil, fmt.Errorf("no depth directory configured")
	}
	if _, err := os.Stat(c.Camera.DepthDir); err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(c.Camera.DepthDir, "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ApplyLogging sets the log level and log file of the configuration.
func (c *Config) ApplyLogging() error {
	level, err := ParseLogLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	core.SetLogMode(level)
	c.Logging.SetLogger()
	return nil
}

// ParseLogLevel returns the log mode named "debug", "info", "warning", "error",
// "critical" or "silent".  An empty name is info.
func ParseLogLevel(name string) (core.ModeFlag, error) {
	switch strings.ToLower(name) {
	case "debug":
		return core.DebugMode, nil
	case "", "info":
		return core.InfoMode, nil
	case "warning":
		return core.WarningMode, nil
	case "error":
		return core.ErrorMode, nil
	case "critical":
		return core.CriticalMode, nil
	case "silent":
		return core.SilentMode, nil
	default:
		return core.InfoMode, fmt.Errorf("unknown log level %q", name)
	}
}
