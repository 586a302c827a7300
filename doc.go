/*
Package tsdf fuses depth frames into a sparse truncated signed distance function
(TSDF) volume and extracts the vertices of its zero-crossing surface.

Documentation can be found nicely formatted at http://godoc.org/github.com/janelia-flyem/tsdf

Volumes

A volume is a sparse set of cubic voxel blocks keyed by integer block coordinates.
Only blocks touched by some depth observation exist.  Every voxel of a fused volume
holds a normalized tsdf value in [-1, 1] and an integer-valued weight counting its
observations.  A surface volume aligned with a fused volume holds, for each voxel,
the index of the vertex on each of its +x, +y and +z edges or -1.

Packages

	core      logging, block coordinates, compressed serialization
	grid      dense block addressing and the 27-neighborhood
	volume    sparse block volumes, workload indexers, neighbor views, block codec
	camera    intrinsics, extrinsics, projection, depth images and trajectory logs
	kernel    integration and surface extraction operators with their launchers
	fusion    frame-by-frame pipeline allocating blocks and running the kernels
	storage   badger-backed persistence of named volumes
	export    PLY and binary glTF point output
	config    TOML configuration

Standard commands

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	tsdf about
	tsdf integrate <config.toml>
	tsdf extract <config.toml> [output.ply|output.glb]
	tsdf info <config.toml>
	tsdf delete <config.toml> <volume name>

A sample configuration:

	[volume]
	name = "lounge"
	resolution = 16
	voxel_size = 0.004
	sdf_trunc = 0.02

	[camera]
	intrinsic = "camera.json"
	trajectory = "lounge_trajectory.log"
	depth_dir = "depth"
	depth_scale = 1000.0
	depth_max = 3.0

	[extract]
	output = "lounge.ply"
	grow_capacity = true

	[store]
	path = "lounge.db"
	compression = "zstd"

	[logging]
	logfile = "tsdf.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days
	level = "info"

Surface triangulation is not performed; the extracted vertices and the surface
volume's vertex indices are the output.
*/
package tsdf
