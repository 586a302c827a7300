/*
	Package kernel implements the per-voxel operators run over a sparse volume:
	fusion of a depth frame into a truncated signed distance field, and
	extraction of zero-crossing vertices from the fused field.

	Operators are launched over a flat range of workloads, one per active voxel,
	by a Launcher.  Integration touches only the voxel's own channel values.
	Extraction shares a single atomic vertex counter across all workloads, so
	vertex numbering depends on scheduling while the set of vertices does not.
*/
package kernel
