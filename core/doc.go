/*
	Package core provides types, constants, and functions that have no other dependencies
	within the module and can be used by all its packages.  This includes leveled logging,
	voxel and block coordinates, and serialization/compression of block data.
*/
package core
