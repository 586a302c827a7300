package grid

// NumNeighbors is the size of the 3x3x3 block neighborhood, including the center.
const NumNeighbors = 27

// CenterNeighbor is the neighborhood index of the block itself.
const CenterNeighbor = 13

// NeighborIndex returns the neighborhood index of the block displaced by
// (dx, dy, dz), each in {-1, 0, 1}.
func NeighborIndex(dx, dy, dz int) int {
	return (dx + 1) + (dy+1)*3 + (dz+1)*9
}

// NeighborOffset is the inverse of NeighborIndex.
func NeighborOffset(nb int) (dx, dy, dz int) {
	return nb%3 - 1, (nb/3)%3 - 1, nb/9 - 1
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Step splits a local coordinate along one axis into the block displacement
// and the coordinate within the displaced block.
func Step(local, res int64) (d int64, wrapped int64) {
	d = floorDiv(local, res)
	return d, local - d*res
}

// Resolve maps a local voxel coordinate that may lie up to one block outside
// [0, res) on each axis to the neighborhood index of the block holding it and
// the coordinate local to that block.  ok is false if the coordinate is further
// than one block away.
func Resolve(x, y, z, res int64) (nb int, lx, ly, lz int64, ok bool) {
	dx, lx := Step(x, res)
	dy, ly := Step(y, res)
	dz, lz := Step(z, res)
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || dz < -1 || dz > 1 {
		return 0, 0, 0, 0, false
	}
	return NeighborIndex(int(dx), int(dy), int(dz)), lx, ly, lz, true
}
