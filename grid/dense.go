// Package grid provides the addressing arithmetic shared by the fusion and
// extraction kernels: flat offsets within a dense block or image, and the
// 27-block neighborhood around a voxel block.
package grid

import "fmt"

// Dense converts between coordinates and flat offsets of a dense array of two or
// three dimensions.  Shapes are given slowest dimension first, i.e. (H, W) for an
// image and (D, H, W) for a block, so x always varies fastest:
//
//	offset = x + y*W + z*W*H
type Dense struct {
	ndims int
	shape [3]int64 // slowest first, unused leading entries are 1
	n     int64
}

// NewDense returns an indexer for the given shape.  It panics if the shape does
// not have 2 or 3 positive dimensions since that is a programming error.
func NewDense(shape ...int64) Dense {
	if len(shape) < 2 || len(shape) > 3 {
		panic(fmt.Sprintf("dense indexer only supports 2 or 3 dimensions, got %d", len(shape)))
	}
	d := Dense{ndims: len(shape), shape: [3]int64{1, 1, 1}, n: 1}
	for i, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("dense indexer dimension %d must be positive, got %d", i, s))
		}
		d.shape[3-len(shape)+i] = s
		d.n *= s
	}
	return d
}

// NewCube returns an indexer for a res x res x res block.
func NewCube(res int64) Dense {
	return NewDense(res, res, res)
}

// NumDims returns the dimensionality of the indexed array.
func (d Dense) NumDims() int {
	return d.ndims
}

// Shape returns the size of dimension i, counting slowest first as given to NewDense.
func (d Dense) Shape(i int) int64 {
	return d.shape[3-d.ndims+i]
}

// NumElements returns the total number of elements.
func (d Dense) NumElements() int64 {
	return d.n
}

// Width returns the size of the fastest varying dimension.
func (d Dense) Width() int64 {
	return d.shape[2]
}

// Height returns the size of the second fastest varying dimension.
func (d Dense) Height() int64 {
	return d.shape[1]
}

// Offset3D returns the flat offset of (x, y, z).
func (d Dense) Offset3D(x, y, z int64) int64 {
	return x + (y+z*d.shape[1])*d.shape[2]
}

// OffsetTo3D converts a flat offset into (x, y, z).
func (d Dense) OffsetTo3D(offset int64) (x, y, z int64) {
	x = offset % d.shape[2]
	offset /= d.shape[2]
	y = offset % d.shape[1]
	z = offset / d.shape[1]
	return
}

// Offset2D returns the flat offset of (x, y).
func (d Dense) Offset2D(x, y int64) int64 {
	return x + y*d.shape[2]
}

// OffsetTo2D converts a flat offset into (x, y).
func (d Dense) OffsetTo2D(offset int64) (x, y int64) {
	return offset % d.shape[2], offset / d.shape[2]
}

// InBounds2D returns true if the continuous pixel coordinate (u, v) lies within
// [0, W-1] x [0, H-1].  Truncating an in-bounds coordinate always gives a valid pixel.
func (d Dense) InBounds2D(u, v float32) bool {
	return u >= 0 && v >= 0 && u <= float32(d.shape[2]-1) && v <= float32(d.shape[1]-1)
}

// InBounds3D returns true if (x, y, z) is a valid voxel coordinate.
func (d Dense) InBounds3D(x, y, z int64) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < d.shape[2] && y < d.shape[1] && z < d.shape[0]
}
