package core

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Point3d is an ordered list of three 32-bit signed integers giving the global
// coordinate of a voxel.
type Point3d [3]int32

// Add returns the addition of two points.
func (p Point3d) Add(p2 Point3d) Point3d {
	return Point3d{p[0] + p2[0], p[1] + p2[1], p[2] + p2[2]}
}

// Sub returns the subtraction of the passed point from the receiver.
func (p Point3d) Sub(p2 Point3d) Point3d {
	return Point3d{p[0] - p2[0], p[1] - p2[1], p[2] - p2[2]}
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Chunk returns the coordinate of the cubic block of edge size containing the point.
// Negative coordinates round toward negative infinity so that block (-1,-1,-1)
// contains voxel (-1,-1,-1).
func (p Point3d) Chunk(size int32) ChunkPoint3d {
	var c ChunkPoint3d
	for i := 0; i < 3; i++ {
		if p[i] < 0 {
			c[i] = (p[i] - size + 1) / size
		} else {
			c[i] = p[i] / size
		}
	}
	return c
}

// PointInChunk returns the point's coordinate relative to the first voxel of
// its containing block.
func (p Point3d) PointInChunk(size int32) Point3d {
	var r Point3d
	for i := 0; i < 3; i++ {
		if p[i] < 0 {
			r[i] = size - ((p[i] + 1) % size) - 1
		} else {
			r[i] = p[i] % size
		}
	}
	return r
}

// ChunkPoint3d handles 3d signed block coordinates.
type ChunkPoint3d [3]int32

var (
	MaxChunkPoint3d = ChunkPoint3d{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	MinChunkPoint3d = ChunkPoint3d{math.MinInt32, math.MinInt32, math.MinInt32}
)

// ChunkPoint3dSize is the number of bytes in an encoded ChunkPoint3d.
const ChunkPoint3dSize = 12

func (c ChunkPoint3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c[0], c[1], c[2])
}

// SetMinimum sets the point to the minimum elements of current and passed points.
func (c *ChunkPoint3d) SetMinimum(c2 ChunkPoint3d) {
	for i := 0; i < 3; i++ {
		if c[i] > c2[i] {
			c[i] = c2[i]
		}
	}
}

// SetMaximum sets the point to the maximum elements of current and passed points.
func (c *ChunkPoint3d) SetMaximum(c2 ChunkPoint3d) {
	for i := 0; i < 3; i++ {
		if c[i] < c2[i] {
			c[i] = c2[i]
		}
	}
}

// Offset returns the block displaced by the given number of blocks along each axis.
func (c ChunkPoint3d) Offset(dx, dy, dz int32) ChunkPoint3d {
	return ChunkPoint3d{c[0] + dx, c[1] + dy, c[2] + dz}
}

// MinPoint returns the smallest voxel coordinate of the given block.
func (c ChunkPoint3d) MinPoint(size int32) Point3d {
	return Point3d{c[0] * size, c[1] * size, c[2] * size}
}

// MaxPoint returns the maximum voxel coordinate of the given block.
func (c ChunkPoint3d) MaxPoint(size int32) Point3d {
	return Point3d{
		(c[0]+1)*size - 1,
		(c[1]+1)*size - 1,
		(c[2]+1)*size - 1,
	}
}

// AppendBytes appends the little-endian encoding of the block coordinate. This
// is the canonical form used for hashing.
func (c ChunkPoint3d) AppendBytes(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(c[0]))
	b = binary.LittleEndian.AppendUint32(b, uint32(c[1]))
	return binary.LittleEndian.AppendUint32(b, uint32(c[2]))
}

// SortableBytes returns a ZYX big-endian encoding with flipped sign bits, so that
// byte-wise ordering of keys matches z, then y, then x ordering of blocks.
func (c ChunkPoint3d) SortableBytes() []byte {
	b := make([]byte, ChunkPoint3dSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(c[2])^0x80000000)
	binary.BigEndian.PutUint32(b[4:8], uint32(c[1])^0x80000000)
	binary.BigEndian.PutUint32(b[8:12], uint32(c[0])^0x80000000)
	return b
}

// ChunkPoint3dFromSortable decodes the result of SortableBytes.
func ChunkPoint3dFromSortable(b []byte) (ChunkPoint3d, error) {
	if len(b) != ChunkPoint3dSize {
		return ChunkPoint3d{}, fmt.Errorf("block coordinate must be %d bytes, got %d", ChunkPoint3dSize, len(b))
	}
	var c ChunkPoint3d
	c[2] = int32(binary.BigEndian.Uint32(b[0:4]) ^ 0x80000000)
	c[1] = int32(binary.BigEndian.Uint32(b[4:8]) ^ 0x80000000)
	c[0] = int32(binary.BigEndian.Uint32(b[8:12]) ^ 0x80000000)
	return c, nil
}
