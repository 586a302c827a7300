package core

import (
	"bytes"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type CoreSuite struct{}

var _ = Suite(&CoreSuite{})

func (s *CoreSuite) TestPoint3dChunk(c *C) {
	p := Point3d{17, 0, 7}
	c.Assert(p.Chunk(8), Equals, ChunkPoint3d{2, 0, 0})
	c.Assert(p.PointInChunk(8), Equals, Point3d{1, 0, 7})

	p = Point3d{-1, -8, -9}
	c.Assert(p.Chunk(8), Equals, ChunkPoint3d{-1, -1, -2})
	c.Assert(p.PointInChunk(8), Equals, Point3d{7, 0, 7})

	c.Assert(p.Add(Point3d{1, 8, 9}), Equals, Point3d{0, 0, 0})
	c.Assert(p.Sub(Point3d{1, 1, 1}), Equals, Point3d{-2, -9, -10})
	c.Assert(p.String(), Equals, "(-1,-8,-9)")
}

func (s *CoreSuite) TestChunkPoint3d(c *C) {
	b := ChunkPoint3d{-2, 3, 1}
	c.Assert(b.MinPoint(8), Equals, Point3d{-16, 24, 8})
	c.Assert(b.MaxPoint(8), Equals, Point3d{-9, 31, 15})
	c.Assert(b.Offset(1, -1, 0), Equals, ChunkPoint3d{-1, 2, 1})

	min := MaxChunkPoint3d
	max := MinChunkPoint3d
	for _, pt := range []ChunkPoint3d{{1, -5, 3}, {-2, 4, 0}} {
		min.SetMinimum(pt)
		max.SetMaximum(pt)
	}
	c.Assert(min, Equals, ChunkPoint3d{-2, -5, 0})
	c.Assert(max, Equals, ChunkPoint3d{1, 4, 3})

	c.Assert(len(b.AppendBytes(nil)), Equals, ChunkPoint3dSize)
}

func (s *CoreSuite) TestSortableBytes(c *C) {
	pts := []ChunkPoint3d{{-1, 0, -1}, {5, 0, -1}, {0, -3, 0}, {0, 0, 0}, {-7, 0, 2}}
	for i := 1; i < len(pts); i++ {
		prev := pts[i-1].SortableBytes()
		cur := pts[i].SortableBytes()
		c.Assert(bytes.Compare(prev, cur) < 0, Equals, true)
	}
	for _, pt := range pts {
		decoded, err := ChunkPoint3dFromSortable(pt.SortableBytes())
		c.Assert(err, IsNil)
		c.Assert(decoded, Equals, pt)
	}
	_, err := ChunkPoint3dFromSortable([]byte{1, 2})
	c.Assert(err, NotNil)
}

func (s *CoreSuite) TestSerializeData(c *C) {
	data := bytes.Repeat([]byte("tsdf block payload "), 200)
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			c.Assert(err, IsNil)
			out, gotCompress, err := DeserializeData(s, true)
			c.Assert(err, IsNil)
			c.Assert(gotCompress, Equals, compress)
			c.Assert(bytes.Equal(out, data), Equals, true)
		}
	}
}

func (s *CoreSuite) TestSerializeBadChecksum(c *C) {
	s2, err := SerializeData([]byte("some voxels"), Uncompressed, CRC32)
	c.Assert(err, IsNil)
	s2[len(s2)-1] ^= 0xff
	_, _, err = DeserializeData(s2, true)
	c.Assert(err, NotNil)

	_, _, err = DeserializeData(nil, true)
	c.Assert(err, NotNil)
}

func (s *CoreSuite) TestParseCompression(c *C) {
	compress, err := ParseCompression("")
	c.Assert(err, IsNil)
	c.Assert(compress, Equals, Snappy)
	compress, err = ParseCompression("ZSTD")
	c.Assert(err, IsNil)
	c.Assert(compress, Equals, Zstd)
	_, err = ParseCompression("gzip")
	c.Assert(err, NotNil)
}

func (s *CoreSuite) TestConvertToAbsolute(c *C) {
	abs, err := ConvertToAbsolute("logs/tsdf.log", "/tmp/cfg")
	c.Assert(err, IsNil)
	c.Assert(abs, Equals, "/tmp/cfg/logs/tsdf.log")
	abs, err = ConvertToAbsolute("/var/log/x.log", "/tmp")
	c.Assert(err, IsNil)
	c.Assert(abs, Equals, "/var/log/x.log")
	_, err = ConvertToAbsolute("", "/tmp")
	c.Assert(err, NotNil)
}
