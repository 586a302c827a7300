/*
	This file supports serialization of volume metadata and individual blocks.
	Both are MessagePack documents; blocks are then compressed and checksummed
	with core.SerializeData.
*/

package volume

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"

	"github.com/janelia-flyem/tsdf/core"
)

// Metadata describes a volume independently of its blocks.
type Metadata struct {
	ID         uuid.UUID
	Resolution int64
	Layout     Layout
	NumBlocks  int
}

// Metadata returns the description of the volume.
func (v *Volume) Metadata() Metadata {
	return Metadata{
		ID:         v.id,
		Resolution: v.res,
		Layout:     v.Layout(),
		NumBlocks:  len(v.keys),
	}
}

// NewFromMetadata returns an empty volume with the described identity,
// resolution and layout.
func NewFromMetadata(m Metadata) (*Volume, error) {
	v, err := New(m.Resolution, m.Layout)
	if err != nil {
		return nil, err
	}
	v.id = m.ID
	return v, nil
}

// MarshalMsg implements msgp.Marshaler
func (z *Metadata) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "id")
	o = msgp.AppendBytes(o, z.ID[:])
	o = msgp.AppendString(o, "res")
	o = msgp.AppendInt64(o, z.Resolution)
	o = msgp.AppendString(o, "layout")
	o = msgp.AppendArrayHeader(o, uint32(len(z.Layout)))
	for _, ch := range z.Layout {
		o = msgp.AppendArrayHeader(o, 3)
		o = msgp.AppendString(o, ch.Name)
		o = msgp.AppendUint8(o, uint8(ch.Type))
		o = msgp.AppendFloat64(o, ch.Fill)
	}
	o = msgp.AppendString(o, "blocks")
	o = msgp.AppendInt(o, z.NumBlocks)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Metadata) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var isz uint32
	isz, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return
	}
	for isz > 0 {
		isz--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return
		}
		switch msgp.UnsafeString(field) {
		case "id":
			var tmp []byte
			tmp, bts, err = msgp.ReadBytesBytes(bts, nil)
			if err != nil {
				return
			}
			if z.ID, err = uuid.FromBytes(tmp); err != nil {
				return
			}
		case "res":
			z.Resolution, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				return
			}
		case "layout":
			var asz uint32
			asz, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return
			}
			z.Layout = make(Layout, asz)
			for i := range z.Layout {
				var csz uint32
				csz, bts, err = msgp.ReadArrayHeaderBytes(bts)
				if err != nil {
					return
				}
				if csz != 3 {
					err = msgp.ArrayError{Wanted: 3, Got: csz}
					return
				}
				z.Layout[i].Name, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return
				}
				var t uint8
				t, bts, err = msgp.ReadUint8Bytes(bts)
				if err != nil {
					return
				}
				z.Layout[i].Type = DataType(t)
				z.Layout[i].Fill, bts, err = msgp.ReadFloat64Bytes(bts)
				if err != nil {
					return
				}
			}
		case "blocks":
			z.NumBlocks, bts, err = msgp.ReadIntBytes(bts)
			if err != nil {
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *Metadata) Msgsize() (s int) {
	s = msgp.MapHeaderSize + msgp.StringPrefixSize + 2 + msgp.BytesPrefixSize + len(z.ID) +
		msgp.StringPrefixSize + 3 + msgp.Int64Size +
		msgp.StringPrefixSize + 6 + msgp.ArrayHeaderSize +
		msgp.StringPrefixSize + 6 + msgp.IntSize
	for _, ch := range z.Layout {
		s += msgp.ArrayHeaderSize + msgp.StringPrefixSize + len(ch.Name) + msgp.Uint8Size + msgp.Float64Size
	}
	return
}

// EncodeBlock serializes the coordinate and every channel of a block.
func (v *Volume) EncodeBlock(blockIdx int, compress core.Compression) ([]byte, error) {
	if blockIdx < 0 || blockIdx >= len(v.keys) {
		return nil, fmt.Errorf("block index %d out of range [0, %d)", blockIdx, len(v.keys))
	}
	key := v.keys[blockIdx]
	start := int64(blockIdx) * v.nvox
	end := start + v.nvox

	o := make([]byte, 0, 32+len(v.layout)*int(4*v.nvox+16))
	o = msgp.AppendArrayHeader(o, 3)
	o = msgp.AppendArrayHeader(o, 3)
	for _, c := range key {
		o = msgp.AppendInt32(o, c)
	}
	o = msgp.AppendInt64(o, v.res)
	o = msgp.AppendArrayHeader(o, uint32(len(v.layout)))
	raw := make([]byte, 4*v.nvox)
	for i, ch := range v.layout {
		switch ch.Type {
		case Float32:
			for j, val := range v.f32[i][start:end] {
				binary.LittleEndian.PutUint32(raw[4*j:], math.Float32bits(val))
			}
		case Int32:
			for j, val := range v.i32[i][start:end] {
				binary.LittleEndian.PutUint32(raw[4*j:], uint32(val))
			}
		}
		o = msgp.AppendArrayHeader(o, 2)
		o = msgp.AppendString(o, ch.Name)
		o = msgp.AppendBytes(o, raw)
	}
	return core.SerializeData(o, compress, core.CRC32)
}

// DecodeBlockKey returns the coordinate of a serialized block without restoring it.
func DecodeBlockKey(data []byte) (core.ChunkPoint3d, error) {
	var key core.ChunkPoint3d
	bts, _, err := core.DeserializeData(data, true)
	if err != nil {
		return key, err
	}
	if _, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return key, err
	}
	key, _, err = readKey(bts)
	return key, err
}

func readKey(bts []byte) (key core.ChunkPoint3d, o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 3 {
		err = msgp.ArrayError{Wanted: 3, Got: sz}
		return
	}
	for i := range key {
		key[i], bts, err = msgp.ReadInt32Bytes(bts)
		if err != nil {
			return
		}
	}
	o = bts
	return
}

// RestoreBlock activates the serialized block and overwrites its channels with
// the stored values.  Stored channels absent from the volume's layout are
// ignored and layout channels absent from the data keep their fill value.
func (v *Volume) RestoreBlock(data []byte) (core.ChunkPoint3d, error) {
	var key core.ChunkPoint3d
	bts, _, err := core.DeserializeData(data, true)
	if err != nil {
		return key, err
	}
	var sz uint32
	if sz, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return key, err
	}
	if sz != 3 {
		return key, msgp.ArrayError{Wanted: 3, Got: sz}
	}
	if key, bts, err = readKey(bts); err != nil {
		return key, err
	}
	var res int64
	if res, bts, err = msgp.ReadInt64Bytes(bts); err != nil {
		return key, err
	}
	if res != v.res {
		return key, fmt.Errorf("block %s has resolution %d, volume has %d", key, res, v.res)
	}
	var nchannels uint32
	if nchannels, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return key, err
	}
	if _, err = v.Activate(key); err != nil {
		return key, err
	}
	blockIdx, _ := v.Find(key)
	start := int64(blockIdx) * v.nvox

	for c := uint32(0); c < nchannels; c++ {
		if sz, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
			return key, err
		}
		if sz != 2 {
			return key, msgp.ArrayError{Wanted: 2, Got: sz}
		}
		var name string
		if name, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return key, err
		}
		var raw []byte
		if raw, bts, err = msgp.ReadBytesZC(bts); err != nil {
			return key, err
		}
		i := v.layout.Index(name)
		if i < 0 {
			core.Debugf("Ignoring stored channel %q of block %s\n", name, key)
			continue
		}
		if int64(len(raw)) != 4*v.nvox {
			return key, fmt.Errorf("channel %q of block %s has %d bytes, expected %d", name, key, len(raw), 4*v.nvox)
		}
		switch v.layout[i].Type {
		case Float32:
			dst := v.f32[i][start : start+v.nvox]
			for j := range dst {
				dst[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
			}
		case Int32:
			dst := v.i32[i][start : start+v.nvox]
			for j := range dst {
				dst[j] = int32(binary.LittleEndian.Uint32(raw[4*j:]))
			}
		}
	}
	return key, nil
}
