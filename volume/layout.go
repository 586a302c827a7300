package volume

import (
	"fmt"
	"strings"
)

// DataType is the element type of a voxel channel.
type DataType uint8

const (
	Float32 DataType = iota + 1
	Int32
)

func (t DataType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	default:
		return fmt.Sprintf("unknown type %d", uint8(t))
	}
}

// ParseDataType returns the data type given its name.
func ParseDataType(name string) (DataType, error) {
	switch strings.ToLower(name) {
	case "float32":
		return Float32, nil
	case "int32":
		return Int32, nil
	default:
		return 0, fmt.Errorf("unknown channel data type %q", name)
	}
}

// Channel describes one per-voxel value stored for every block.  Fill is the
// value newly activated voxels hold.
type Channel struct {
	Name string
	Type DataType
	Fill float64
}

// Layout is the ordered set of channels of a volume.  Every channel shares the
// block shape.
type Layout []Channel

// Standard channel names.
const (
	TSDFChannel   = "tsdf"
	WeightChannel = "weight"
)

// SurfaceChannels holds the vertex index channel for each positive axis direction.
var SurfaceChannels = [3]string{"vertex_x", "vertex_y", "vertex_z"}

// NoVertex marks a surface voxel edge without an emitted vertex.
const NoVertex = -1

// TSDFLayout is the layout of a fusion volume.
func TSDFLayout() Layout {
	return Layout{
		{Name: TSDFChannel, Type: Float32},
		{Name: WeightChannel, Type: Float32},
	}
}

// SurfaceLayout is the layout of the vertex index volume written by extraction.
func SurfaceLayout() Layout {
	l := make(Layout, 3)
	for i, name := range SurfaceChannels {
		l[i] = Channel{Name: name, Type: Int32, Fill: NoVertex}
	}
	return l
}

// Index returns the position of the named channel or -1 if absent.
func (l Layout) Index(name string) int {
	for i, ch := range l {
		if ch.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that channels are named uniquely with a known type.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("layout has no channels")
	}
	names := make(map[string]struct{}, len(l))
	for i, ch := range l {
		if ch.Name == "" {
			return fmt.Errorf("channel %d has no name", i)
		}
		if _, found := names[ch.Name]; found {
			return fmt.Errorf("channel %q declared twice", ch.Name)
		}
		names[ch.Name] = struct{}{}
		if ch.Type != Float32 && ch.Type != Int32 {
			return fmt.Errorf("channel %q has %s", ch.Name, ch.Type)
		}
	}
	return nil
}

func (l Layout) String() string {
	parts := make([]string, len(l))
	for i, ch := range l {
		parts[i] = ch.Name + ":" + ch.Type.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
