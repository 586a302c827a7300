package kernel

import (
	"fmt"
	"strings"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/volume"
)

// OpCode selects a kernel operation.
type OpCode uint8

const (
	OpIntegrate OpCode = iota + 1
	OpExtractSurface
)

func (op OpCode) String() string {
	switch op {
	case OpIntegrate:
		return "integrate"
	case OpExtractSurface:
		return "extract_surface"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// ParseOpCode returns the operation with the given name.
func ParseOpCode(name string) (OpCode, error) {
	switch strings.ToLower(name) {
	case "integrate":
		return OpIntegrate, nil
	case "extract_surface", "extract":
		return OpExtractSurface, nil
	default:
		return 0, fmt.Errorf("unknown kernel operation %q", name)
	}
}

// IntegrateArgs bundles the arguments of Integrate for Dispatch.
type IntegrateArgs struct {
	Volume     *volume.Volume
	Depth      *camera.DepthImage
	Intrinsics camera.Intrinsics
	Extrinsics camera.Extrinsics
	VoxelSize  float32
	SDFTrunc   float32
}

// Dispatch runs the selected operation.  Integration returns no vertices.
func Dispatch(l Launcher, op OpCode, args interface{}) (*Vertices, error) {
	switch op {
	case OpIntegrate:
		var a IntegrateArgs
		switch v := args.(type) {
		case IntegrateArgs:
			a = v
		case *IntegrateArgs:
			a = *v
		default:
			return nil, configErrorf(op, "expected IntegrateArgs, got %T", args)
		}
		return nil, Integrate(l, a.Volume, a.Depth, a.Intrinsics, a.Extrinsics, a.VoxelSize, a.SDFTrunc)
	case OpExtractSurface:
		var a ExtractArgs
		switch v := args.(type) {
		case ExtractArgs:
			a = v
		case *ExtractArgs:
			a = *v
		default:
			return nil, configErrorf(op, "expected ExtractArgs, got %T", args)
		}
		return ExtractSurfaceVertices(l, a)
	default:
		return nil, &UnsupportedOpError{Op: op}
	}
}
