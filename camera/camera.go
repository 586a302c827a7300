// Package camera holds pinhole camera models, rigid camera poses and depth images,
// along with loaders for the common on-disk formats of RGB-D datasets.
package camera

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Intrinsics is a pinhole camera model without distortion.
type Intrinsics struct {
	Width  int
	Height int
	Fx, Fy float64
	Cx, Cy float64
}

// Validate checks the model can project points.
func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("intrinsic image size must be positive, got %d x %d", in.Width, in.Height)
	}
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("intrinsic focal lengths must be positive, got (%g, %g)", in.Fx, in.Fy)
	}
	return nil
}

// Matrix returns the 3x3 intrinsic matrix.
func (in Intrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		in.Fx, 0, in.Cx,
		0, in.Fy, in.Cy,
		0, 0, 1,
	})
}

// Extrinsics is a rigid world-to-camera transform held as a 4x4 matrix.
type Extrinsics struct {
	m *mat.Dense
}

// IdentityExtrinsics places the camera at the world origin looking down +z.
func IdentityExtrinsics() Extrinsics {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return Extrinsics{m}
}

// NewExtrinsics returns extrinsics from a row-major 4x4 matrix.  The last row
// must be (0, 0, 0, 1).
func NewExtrinsics(rowMajor []float64) (Extrinsics, error) {
	if len(rowMajor) != 16 {
		return Extrinsics{}, fmt.Errorf("extrinsic matrix needs 16 values, got %d", len(rowMajor))
	}
	if rowMajor[12] != 0 || rowMajor[13] != 0 || rowMajor[14] != 0 || rowMajor[15] != 1 {
		return Extrinsics{}, fmt.Errorf("extrinsic matrix last row must be (0 0 0 1), got %v", rowMajor[12:])
	}
	data := make([]float64, 16)
	copy(data, rowMajor)
	return Extrinsics{mat.NewDense(4, 4, data)}, nil
}

// NewExtrinsicsRt returns extrinsics from a row-major rotation and a translation.
func NewExtrinsicsRt(r [9]float64, t r3.Vec) Extrinsics {
	return Extrinsics{mat.NewDense(4, 4, []float64{
		r[0], r[1], r[2], t.X,
		r[3], r[4], r[5], t.Y,
		r[6], r[7], r[8], t.Z,
		0, 0, 0, 1,
	})}
}

func (e Extrinsics) matrix() *mat.Dense {
	if e.m == nil {
		return IdentityExtrinsics().m
	}
	return e.m
}

// Matrix returns the 4x4 transform.
func (e Extrinsics) Matrix() mat.Matrix {
	return e.matrix()
}

// Rotation returns the row-major 3x3 rotation.
func (e Extrinsics) Rotation() [9]float64 {
	m := e.matrix()
	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[3*i+j] = m.At(i, j)
		}
	}
	return r
}

// Translation returns the translation in metres.
func (e Extrinsics) Translation() r3.Vec {
	m := e.matrix()
	return r3.Vec{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// Apply transforms a point.
func (e Extrinsics) Apply(p r3.Vec) r3.Vec {
	r := e.Rotation()
	t := e.Translation()
	return r3.Vec{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z + t.X,
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z + t.Y,
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z + t.Z,
	}
}

// Inverse returns the inverse transform, e.g., camera-to-world from world-to-camera.
func (e Extrinsics) Inverse() (Extrinsics, error) {
	var inv mat.Dense
	if err := inv.Inverse(e.matrix()); err != nil {
		return Extrinsics{}, fmt.Errorf("extrinsic matrix not invertible: %v", err)
	}
	return Extrinsics{&inv}, nil
}

func (e Extrinsics) String() string {
	return fmt.Sprintf("%v", mat.Formatted(e.matrix(), mat.Squeeze()))
}
