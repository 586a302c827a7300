package camera

// Projector maps voxel coordinates into camera space and onto the image plane.
// Values are held in float32 for the per-voxel kernels.
type Projector struct {
	r         [9]float32
	t         [3]float32
	fx, fy    float32
	cx, cy    float32
	voxelSize float32
}

// NewProjector returns a projector for voxels of the given edge length in metres.
func NewProjector(intr Intrinsics, extr Extrinsics, voxelSize float32) Projector {
	p := Projector{
		fx:        float32(intr.Fx),
		fy:        float32(intr.Fy),
		cx:        float32(intr.Cx),
		cy:        float32(intr.Cy),
		voxelSize: voxelSize,
	}
	r := extr.Rotation()
	for i, v := range r {
		p.r[i] = float32(v)
	}
	t := extr.Translation()
	p.t = [3]float32{float32(t.X), float32(t.Y), float32(t.Z)}
	return p
}

// Transform returns R*(v*voxelSize)+t for the voxel coordinate v.
func (p Projector) Transform(x, y, z float32) (xc, yc, zc float32) {
	x *= p.voxelSize
	y *= p.voxelSize
	z *= p.voxelSize
	xc = p.r[0]*x + p.r[1]*y + p.r[2]*z + p.t[0]
	yc = p.r[3]*x + p.r[4]*y + p.r[5]*z + p.t[1]
	zc = p.r[6]*x + p.r[7]*y + p.r[8]*z + p.t[2]
	return
}

// Project returns the continuous pixel coordinate of a camera-space point.  The
// caller must ensure zc != 0.
func (p Projector) Project(xc, yc, zc float32) (u, v float32) {
	return p.fx*xc/zc + p.cx, p.fy*yc/zc + p.cy
}

// Unproject returns the camera-space point seen at pixel (u, v) at the given depth.
func (p Projector) Unproject(u, v, depth float32) (xc, yc, zc float32) {
	return (u - p.cx) * depth / p.fx, (v - p.cy) * depth / p.fy, depth
}
