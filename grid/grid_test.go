package grid

import "testing"

func TestDenseOffsets(t *testing.T) {
	d := NewDense(4, 3, 5) // D=4, H=3, W=5
	if d.NumElements() != 60 {
		t.Fatalf("expected 60 elements, got %d", d.NumElements())
	}
	if d.Width() != 5 || d.Height() != 3 || d.Shape(0) != 4 {
		t.Fatalf("bad shape: W %d, H %d, D %d", d.Width(), d.Height(), d.Shape(0))
	}
	var offset int64
	for z := int64(0); z < 4; z++ {
		for y := int64(0); y < 3; y++ {
			for x := int64(0); x < 5; x++ {
				if got := d.Offset3D(x, y, z); got != offset {
					t.Fatalf("Offset3D(%d,%d,%d) = %d, expected %d", x, y, z, got, offset)
				}
				gx, gy, gz := d.OffsetTo3D(offset)
				if gx != x || gy != y || gz != z {
					t.Fatalf("OffsetTo3D(%d) = (%d,%d,%d), expected (%d,%d,%d)", offset, gx, gy, gz, x, y, z)
				}
				offset++
			}
		}
	}
}

func TestDense2D(t *testing.T) {
	d := NewDense(480, 640)
	if d.NumDims() != 2 {
		t.Fatalf("expected 2 dims, got %d", d.NumDims())
	}
	if off := d.Offset2D(3, 2); off != 3+2*640 {
		t.Errorf("bad 2d offset %d", off)
	}
	x, y := d.OffsetTo2D(3 + 2*640)
	if x != 3 || y != 2 {
		t.Errorf("bad 2d coordinate (%d,%d)", x, y)
	}

	tests := []struct {
		u, v float32
		in   bool
	}{
		{0, 0, true},
		{639, 479, true},
		{639.5, 0, false},
		{-1, 10, false},
		{-0.01, 10, false},
		{10, 480, false},
		{320.7, 240.2, true},
	}
	for _, tc := range tests {
		if got := d.InBounds2D(tc.u, tc.v); got != tc.in {
			t.Errorf("InBounds2D(%g, %g) = %t, expected %t", tc.u, tc.v, got, tc.in)
		}
	}
}

func TestDenseInBounds3D(t *testing.T) {
	d := NewCube(8)
	if !d.InBounds3D(0, 0, 0) || !d.InBounds3D(7, 7, 7) {
		t.Errorf("corners should be in bounds")
	}
	if d.InBounds3D(8, 0, 0) || d.InBounds3D(0, -1, 0) || d.InBounds3D(0, 0, 8) {
		t.Errorf("faces outside block should be out of bounds")
	}
}

func TestDenseBadShape(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic on 1d shape")
		}
	}()
	NewDense(5)
}

func TestNeighborIndex(t *testing.T) {
	if NeighborIndex(0, 0, 0) != CenterNeighbor {
		t.Fatalf("center should be %d", CenterNeighbor)
	}
	seen := make(map[int]bool)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nb := NeighborIndex(dx, dy, dz)
				if nb < 0 || nb >= NumNeighbors {
					t.Fatalf("neighbor index %d out of range", nb)
				}
				if seen[nb] {
					t.Fatalf("duplicate neighbor index %d", nb)
				}
				seen[nb] = true
				gx, gy, gz := NeighborOffset(nb)
				if gx != dx || gy != dy || gz != dz {
					t.Errorf("NeighborOffset(%d) = (%d,%d,%d), expected (%d,%d,%d)", nb, gx, gy, gz, dx, dy, dz)
				}
			}
		}
	}
}

func TestResolve(t *testing.T) {
	const res = 8
	// Every one of the 27 neighbors, probed at the block's first and last voxel.
	for nb := 0; nb < NumNeighbors; nb++ {
		dx, dy, dz := NeighborOffset(nb)
		for _, local := range []int64{0, res - 1} {
			x := int64(dx)*res + local
			y := int64(dy)*res + local
			z := int64(dz)*res + local
			got, lx, ly, lz, ok := Resolve(x, y, z, res)
			if !ok {
				t.Fatalf("(%d,%d,%d) should resolve", x, y, z)
			}
			if got != nb {
				t.Errorf("(%d,%d,%d) resolved to neighbor %d, expected %d", x, y, z, got, nb)
			}
			if lx != local || ly != local || lz != local {
				t.Errorf("(%d,%d,%d) resolved to local (%d,%d,%d)", x, y, z, lx, ly, lz)
			}
		}
	}

	// The six positive faces stepped from the last voxel.
	faces := []struct {
		x, y, z int64
		nb      int
	}{
		{res, 0, 0, NeighborIndex(1, 0, 0)},
		{0, res, 0, NeighborIndex(0, 1, 0)},
		{0, 0, res, NeighborIndex(0, 0, 1)},
		{-1, 0, 0, NeighborIndex(-1, 0, 0)},
		{0, -1, 0, NeighborIndex(0, -1, 0)},
		{0, 0, -1, NeighborIndex(0, 0, -1)},
	}
	for _, f := range faces {
		nb, _, _, _, ok := Resolve(f.x, f.y, f.z, res)
		if !ok || nb != f.nb {
			t.Errorf("face (%d,%d,%d): got neighbor %d (ok %t), expected %d", f.x, f.y, f.z, nb, ok, f.nb)
		}
	}

	if _, _, _, _, ok := Resolve(2*res, 0, 0, res); ok {
		t.Errorf("coordinate two blocks away should not resolve")
	}
	if _, _, _, _, ok := Resolve(0, -res-1, 0, res); ok {
		t.Errorf("coordinate two blocks below should not resolve")
	}
}

func TestStep(t *testing.T) {
	tests := []struct {
		local, d, wrapped int64
	}{
		{0, 0, 0},
		{7, 0, 7},
		{8, 1, 0},
		{9, 1, 1},
		{-1, -1, 7},
		{-8, -1, 0},
		{-9, -2, 7},
	}
	for _, tc := range tests {
		d, w := Step(tc.local, 8)
		if d != tc.d || w != tc.wrapped {
			t.Errorf("Step(%d, 8) = (%d, %d), expected (%d, %d)", tc.local, d, w, tc.d, tc.wrapped)
		}
	}
}
