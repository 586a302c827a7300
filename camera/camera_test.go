package camera

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-5
}

func TestProjectorIdentity(t *testing.T) {
	intr := Intrinsics{Width: 10, Height: 10, Fx: 2, Fy: 2, Cx: 5, Cy: 5}
	p := NewProjector(intr, IdentityExtrinsics(), 0.5)
	xc, yc, zc := p.Transform(2, -2, 4)
	if xc != 1 || yc != -1 || zc != 2 {
		t.Fatalf("Transform = (%g,%g,%g)", xc, yc, zc)
	}
	u, v := p.Project(xc, yc, zc)
	if u != 6 || v != 4 {
		t.Errorf("Project = (%g,%g), expected (6,4)", u, v)
	}
	ux, uy, uz := p.Unproject(u, v, zc)
	if ux != xc || uy != yc || uz != zc {
		t.Errorf("Unproject = (%g,%g,%g)", ux, uy, uz)
	}
}

func TestProjectorRigid(t *testing.T) {
	// 90 degree rotation about z followed by a translation.
	extr := NewExtrinsicsRt([9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}, r3.Vec{X: 1, Y: 2, Z: 3})
	p := NewProjector(PrimeSenseDefault(), extr, 1)
	xc, yc, zc := p.Transform(1, 0, 0)
	if xc != 1 || yc != 3 || zc != 3 {
		t.Errorf("Transform = (%g,%g,%g), expected (1,3,3)", xc, yc, zc)
	}
	got := extr.Apply(r3.Vec{X: 1})
	if !almostEqual(got.X, 1) || !almostEqual(got.Y, 3) || !almostEqual(got.Z, 3) {
		t.Errorf("Apply = %v", got)
	}

	inv, err := extr.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	back := inv.Apply(got)
	if !almostEqual(back.X, 1) || !almostEqual(back.Y, 0) || !almostEqual(back.Z, 0) {
		t.Errorf("inverse did not recover point: %v", back)
	}
}

func TestExtrinsicsValidation(t *testing.T) {
	if _, err := NewExtrinsics(make([]float64, 12)); err == nil {
		t.Errorf("expected error on 12 values")
	}
	m := make([]float64, 16)
	m[15] = 2
	if _, err := NewExtrinsics(m); err == nil {
		t.Errorf("expected error on bad last row")
	}
	var zero Extrinsics
	if r := zero.Rotation(); r[0] != 1 || r[4] != 1 || r[8] != 1 {
		t.Errorf("zero extrinsics should act as identity, got %v", r)
	}
}

func TestIntrinsicJSON(t *testing.T) {
	in := Intrinsics{Width: 640, Height: 480, Fx: 525, Fy: 520, Cx: 319.5, Cy: 239.5}
	var buf bytes.Buffer
	if err := EncodeIntrinsicJSON(&buf, in); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeIntrinsicJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != in {
		t.Errorf("decoded %+v, expected %+v", got, in)
	}

	bad := []string{
		`{"width": 640, "height": 480}`,
		`{"width": 640, "height": 480, "intrinsic_matrix": [1, 2, 3]}`,
		`{"width": -1, "height": 480, "intrinsic_matrix": [525, 0, 0, 0, 525, 0, 319.5, 239.5, 1]}`,
		`{"width": 640, "height": 480, "intrinsic_matrix": [0, 0, 0, 0, 525, 0, 319.5, 239.5, 1]}`,
		`not json`,
	}
	for _, doc := range bad {
		if _, err := DecodeIntrinsicJSON(strings.NewReader(doc)); err == nil {
			t.Errorf("expected error decoding %s", doc)
		}
	}
}

const testTrajectory = `0 0 1
1 0 0 0.5
0 1 0 0
0 0 1 0
0 0 0 1

1 1 2
0 -1 0 0
1 0 0 0
0 0 1 2
0 0 0 1
`

func TestTrajectory(t *testing.T) {
	frames, err := DecodeTrajectory(strings.NewReader(testTrajectory))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].Meta != [3]int{1, 1, 2} {
		t.Errorf("bad metadata %v", frames[1].Meta)
	}
	extr, err := frames[0].Extrinsic()
	if err != nil {
		t.Fatal(err)
	}
	// camera sits at x=0.5 in the world, so the world origin is at x=-0.5 in camera space.
	if tr := extr.Translation(); !almostEqual(tr.X, -0.5) || !almostEqual(tr.Y, 0) || !almostEqual(tr.Z, 0) {
		t.Errorf("bad extrinsic translation %v", tr)
	}

	if _, err := DecodeTrajectory(strings.NewReader("0 0 1\n1 0 0 0\n")); err == nil {
		t.Errorf("expected truncated pose error")
	}
	if _, err := DecodeTrajectory(strings.NewReader("0 0\n")); err == nil {
		t.Errorf("expected metadata error")
	}
}

func TestDepthPNG(t *testing.T) {
	depth := NewDepthImage(4, 3)
	depth.Set(0, 0, 1.5)
	depth.Set(3, 2, 0.25)
	depth.Set(1, 1, 5)
	if err := depth.Validate(); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := EncodeDepthPNG(&buf, depth, 1000); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeDepthPNG(&buf, 1000, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 4 || got.Height != 3 {
		t.Fatalf("bad size %d x %d", got.Width, got.Height)
	}
	if got.At(0, 0) != 1.5 || got.At(3, 2) != 0.25 {
		t.Errorf("bad depths %g, %g", got.At(0, 0), got.At(3, 2))
	}
	if got.At(1, 1) != 0 {
		t.Errorf("depth beyond cutoff should be zeroed, got %g", got.At(1, 1))
	}
	if _, err := DecodeDepthPNG(bytes.NewReader(nil), 0, 3); err == nil {
		t.Errorf("expected error on zero depth scale")
	}
	if ix := got.Indexer(); ix.Width() != 4 || ix.Height() != 3 {
		t.Errorf("bad indexer %d x %d", ix.Width(), ix.Height())
	}
}
