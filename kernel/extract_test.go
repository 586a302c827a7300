package kernel

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/janelia-flyem/tsdf/camera"
	"github.com/janelia-flyem/tsdf/core"
	"github.com/janelia-flyem/tsdf/grid"
	"github.com/janelia-flyem/tsdf/volume"
)

func extractArgs(t *testing.T, vol *volume.Volume, voxelSize float32, capacity int) ExtractArgs {
	nv, masks := volume.NewNeighborView(vol)
	surf, err := vol.Aligned(volume.SurfaceLayout())
	if err != nil {
		t.Fatal(err)
	}
	return ExtractArgs{
		TSDF:      vol,
		Neighbors: nv,
		Validity:  masks,
		Surface:   surf,
		VoxelSize: voxelSize,
		Capacity:  capacity,
	}
}

// fillVolume sets every voxel's tsdf from f and weight 1.
func fillVolume(vol *volume.Volume, f func(p core.Point3d) float32) {
	tsdf, _ := vol.Float32Channel(volume.TSDFChannel)
	weight, _ := vol.Float32Channel(volume.WeightChannel)
	nvox := vol.BlockVoxels()
	for b := 0; b < vol.NumBlocks(); b++ {
		for off := int64(0); off < nvox; off++ {
			i := int64(b)*nvox + off
			tsdf[i] = f(vol.Global(b, off))
			weight[i] = 1
		}
	}
}

func sortedVertices(v *Vertices) [][3]float32 {
	out := make([][3]float32, v.Len())
	for i := range out {
		out[i] = v.Vertex(i)
	}
	return out
}

var lessVertex = func(a, b [3]float32) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestExtractInterpolation(t *testing.T) {
	vol := newTSDFVolume(t, 8, core.ChunkPoint3d{2, 0, 0})
	fillVolume(vol, func(p core.Point3d) float32 {
		if p[0] <= 19 {
			return 0.5
		}
		return -0.5
	})
	args := extractArgs(t, vol, 0.01, 1000)
	verts, err := ExtractSurfaceVertices(SerialLauncher{}, args)
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != 64 {
		t.Fatalf("expected 64 vertices, got %d", verts.Len())
	}
	want := float32(0.01) * (19 + 0.5)
	for i := 0; i < verts.Len(); i++ {
		if verts.X[i] != want {
			t.Fatalf("vertex %d x = %g, expected %g", i, verts.X[i], want)
		}
	}
}

func TestExtractAcrossBlocks(t *testing.T) {
	keys := []core.ChunkPoint3d{{0, 0, 0}, {1, 0, 0}}
	makeVol := func() *volume.Volume {
		vol := newTSDFVolume(t, 4, keys...)
		fillVolume(vol, func(p core.Point3d) float32 {
			if p[0] < 4 {
				return 0.5
			}
			return -0.5
		})
		return vol
	}

	args := extractArgs(t, makeVol(), 1, 100)
	verts, err := ExtractSurfaceVertices(SerialLauncher{}, args)
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != 16 {
		t.Fatalf("expected 16 vertices on block face, got %d", verts.Len())
	}
	for i := 0; i < verts.Len(); i++ {
		if verts.X[i] != 3.5 {
			t.Fatalf("vertex %d at x=%g, expected 3.5", i, verts.X[i])
		}
	}

	// Without the +x neighbor marked valid, the face edges are skipped.
	args = extractArgs(t, makeVol(), 1, 100)
	var stripped volume.NeighborMask
	for nb := 0; nb < grid.NumNeighbors; nb++ {
		if nb != grid.NeighborIndex(1, 0, 0) && args.Validity[0].Has(nb) {
			stripped.Set(nb)
		}
	}
	args.Validity[0] = stripped
	verts, err = ExtractSurfaceVertices(SerialLauncher{}, args)
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != 0 {
		t.Errorf("expected no vertices with invalid neighbor, got %d", verts.Len())
	}
}

// randomVolume returns a multi-block volume with random tsdf and sparse zero weights.
func randomVolume(t *testing.T) *volume.Volume {
	var keys []core.ChunkPoint3d
	for z := int32(-1); z <= 1; z++ {
		for y := int32(0); y <= 1; y++ {
			for x := int32(-1); x <= 0; x++ {
				if x == 0 && y == 1 && z == 0 {
					continue // leave a hole
				}
				keys = append(keys, core.ChunkPoint3d{x, y, z})
			}
		}
	}
	vol := newTSDFVolume(t, 6, keys...)
	rng := rand.New(rand.NewSource(42))
	tsdf, _ := vol.Float32Channel(volume.TSDFChannel)
	weight, _ := vol.Float32Channel(volume.WeightChannel)
	for i := range tsdf {
		tsdf[i] = rng.Float32()*2 - 1
		if rng.Intn(10) != 0 {
			weight[i] = float32(1 + rng.Intn(3))
		}
	}
	return vol
}

// bruteForceCount counts qualifying (voxel, direction) pairs from global coordinates.
func bruteForceCount(vol *volume.Volume) int {
	type sample struct{ tsdf, weight float32 }
	voxels := make(map[core.Point3d]sample)
	tsdf, _ := vol.Float32Channel(volume.TSDFChannel)
	weight, _ := vol.Float32Channel(volume.WeightChannel)
	nvox := vol.BlockVoxels()
	for b := 0; b < vol.NumBlocks(); b++ {
		for off := int64(0); off < nvox; off++ {
			i := int64(b)*nvox + off
			voxels[vol.Global(b, off)] = sample{tsdf[i], weight[i]}
		}
	}
	var n int
	for p, o := range voxels {
		if o.weight == 0 {
			continue
		}
		for i := 0; i < 3; i++ {
			q := p
			q[i]++
			s, found := voxels[q]
			if !found || s.weight == 0 {
				continue
			}
			if s.tsdf*o.tsdf < 0 {
				n++
			}
		}
	}
	return n
}

func TestExtractSerialParallel(t *testing.T) {
	vol := randomVolume(t)
	expected := bruteForceCount(vol)
	if expected == 0 {
		t.Fatalf("random volume should have zero crossings")
	}

	serial, err := ExtractSurfaceVertices(SerialLauncher{}, extractArgs(t, vol, 0.005, kernelCapacity))
	if err != nil {
		t.Fatal(err)
	}
	if serial.Len() != expected {
		t.Fatalf("serial extraction found %d vertices, expected %d", serial.Len(), expected)
	}
	for _, workers := range []int{2, 8} {
		args := extractArgs(t, vol, 0.005, kernelCapacity)
		parallel, err := ExtractSurfaceVertices(&ParallelLauncher{Workers: workers, ChunkSize: 101}, args)
		if err != nil {
			t.Fatal(err)
		}
		if parallel.Len() != expected {
			t.Fatalf("parallel extraction found %d vertices, expected %d", parallel.Len(), expected)
		}
		if diff := cmp.Diff(sortedVertices(serial), sortedVertices(parallel), cmpopts.SortSlices(lessVertex)); diff != "" {
			t.Errorf("vertex sets differ with %d workers (-serial +parallel):\n%s", workers, diff)
		}
		checkSurfaceIndices(t, args, parallel)
	}
}

const kernelCapacity = 200000

// checkSurfaceIndices verifies stored indices are a permutation of [0, n) and
// that each index names a vertex on the recorded edge.
func checkSurfaceIndices(t *testing.T, args ExtractArgs, verts *Vertices) {
	var indices []int
	res := args.Surface.Resolution()
	for i, name := range volume.SurfaceChannels {
		data, err := args.Surface.Int32Channel(name)
		if err != nil {
			t.Fatal(err)
		}
		for pos, idx := range data {
			if idx == volume.NoVertex {
				continue
			}
			indices = append(indices, int(idx))
			b := int64(pos) / args.Surface.BlockVoxels()
			g := args.Surface.Global(int(b), int64(pos)%args.Surface.BlockVoxels())
			v := verts.Vertex(int(idx))
			for axis := 0; axis < 3; axis++ {
				lo := args.VoxelSize * float32(g[axis])
				hi := lo
				if axis == i {
					hi = args.VoxelSize * float32(int64(g[axis])+1)
				}
				if v[axis] < lo || v[axis] > hi {
					t.Fatalf("vertex %d %v not on %s edge of voxel %s (res %d)", idx, v, name, g, res)
				}
			}
		}
	}
	sort.Ints(indices)
	if len(indices) != verts.Len() {
		t.Fatalf("surface volume records %d vertices, extraction returned %d", len(indices), verts.Len())
	}
	for i, idx := range indices {
		if idx != i {
			t.Fatalf("indices are not a permutation: position %d holds %d", i, idx)
		}
	}
}

func TestExtractCapacity(t *testing.T) {
	vol := randomVolume(t)
	expected := bruteForceCount(vol)
	args := extractArgs(t, vol, 1, expected-1)
	partial, err := ExtractSurfaceVertices(NewParallelLauncher(4), args)
	var cerr *CapacityError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CapacityError, got %v", err)
	}
	if cerr.Count != int64(expected) || cerr.Capacity != int64(expected-1) {
		t.Errorf("bad capacity error %+v, expected count %d", cerr, expected)
	}
	if partial.Len() != expected-1 {
		t.Errorf("expected %d stored vertices, got %d", expected-1, partial.Len())
	}
	// No index at or past capacity may be recorded.
	for _, name := range volume.SurfaceChannels {
		data, _ := args.Surface.Int32Channel(name)
		for _, idx := range data {
			if int(idx) >= expected-1 {
				t.Fatalf("index %d recorded past capacity", idx)
			}
		}
	}

	args = extractArgs(t, vol, 1, expected)
	verts, err := ExtractSurfaceVertices(NewParallelLauncher(4), args)
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != expected {
		t.Errorf("exact capacity returned %d vertices, expected %d", verts.Len(), expected)
	}
}

func TestExtractZeroWeight(t *testing.T) {
	vol := randomVolume(t)
	weight, _ := vol.Float32Channel(volume.WeightChannel)
	for i := range weight {
		weight[i] = 0
	}
	verts, err := ExtractSurfaceVertices(NewParallelLauncher(4), extractArgs(t, vol, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != 0 {
		t.Errorf("expected no vertices without weights, got %d", verts.Len())
	}
}

func TestExtractConfigErrors(t *testing.T) {
	vol := newTSDFVolume(t, 4, core.ChunkPoint3d{0, 0, 0}, core.ChunkPoint3d{1, 0, 0})
	other := newTSDFVolume(t, 4, core.ChunkPoint3d{0, 0, 0})

	bad := map[string]func(a *ExtractArgs){
		"no tsdf":           func(a *ExtractArgs) { a.TSDF = nil },
		"no neighbors":      func(a *ExtractArgs) { a.Neighbors = nil },
		"no surface":        func(a *ExtractArgs) { a.Surface = nil },
		"zero voxel size":   func(a *ExtractArgs) { a.VoxelSize = 0 },
		"negative capacity": func(a *ExtractArgs) { a.Capacity = -1 },
		"short validity":    func(a *ExtractArgs) { a.Validity = a.Validity[:1] },
		"misaligned surface": func(a *ExtractArgs) {
			s, _ := other.Aligned(volume.SurfaceLayout())
			a.Surface = s
		},
		"foreign neighbors": func(a *ExtractArgs) { a.Neighbors, _ = volume.NewNeighborView(other) },
		"surface lacks channels": func(a *ExtractArgs) {
			s, _ := vol.Aligned(volume.TSDFLayout())
			a.Surface = s
		},
	}
	for name, modify := range bad {
		args := extractArgs(t, vol, 1, 10)
		modify(&args)
		_, err := ExtractSurfaceVertices(SerialLauncher{}, args)
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected *ConfigError, got %v", name, err)
		}
	}
}

func TestDispatch(t *testing.T) {
	vol := newTSDFVolume(t, 8, core.ChunkPoint3d{0, 0, 0})
	iargs := IntegrateArgs{
		Volume:     vol,
		Depth:      constantDepth(8, 8, 4.5),
		Intrinsics: unitIntrinsics(8, 8),
		Extrinsics: camera.IdentityExtrinsics(),
		VoxelSize:  1,
		SDFTrunc:   2,
	}
	verts, err := Dispatch(SerialLauncher{}, OpIntegrate, &iargs)
	if err != nil || verts != nil {
		t.Fatalf("integrate dispatch returned %v, %v", verts, err)
	}
	verts, err = Dispatch(SerialLauncher{}, OpExtractSurface, extractArgs(t, vol, 1, 100))
	if err != nil {
		t.Fatal(err)
	}
	if verts.Len() != 64 {
		t.Errorf("expected 64 vertices, got %d", verts.Len())
	}

	_, err = Dispatch(SerialLauncher{}, OpCode(99), nil)
	var uerr *UnsupportedOpError
	if !errors.As(err, &uerr) || uerr.Op != OpCode(99) {
		t.Errorf("expected *UnsupportedOpError, got %v", err)
	}
	_, err = Dispatch(SerialLauncher{}, OpExtractSurface, iargs)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("expected *ConfigError for mismatched args, got %v", err)
	}

	if op, err := ParseOpCode("Integrate"); err != nil || op != OpIntegrate {
		t.Errorf("ParseOpCode(Integrate) = %s, %v", op, err)
	}
	if _, err := ParseOpCode("marching_cubes"); err == nil {
		t.Errorf("expected error parsing unknown op")
	}
}

// One block of resolution 8 seen by a camera at the origin looking at a plane
// at z = 4.5 voxels: every (x, y) column crosses the surface once along +z.
func TestEndToEndSingleBlock(t *testing.T) {
	for name, l := range launchers {
		vol := newTSDFVolume(t, 8, core.ChunkPoint3d{0, 0, 0})
		err := Integrate(l, vol, constantDepth(8, 8, 4.5), unitIntrinsics(8, 8), camera.IdentityExtrinsics(), 1, 2)
		if err != nil {
			t.Fatal(err)
		}
		args := extractArgs(t, vol, 1, 1000)
		verts, err := ExtractSurfaceVertices(l, args)
		if err != nil {
			t.Fatal(err)
		}
		if verts.Len() != 64 {
			t.Fatalf("%s: expected 64 vertices, got %d", name, verts.Len())
		}
		for i := 0; i < verts.Len(); i++ {
			if verts.Z[i] != 4.5 {
				t.Fatalf("%s: vertex %d at z=%g, expected 4.5", name, i, verts.Z[i])
			}
		}
		checkSurfaceIndices(t, args, verts)

		weight, _ := vol.Float32Channel(volume.WeightChannel)
		for i := range weight {
			weight[i] = 0
		}
		verts, err = ExtractSurfaceVertices(l, extractArgs(t, vol, 1, 1000))
		if err != nil {
			t.Fatal(err)
		}
		if verts.Len() != 0 {
			t.Errorf("%s: expected no vertices with zero weights, got %d", name, verts.Len())
		}
	}
}
