package marching

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
	"gonum.org/v1/gonum/spatial/r3"
)

func cubeInterval(lo, hi int64) volume.Interval {
	return volume.NewInterval([3]int64{lo, lo, lo}, [3]int64{hi, hi, hi})
}

// singleVoxel returns a request for block [0,8]^3 holding one foreground
// voxel at (4,4,4).
func singleVoxel() kernel.Request {
	d := volume.NewDense(cubeInterval(0, 8), 0)
	d.Set(4, 4, 4, 1)
	return kernel.Request{
		Volume:    d,
		Predicate: predicate.Equal(1),
		Block:     kernel.NewBlock(cubeInterval(0, 8), [3]int64{1, 1, 1}),
	}
}

func centroid(a, b, c r3.Vec) r3.Vec {
	return r3.Scale(1.0/3, r3.Add(a, r3.Add(b, c)))
}

func TestLatticeOf(t *testing.T) {
	tests := []struct {
		name   string
		block  kernel.Block
		origin [3]int64
		points [3]int64
		cubes  int64
	}{
		{
			name:   "unit stride padded",
			block:  kernel.NewBlock(cubeInterval(0, 9), [3]int64{1, 1, 1}),
			origin: [3]int64{-1, -1, -1},
			points: [3]int64{12, 12, 12},
			cubes:  11 * 11 * 11,
		},
		{
			name:   "anisotropic stride",
			block:  kernel.NewBlock(cubeInterval(0, 9), [3]int64{2, 3, 1}),
			origin: [3]int64{-2, -3, -1},
			points: [3]int64{7, 6, 12},
			cubes:  6 * 5 * 11,
		},
		{
			name:   "unpadded",
			block:  kernel.Block{Interval: cubeInterval(0, 3), Stride: [3]int64{1, 1, 1}, Transform: affine.Identity()},
			origin: [3]int64{0, 0, 0},
			points: [3]int64{4, 4, 4},
			cubes:  27,
		},
		{
			name:   "smaller than stride",
			block:  kernel.NewBlock(cubeInterval(0, 2), [3]int64{4, 4, 4}),
			origin: [3]int64{-4, 0, 0},
			cubes:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := LatticeOf(tt.block)
			if l.CubeCount() != tt.cubes {
				t.Fatalf("CubeCount() = %d, want %d", l.CubeCount(), tt.cubes)
			}
			if tt.cubes == 0 {
				return
			}
			if l.Origin != tt.origin || l.Points != tt.points {
				t.Errorf("lattice = %+v, want origin %v points %v", l, tt.origin, tt.points)
			}
		})
	}
}

func TestSampleScanOrder(t *testing.T) {
	blk := kernel.Block{Interval: volume.NewInterval([3]int64{0, 0, 0}, [3]int64{2, 2, 2}), Stride: [3]int64{1, 1, 1}, Transform: affine.Identity()}
	l := LatticeOf(blk)
	var got [][3]int64
	err := Sample(context.Background(), volume.AccessorFunc(func(x, y, z int64) uint64 { return 0 }), predicate.Always(false), l, func(c Cube) {
		got = append(got, c.Index)
	})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("visited %d cubes, want 8", len(got))
	}
	want := [][3]int64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}, {0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cube %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSampleClassifiesEachPointOnce(t *testing.T) {
	blk := kernel.NewBlock(cubeInterval(0, 5), [3]int64{1, 1, 1})
	l := LatticeOf(blk)
	reads := make(map[[3]int64]int)
	acc := volume.AccessorFunc(func(x, y, z int64) uint64 {
		reads[[3]int64{x, y, z}]++
		return uint64(x + y + z) // never repeats along a row
	})
	if err := Sample(context.Background(), acc, predicate.Always(true), l, func(Cube) {}); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if int64(len(reads)) != l.Points[0]*l.Points[1]*l.Points[2] {
		t.Errorf("read %d distinct voxels, want %d", len(reads), l.Points[0]*l.Points[1]*l.Points[2])
	}
	for v, n := range reads {
		if n != 1 {
			t.Fatalf("voxel %v read %d times", v, n)
		}
	}
}

func TestSingleVoxel(t *testing.T) {
	soup, err := Extract(context.Background(), singleVoxel())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if soup.TriangleCount() != 8 {
		t.Fatalf("got %d triangles, want 8 (one per touching cube)", soup.TriangleCount())
	}
	center := r3.Vec{X: 4, Y: 4, Z: 4}
	for i := 0; i < len(soup.World); i += 3 {
		tri := Triangle{soup.World[i], soup.World[i+1], soup.World[i+2]}
		out := r3.Sub(centroid(tri[0], tri[1], tri[2]), center)
		if r3.Dot(tri.FaceNormal(), out) <= 0 {
			t.Errorf("triangle %d faces the voxel", i/3)
		}
		for j := 0; j < 3; j++ {
			if d := r3.Norm(r3.Sub(tri[j], center)); math.Abs(d-0.5) > 1e-12 {
				t.Errorf("vertex %v is %g from the voxel, want 0.5", tri[j], d)
			}
			n := soup.Normals[i+j]
			if math.Abs(r3.Norm(n)-1) > 1e-12 {
				t.Errorf("normal %v is not unit length", n)
			}
			if r3.Dot(n, r3.Sub(tri[j], center)) <= 0 {
				t.Errorf("vertex normal %v at %v points inward", n, tri[j])
			}
		}
	}
}

func TestSingleVoxelWelded(t *testing.T) {
	req := singleVoxel()
	req.Options = kernel.Options{Weld: true, FilterOverhang: true}
	m, err := New().Mesh(context.Background(), req)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	if m.VertexCount() != 6 || m.TriangleCount() != 8 {
		t.Fatalf("welded octahedron has %d vertices, %d triangles; want 6, 8", m.VertexCount(), m.TriangleCount())
	}
	r := kernel.Validate(m)
	if !r.OK() || len(r.Warnings) != 0 {
		t.Errorf("validation: errors %v, warnings %v", r.Errors, r.Warnings)
	}
	center := r3.Vec{X: 4, Y: 4, Z: 4}
	for v := uint32(0); v < uint32(m.VertexCount()); v++ {
		dir := r3.Unit(r3.Sub(m.Vertex(v), center))
		if got := r3.Dot(m.Normal(v), dir); got < 1-1e-6 {
			t.Errorf("vertex %d normal %v, want %v", v, m.Normal(v), dir)
		}
	}
}

func TestEmptyAndFullBlocks(t *testing.T) {
	for name, p := range map[string]predicate.Predicate{
		"all background": predicate.Always(false),
		"all foreground": predicate.Always(true),
	} {
		t.Run(name, func(t *testing.T) {
			req := kernel.Request{
				Volume:    volume.NewDense(cubeInterval(0, 7), 3),
				Predicate: p,
				Block:     kernel.NewBlock(cubeInterval(0, 7), [3]int64{1, 1, 1}),
			}
			m, err := New().Mesh(context.Background(), req)
			if err != nil {
				t.Fatalf("Mesh: %v", err)
			}
			if m == nil || m.TriangleCount() != 0 {
				t.Fatalf("got %v, want an empty mesh", m)
			}
		})
	}
}

func TestIntervalSmallerThanStride(t *testing.T) {
	req := singleVoxel()
	req.Block = kernel.NewBlock(volume.NewInterval([3]int64{4, 4, 4}, [3]int64{5, 5, 5}), [3]int64{4, 4, 4})
	soup, err := Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if soup.TriangleCount() != 0 {
		t.Errorf("got %d triangles, want 0", soup.TriangleCount())
	}
}

func TestStrideScalesEdgePoints(t *testing.T) {
	d := volume.NewDense(cubeInterval(0, 15), 0)
	d.Fill(cubeInterval(4, 11), 1)
	req := kernel.Request{
		Volume:    d,
		Predicate: predicate.Equal(1),
		Block:     kernel.NewBlock(cubeInterval(0, 15), [3]int64{2, 2, 2}),
	}
	soup, err := Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if soup.TriangleCount() == 0 {
		t.Fatal("expected a surface")
	}
	for _, p := range soup.Grid {
		for _, c := range []float64{p.X, p.Y, p.Z} {
			// Lattice points are even; midpoints are odd.
			if c != math.Trunc(c) {
				t.Fatalf("edge point %v is off the stride-2 lattice", p)
			}
		}
	}
}

func TestTransform(t *testing.T) {
	req := singleVoxel()
	req.Block.Transform = affine.New([3][4]float64{
		{4, 0, 0, 100},
		{0, 4, 0, -50},
		{0, 0, 40, 7},
	})
	soup, err := Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	center := req.Block.Transform.Apply(r3.Vec{X: 4, Y: 4, Z: 4})
	for i := range soup.World {
		if got, want := soup.World[i], req.Block.Transform.Apply(soup.Grid[i]); got != want {
			t.Fatalf("world[%d] = %v, want %v", i, got, want)
		}
		n := soup.Normals[i]
		if math.Abs(r3.Norm(n)-1) > 1e-12 {
			t.Errorf("normal %v not unit", n)
		}
		if r3.Dot(n, r3.Sub(soup.World[i], center)) <= 0 {
			t.Errorf("normal %v at %v points inward", n, soup.World[i])
		}
	}
}

func TestNanometreTransform(t *testing.T) {
	req := singleVoxel()
	req.Block.Transform = affine.Scale(4e-9, 4e-9, 40e-9)
	soup, err := Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := soup.TriangleCount(); got != 8 {
		t.Fatalf("got %d triangles, want 8", got)
	}
	for i, n := range soup.Normals {
		if math.Abs(r3.Norm(n)-1) > 1e-9 {
			t.Fatalf("normal %d = %v not unit", i, n)
		}
	}
}

func TestMirrorTransformKeepsOutwardWinding(t *testing.T) {
	req := singleVoxel()
	req.Block.Transform = affine.Scale(-1, 1, 1)
	req.Options.Weld = true
	m, err := New().Mesh(context.Background(), req)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	center := r3.Vec{X: -4, Y: 4, Z: 4}
	for tr := 0; tr < m.TriangleCount(); tr++ {
		idx := m.Triangle(tr)
		tri := Triangle{m.Vertex(idx[0]), m.Vertex(idx[1]), m.Vertex(idx[2])}
		if r3.Dot(tri.FaceNormal(), r3.Sub(centroid(tri[0], tri[1], tri[2]), center)) <= 0 {
			t.Errorf("triangle %d faces inward after mirroring", tr)
		}
	}
}

func TestNormalAccumulationOrderIndependent(t *testing.T) {
	soup, err := Extract(context.Background(), sphereRequest())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	forward, backward := NewAccumulator(), NewAccumulator()
	n := soup.TriangleCount()
	for i := 0; i < n; i++ {
		forward.Add(Triangle{soup.Grid[3*i], soup.Grid[3*i+1], soup.Grid[3*i+2]})
		j := n - 1 - i
		backward.Add(Triangle{soup.Grid[3*j], soup.Grid[3*j+1], soup.Grid[3*j+2]})
	}
	if forward.Distinct() != backward.Distinct() {
		t.Fatalf("distinct positions differ: %d vs %d", forward.Distinct(), backward.Distinct())
	}
	for _, p := range soup.Grid {
		if d := r3.Norm(r3.Sub(forward.MeanNormal(p), backward.MeanNormal(p))); d > 1e-12 {
			t.Fatalf("normal at %v depends on order (diff %g)", p, d)
		}
	}
}

func sphereRequest() kernel.Request {
	bounds := cubeInterval(0, 19)
	return kernel.Request{
		Volume:    volume.Phantom(bounds, volume.Sphere{Center: [3]float64{9.5, 9.5, 9.5}, Radius: 6, Label: 5}),
		Predicate: predicate.Equal(5),
		Block:     kernel.NewBlock(bounds, [3]int64{1, 1, 1}),
	}
}

func TestSphereWeldedClosed(t *testing.T) {
	req := sphereRequest()
	req.Options = kernel.Options{Weld: true, SmoothingLambda: 0.5, SmoothingIterations: 3, FilterOverhang: true}
	m, err := New().Mesh(context.Background(), req)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("sphere mesh is empty")
	}
	r := kernel.Validate(m)
	if !r.OK() {
		t.Fatalf("validation errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("sphere inside the block should be closed: %v", r.Warnings)
	}

	unwelded, err := New().Mesh(context.Background(), sphereRequest())
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	if unwelded.TriangleCount() != m.TriangleCount() {
		t.Errorf("welding changed triangle count: %d vs %d", unwelded.TriangleCount(), m.TriangleCount())
	}
	if unwelded.VertexCount() != 3*unwelded.TriangleCount() {
		t.Errorf("unwelded mesh shares vertices")
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := New().Mesh(ctx, sphereRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if m != nil {
		t.Error("cancelled extraction published a mesh")
	}
}

func TestPredicateFailure(t *testing.T) {
	boom := errors.New("lookup failed")
	req := sphereRequest()
	req.Predicate = predicate.Func(func(label uint64) (bool, error) {
		if label == 5 {
			return false, boom
		}
		return false, nil
	})
	m, err := New().Mesh(context.Background(), req)
	if m != nil {
		t.Error("failed extraction published a mesh")
	}
	if !errors.Is(err, kernel.ErrPredicate) || !errors.Is(err, boom) {
		t.Fatalf("error = %v, want a predicate error wrapping the cause", err)
	}
	var pe *kernel.PredicateError
	if !errors.As(err, &pe) || pe.Value != 5 {
		t.Fatalf("errors.As = %+v", pe)
	}
	if !req.Volume.(*volume.Dense).Bounds().Contains(pe.X, pe.Y, pe.Z) {
		t.Errorf("failure position (%d,%d,%d) outside the volume", pe.X, pe.Y, pe.Z)
	}
}

func TestInvalidRequest(t *testing.T) {
	req := singleVoxel()
	req.Block.Stride = [3]int64{0, 1, 1}
	if _, err := New().Mesh(context.Background(), req); !errors.Is(err, kernel.ErrInvalidStride) {
		t.Fatalf("error = %v, want ErrInvalidStride", err)
	}
}
