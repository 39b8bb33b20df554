package kernel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
	"gonum.org/v1/gonum/spatial/r3"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := unitTriangle()
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

// unitTriangle returns a single triangle in the z=0 plane facing +z.
func unitTriangle() *Mesh {
	m := &Mesh{}
	up := r3.Vec{Z: 1}
	a := m.AddVertex(r3.Vec{}, up)
	b := m.AddVertex(r3.Vec{X: 1}, up)
	c := m.AddVertex(r3.Vec{Y: 1}, up)
	m.Indices = append(m.Indices, a, b, c)
	return m
}

func TestMeshAppendAndBounds(t *testing.T) {
	m := unitTriangle()
	o := unitTriangle()
	for i := range o.Vertices {
		if i%3 == 2 {
			o.Vertices[i] = 5
		}
	}
	m.Append(o)
	m.Append(nil)

	if m.VertexCount() != 6 || m.TriangleCount() != 2 {
		t.Fatalf("after Append: %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
	if got := m.Triangle(1); got != [3]uint32{3, 4, 5} {
		t.Errorf("appended triangle = %v, want offset indices", got)
	}
	min, max := m.Bounds()
	if min != (r3.Vec{}) || max != (r3.Vec{X: 1, Y: 1, Z: 5}) {
		t.Errorf("Bounds() = %v, %v", min, max)
	}
}

// --- Request validation ---

func validRequest() Request {
	return Request{
		Volume:    volume.NewDense(volume.NewInterval([3]int64{0, 0, 0}, [3]int64{9, 9, 9}), 0),
		Predicate: predicate.Equal(1),
		Block:     NewBlock(volume.NewInterval([3]int64{0, 0, 0}, [3]int64{9, 9, 9}), [3]int64{1, 1, 1}),
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *Request)
		want   error
	}{
		{"valid", func(r *Request) {}, nil},
		{"zero stride", func(r *Request) { r.Block.Stride = [3]int64{1, 0, 1} }, ErrInvalidStride},
		{"negative stride", func(r *Request) { r.Block.Stride = [3]int64{-2, 1, 1} }, ErrInvalidStride},
		{"empty interval", func(r *Request) {
			r.Block.Interval = volume.NewInterval([3]int64{5, 0, 0}, [3]int64{4, 9, 9})
		}, ErrEmptyInterval},
		{"negative padding", func(r *Request) { r.Block.Padding = -1 }, ErrInvalidPadding},
		{"zero padding", func(r *Request) { r.Block.Padding = 0 }, nil},
		{"singular transform", func(r *Request) { r.Block.Transform = affine.Scale(1, 1, 0) }, ErrInvalidTransform},
		{"zero transform", func(r *Request) { r.Block.Transform = affine.Transform{} }, ErrInvalidTransform},
		{"nan transform", func(r *Request) { r.Block.Transform = affine.Translation(math.NaN(), 0, 0) }, affine.ErrNotFinite},
		{"missing volume", func(r *Request) { r.Volume = nil }, ErrMissingInput},
		{"missing predicate", func(r *Request) { r.Predicate = nil }, ErrMissingInput},
		{"negative iterations", func(r *Request) { r.Options.SmoothingIterations = -1 }, ErrInvalidSmoothing},
		{"lambda zero", func(r *Request) {
			r.Options.SmoothingIterations = 2
			r.Options.SmoothingLambda = 0
		}, ErrInvalidSmoothing},
		{"lambda above one", func(r *Request) {
			r.Options.SmoothingIterations = 2
			r.Options.SmoothingLambda = 1.5
		}, ErrInvalidSmoothing},
		{"lambda ignored without iterations", func(r *Request) { r.Options.SmoothingLambda = 7 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.modify(&r)
			err := r.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSampledInterval(t *testing.T) {
	b := NewBlock(volume.NewInterval([3]int64{0, 0, 0}, [3]int64{9, 9, 9}), [3]int64{2, 1, 3})
	want := volume.NewInterval([3]int64{-2, -1, -3}, [3]int64{11, 10, 12})
	if got := b.SampledInterval(); got != want {
		t.Errorf("SampledInterval() = %v, want %v", got, want)
	}
}

func TestPredicateError(t *testing.T) {
	cause := fmt.Errorf("lookup failed")
	var err error = &PredicateError{Value: 7, X: 1, Y: 2, Z: 3, Err: cause}
	wrapped := fmt.Errorf("block: %w", err)

	if !errors.Is(wrapped, ErrPredicate) {
		t.Error("errors.Is(err, ErrPredicate) = false")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	var pe *PredicateError
	if !errors.As(wrapped, &pe) || pe.Value != 7 {
		t.Fatalf("errors.As failed: %v", pe)
	}
	if !strings.Contains(err.Error(), "(1,2,3)") {
		t.Errorf("message %q lacks position", err.Error())
	}
}

func TestGridKey(t *testing.T) {
	a := KeyOf(r3.Vec{X: 0.5, Y: -1.5, Z: 3})
	b := KeyOf(r3.Vec{X: 1.0 / 2, Y: -3.0 / 2, Z: 6.0 / 2})
	if a != b {
		t.Fatalf("keys differ: %v vs %v", a, b)
	}
	if a != (GridKey{1, -3, 6}) {
		t.Errorf("KeyOf = %v", a)
	}
	if got := a.Vec(); got != (r3.Vec{X: 0.5, Y: -1.5, Z: 3}) {
		t.Errorf("Vec() = %v", got)
	}
	if KeyOf(r3.Vec{X: 0.5}) == KeyOf(r3.Vec{X: 1}) {
		t.Error("distinct half-grid points share a key")
	}
}

// --- Mesher interface check with a stub ---

func TestMesherFunc(t *testing.T) {
	var m Mesher = MesherFunc(func(ctx context.Context, req Request) (*Mesh, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return &Mesh{Name: "stub"}, nil
	})
	got, err := m.Mesh(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Mesh() error = %v", err)
	}
	if got == nil || !got.IsEmpty() || got.Name != "stub" {
		t.Errorf("Mesh() = %+v", got)
	}
	if _, err := m.Mesh(context.Background(), Request{}); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Mesh(empty) error = %v", err)
	}
}
