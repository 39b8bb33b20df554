package kernel

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// resultHasError returns true if result.Errors contains at least one entry
// whose Message contains substr.
func resultHasError(r ValidationResult, substr string) bool {
	for _, e := range r.Errors {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func resultHasWarning(r ValidationResult, substr string) bool {
	for _, w := range r.Warnings {
		if strings.Contains(w.Message, substr) {
			return true
		}
	}
	return false
}

// tetrahedron returns a closed, consistently wound tetrahedron.
func tetrahedron() *Mesh {
	m := &Mesh{}
	n := r3.Vec{Z: 1}
	m.AddVertex(r3.Vec{}, n)
	m.AddVertex(r3.Vec{X: 1}, n)
	m.AddVertex(r3.Vec{Y: 1}, n)
	m.AddVertex(r3.Vec{Z: 1}, n)
	m.Indices = []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
	return m
}

func TestValidateClosedMesh(t *testing.T) {
	r := Validate(tetrahedron())
	if !r.OK() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func TestValidateOpenMesh(t *testing.T) {
	r := Validate(unitTriangle())
	if !r.OK() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if !resultHasWarning(r, "3 open edges") {
		t.Errorf("expected open edge warning, got %v", r.Warnings)
	}
}

func TestValidateNonManifold(t *testing.T) {
	m := tetrahedron()
	m.AddVertex(r3.Vec{X: 2, Y: 2}, r3.Vec{Z: 1})
	m.Indices = append(m.Indices, 0, 1, 4)
	r := Validate(m)
	if !resultHasWarning(r, "non-manifold") {
		t.Errorf("expected non-manifold warning, got %v", r.Warnings)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(m *Mesh)
		substr string
	}{
		{"index out of range", func(m *Mesh) { m.Indices[2] = 9 }, "out of range"},
		{"degenerate", func(m *Mesh) { m.Indices[2] = m.Indices[0] }, "degenerate"},
		{"normals short", func(m *Mesh) { m.Normals = m.Normals[:3] }, "normal buffer length"},
		{"ragged indices", func(m *Mesh) { m.Indices = m.Indices[:2] }, "index buffer length"},
		{"nan coordinate", func(m *Mesh) { m.Vertices[4] = float32(math.NaN()) }, "non-finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := unitTriangle()
			tt.modify(m)
			r := Validate(m)
			if r.OK() {
				t.Fatal("expected validation errors")
			}
			if !resultHasError(r, tt.substr) {
				t.Errorf("errors %v lack %q", r.Errors, tt.substr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if Validate(nil).OK() {
		t.Error("nil mesh should not validate")
	}
}
