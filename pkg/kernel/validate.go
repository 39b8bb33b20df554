package kernel

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding makes a mesh unusable or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // mesh cannot be rendered
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Triangle int                // offending triangle, -1 if mesh-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Triangle < 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] triangle %d: %s", e.Severity, e.Triangle, e.Message)
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether no errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks buffer consistency and triangle validity. Open edges are
// expected on block meshes and on filtered exports, so they are warnings.
// This function is read-only and never mutates the mesh.
func Validate(m *Mesh) ValidationResult {
	var result ValidationResult
	if m == nil {
		result.Errors = append(result.Errors, ValidationError{Triangle: -1, Message: "mesh is nil", Severity: SeverityError})
		return result
	}

	result.Errors = append(result.Errors, validateBuffers(m)...)
	if len(result.Errors) > 0 {
		return result
	}
	result.Errors = append(result.Errors, validateTriangles(m)...)
	result.Warnings = append(result.Warnings, validateEdges(m)...)
	return result
}

// validateBuffers checks buffer lengths and coordinate finiteness.
func validateBuffers(m *Mesh) []ValidationError {
	var errs []ValidationError

	if len(m.Vertices)%3 != 0 {
		errs = append(errs, ValidationError{
			Triangle: -1,
			Message:  fmt.Sprintf("vertex buffer length %d is not a multiple of 3", len(m.Vertices)),
			Severity: SeverityError,
		})
	}
	if len(m.Normals) != len(m.Vertices) {
		errs = append(errs, ValidationError{
			Triangle: -1,
			Message:  fmt.Sprintf("normal buffer length %d != vertex buffer length %d", len(m.Normals), len(m.Vertices)),
			Severity: SeverityError,
		})
	}
	if len(m.Indices)%3 != 0 {
		errs = append(errs, ValidationError{
			Triangle: -1,
			Message:  fmt.Sprintf("index buffer length %d is not a multiple of 3", len(m.Indices)),
			Severity: SeverityError,
		})
	}
	for i, v := range m.Vertices {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, ValidationError{
				Triangle: -1,
				Message:  fmt.Sprintf("vertex %d has non-finite coordinate %v", i/3, v),
				Severity: SeverityError,
			})
			break
		}
	}
	return errs
}

// validateTriangles checks index ranges and degeneracy.
func validateTriangles(m *Mesh) []ValidationError {
	var errs []ValidationError

	n := uint32(m.VertexCount())
	for t := 0; t < m.TriangleCount(); t++ {
		tri := m.Triangle(t)
		if tri[0] >= n || tri[1] >= n || tri[2] >= n {
			errs = append(errs, ValidationError{
				Triangle: t,
				Message:  fmt.Sprintf("index out of range %v (vertices: %d)", tri, n),
				Severity: SeverityError,
			})
			continue
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			errs = append(errs, ValidationError{
				Triangle: t,
				Message:  fmt.Sprintf("degenerate triangle %v repeats a vertex", tri),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// edgeKey is an undirected edge with lo < hi.
type edgeKey struct {
	lo, hi uint32
}

func makeEdgeKey(a, b uint32) edgeKey {
	if a < b {
		return edgeKey{lo: a, hi: b}
	}
	return edgeKey{lo: b, hi: a}
}

// validateEdges reports open and non-manifold edges.
func validateEdges(m *Mesh) []ValidationError {
	var warnings []ValidationError

	counts := make(map[edgeKey]int)
	for t := 0; t < m.TriangleCount(); t++ {
		tri := m.Triangle(t)
		for j := 0; j < 3; j++ {
			counts[makeEdgeKey(tri[j], tri[(j+1)%3])]++
		}
	}

	var open, nonManifold int
	for _, c := range counts {
		switch {
		case c == 1:
			open++
		case c > 2:
			nonManifold++
		}
	}
	if open > 0 {
		warnings = append(warnings, ValidationError{
			Triangle: -1,
			Message:  fmt.Sprintf("%d open edges", open),
			Severity: SeverityWarning,
		})
	}
	if nonManifold > 0 {
		warnings = append(warnings, ValidationError{
			Triangle: -1,
			Message:  fmt.Sprintf("%d non-manifold edges", nonManifold),
			Severity: SeverityWarning,
		})
	}
	return warnings
}
