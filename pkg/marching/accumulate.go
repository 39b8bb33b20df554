package marching

import (
	"github.com/chazu/labelmesh/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// normalSum is the running face-normal sum at one position.
type normalSum struct {
	sum    r3.Vec
	weight float64
}

// Accumulator collects the triangles of one block as a flat position buffer,
// three entries per triangle with no deduplication, together with the summed
// face normals of every distinct position. It is single-use and not safe for
// concurrent use.
type Accumulator struct {
	positions []r3.Vec
	normals   map[kernel.GridKey]normalSum
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{normals: make(map[kernel.GridKey]normalSum)}
}

// Add appends a triangle and adds its face normal to each of its corners.
func (a *Accumulator) Add(t Triangle) {
	n := t.FaceNormal()
	for _, p := range t {
		a.positions = append(a.positions, p)
		k := kernel.KeyOf(p)
		s := a.normals[k]
		s.sum = r3.Add(s.sum, n)
		s.weight++
		a.normals[k] = s
	}
}

// TriangleCount returns the number of triangles added.
func (a *Accumulator) TriangleCount() int {
	return len(a.positions) / 3
}

// Positions returns the flat pre-transform position buffer.
func (a *Accumulator) Positions() []r3.Vec {
	return a.positions
}

// Distinct returns the number of distinct positions seen.
func (a *Accumulator) Distinct() int {
	return len(a.normals)
}

// MeanNormal returns the summed normal at p divided by its weight, or the
// zero vector for an unknown position.
func (a *Accumulator) MeanNormal(p r3.Vec) r3.Vec {
	s, ok := a.normals[kernel.KeyOf(p)]
	if !ok || s.weight == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/s.weight, s.sum)
}
