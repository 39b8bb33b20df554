// Package sdfx implements kernel.Mesher on top of the
// github.com/deadsy/sdfx marching-cubes renderer. The block is exposed to
// sdfx as a signed field that is -1 on foreground voxels and +1 elsewhere,
// so surfaces land halfway between voxel centers like the native mesher's,
// but with sdfx's own cell grid and interpolation. It is meant for
// cross-checking surface placement; weld and smoothing options are ignored.
package sdfx

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Mesher = (*Mesher)(nil)

// maxMeshCells bounds the renderer resolution along the longest axis.
const maxMeshCells = 512

// VolumeSDF is a labeled block seen as an sdf.SDF3 in voxel coordinates.
// Evaluate reads the nearest voxel. The first predicate failure is kept and
// later evaluations return background.
type VolumeSDF struct {
	ctx  context.Context
	acc  volume.Accessor
	pred predicate.Predicate
	box  sdf.Box3

	mu  sync.Mutex
	err error
}

// NewVolumeSDF returns the field over the block's sampled interval.
func NewVolumeSDF(ctx context.Context, req kernel.Request) *VolumeSDF {
	iv := req.Block.SampledInterval()
	return &VolumeSDF{
		ctx:  ctx,
		acc:  req.Volume,
		pred: req.Predicate,
		box: sdf.Box3{
			Min: v3.Vec{X: float64(iv.Min[0]), Y: float64(iv.Min[1]), Z: float64(iv.Min[2])},
			Max: v3.Vec{X: float64(iv.Max[0]), Y: float64(iv.Max[1]), Z: float64(iv.Max[2])},
		},
	}
}

// Evaluate returns -1 inside the foreground and +1 outside it.
func (s *VolumeSDF) Evaluate(p v3.Vec) float64 {
	if s.Err() != nil {
		return 1
	}
	x, y, z := int64(math.Round(p.X)), int64(math.Round(p.Y)), int64(math.Round(p.Z))
	label := s.acc.At(x, y, z)
	fg, err := s.pred.Test(label)
	if err != nil {
		s.fail(&kernel.PredicateError{Value: label, X: x, Y: y, Z: z, Err: err})
		return 1
	}
	if fg {
		return -1
	}
	return 1
}

// BoundingBox returns the sampled interval in voxel coordinates.
func (s *VolumeSDF) BoundingBox() sdf.Box3 {
	return s.box
}

// Err returns the first failure seen during evaluation: a predicate error
// or the context's error.
func (s *VolumeSDF) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && s.ctx != nil {
		s.err = s.ctx.Err()
	}
	return s.err
}

func (s *VolumeSDF) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Mesher implements kernel.Mesher using sdfx.
type Mesher struct {
	maxCells int
}

// New returns a new sdfx mesher.
func New() *Mesher {
	return &Mesher{maxCells: maxMeshCells}
}

// cells returns the renderer resolution: one cell per stride along the
// longest axis of the sampled interval.
func (k *Mesher) cells(b kernel.Block) int {
	dims := b.SampledInterval().Dims()
	best := 1
	for d := 0; d < 3; d++ {
		if n := int(dims[d] / b.Stride[d]); n > best {
			best = n
		}
	}
	return min(best, k.maxCells)
}

// Mesh converts the block to a triangle soup using marching cubes and maps
// it to world space with face normals.
func (k *Mesher) Mesh(ctx context.Context, req kernel.Request) (*kernel.Mesh, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	field := NewVolumeSDF(ctx, req)
	renderer := render.NewMarchingCubesUniform(k.cells(req.Block))
	triangles := render.ToTriangles(field, renderer)
	if err := field.Err(); err != nil {
		return nil, fmt.Errorf("sdfx: %w", err)
	}

	t := req.Block.Transform
	lin := t.Linear()
	mirror := t.Determinant() < 0
	order := [3]int{0, 1, 2}
	if mirror {
		order = [3]int{0, 2, 1}
	}

	m := &kernel.Mesh{
		Vertices: make([]float32, 0, len(triangles)*9),
		Normals:  make([]float32, 0, len(triangles)*9),
		Indices:  make([]uint32, 0, len(triangles)*3),
	}
	for _, tri := range triangles {
		fn := tri.Normal()
		n := lin.Apply(r3.Vec{X: fn.X, Y: fn.Y, Z: fn.Z})
		if l := r3.Norm(n); l == 0 || math.IsNaN(l) {
			continue // degenerate
		}
		n = r3.Unit(n)
		for _, j := range order {
			v := tri[j]
			p := t.Apply(r3.Vec{X: v.X, Y: v.Y, Z: v.Z})
			m.Indices = append(m.Indices, m.AddVertex(p, n))
		}
	}
	return m, nil
}
