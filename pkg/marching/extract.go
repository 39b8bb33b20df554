// Package marching extracts isosurfaces from labeled volumes with the
// classic marching-cubes case tables. Edge points are always cube-edge
// midpoints, so the surface follows the voxel lattice exactly and
// coincident points from neighbouring cubes compare equal.
package marching

import (
	"context"
	"fmt"

	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/weld"
)

// Extract samples, triangulates and accumulates one block and maps the
// result to world space. On cancellation or predicate failure it returns
// the error and no partial geometry.
func Extract(ctx context.Context, req kernel.Request) (*Soup, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	l := LatticeOf(req.Block)
	acc := NewAccumulator()
	buf := make([]Triangle, 0, maxTriangles)
	err := Sample(ctx, req.Volume, req.Predicate, l, func(c Cube) {
		buf = Triangulate(c.Config, c.Index, l, buf[:0])
		for _, t := range buf {
			acc.Add(t)
		}
	})
	if err != nil {
		return nil, err
	}
	return acc.MapToWorld(req.Block.Transform), nil
}

// Kernel is the native kernel.Mesher.
type Kernel struct{}

// Compile-time interface check.
var _ kernel.Mesher = (*Kernel)(nil)

// New returns a marching-cubes mesher.
func New() *Kernel {
	return &Kernel{}
}

// Mesh runs the full block pipeline. Without welding the result is a
// triangle soup carrying the accumulated normals. With welding, coincident
// vertices are merged, the graph is smoothed if requested, normals are
// recomputed over the welded graph, and padding triangles are dropped when
// FilterOverhang is set.
func (k *Kernel) Mesh(ctx context.Context, req kernel.Request) (*kernel.Mesh, error) {
	soup, err := Extract(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.Options.Weld {
		return soup.Mesh(), nil
	}

	g, err := weld.Build(soup.Grid, soup.World, weld.BoundsOf(req.Block))
	if err != nil {
		return nil, fmt.Errorf("marching: weld: %w", err)
	}
	if err := g.Smooth(req.Options.SmoothingLambda, req.Options.SmoothingIterations); err != nil {
		return nil, fmt.Errorf("marching: smooth: %w", err)
	}
	g.AverageNormals()
	return g.Export(req.Options.FilterOverhang), nil
}
