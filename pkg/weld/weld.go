// Package weld merges the triangle soup of one block into an indexed mesh
// graph. Vertices are identified by their exact voxel-space position, so
// triangles from neighbouring cubes share indices along common edges. The
// graph supports normal averaging, Laplacian smoothing and export with the
// block's padding region filtered out.
package weld

import (
	"errors"
	"fmt"

	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/volume"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBufferMismatch is returned by Build for malformed input buffers.
var ErrBufferMismatch = errors.New("weld: malformed triangle buffers")

// Bounds is the region a block owns, used to flag overhanging vertices.
type Bounds struct {
	Interval volume.Interval
	Stride   [3]int64
}

// BoundsOf returns the bounds of a block.
func BoundsOf(b kernel.Block) Bounds {
	return Bounds{Interval: b.Interval, Stride: b.Stride}
}

// Overhanging reports whether voxel-space position p lies outside the
// interval grown by one stride on every axis, the grown boundary itself
// counting as outside. For interval [0,9] with stride 1, -1 and 10 overhang
// while 0 and 9 do not.
func (b Bounds) Overhanging(p r3.Vec) bool {
	c := [3]float64{p.X, p.Y, p.Z}
	for d := 0; d < 3; d++ {
		low := float64(b.Interval.Min[d] - b.Stride[d])
		high := float64(b.Interval.Max[d] + b.Stride[d])
		if c[d] <= low || c[d] >= high {
			return true
		}
	}
	return false
}

// Graph is a welded triangle mesh. Positions and normals are in world
// space; keys and overhang flags refer to the voxel-space positions the
// graph was built from. A Graph is owned by one goroutine.
type Graph struct {
	keys      []kernel.GridKey
	positions []r3.Vec
	normals   []r3.Vec
	overhang  []bool
	triangles [][3]uint32
	incident  [][]int
	ring      [][]uint32
}

// Build welds a flat triangle buffer. grid holds voxel-space positions, world
// the matching transformed positions, three entries per triangle. The first
// world position seen for a key is kept.
func Build(grid, world []r3.Vec, bounds Bounds) (*Graph, error) {
	if len(grid) != len(world) {
		return nil, fmt.Errorf("%w: %d grid positions, %d world positions", ErrBufferMismatch, len(grid), len(world))
	}
	if len(grid)%3 != 0 {
		return nil, fmt.Errorf("%w: %d positions is not a multiple of 3", ErrBufferMismatch, len(grid))
	}

	g := &Graph{triangles: make([][3]uint32, 0, len(grid)/3)}
	index := make(map[kernel.GridKey]uint32, len(grid)/2)
	for t := 0; t < len(grid); t += 3 {
		var tri [3]uint32
		for j := 0; j < 3; j++ {
			p := grid[t+j]
			k := kernel.KeyOf(p)
			v, ok := index[k]
			if !ok {
				v = uint32(len(g.keys))
				index[k] = v
				g.keys = append(g.keys, k)
				g.positions = append(g.positions, world[t+j])
				g.overhang = append(g.overhang, bounds.Overhanging(p))
				g.incident = append(g.incident, nil)
			}
			tri[j] = v
		}
		ti := len(g.triangles)
		g.triangles = append(g.triangles, tri)
		for _, v := range lo.Uniq(tri[:]) {
			g.incident[v] = append(g.incident[v], ti)
		}
	}
	g.normals = make([]r3.Vec, len(g.positions))
	g.buildRing()
	return g, nil
}

// buildRing computes the 1-ring of every vertex: the distinct vertices that
// share a triangle with it, in order of first appearance.
func (g *Graph) buildRing() {
	g.ring = make([][]uint32, len(g.positions))
	for v, tris := range g.incident {
		var neighbours []uint32
		for _, t := range tris {
			for _, u := range g.triangles[t] {
				if u != uint32(v) {
					neighbours = append(neighbours, u)
				}
			}
		}
		g.ring[v] = lo.Uniq(neighbours)
	}
}

// VertexCount returns the number of welded vertices.
func (g *Graph) VertexCount() int { return len(g.positions) }

// TriangleCount returns the number of triangles.
func (g *Graph) TriangleCount() int { return len(g.triangles) }

// Position returns the world position of vertex v.
func (g *Graph) Position(v uint32) r3.Vec { return g.positions[v] }

// Normal returns the normal of vertex v. It is zero until AverageNormals.
func (g *Graph) Normal(v uint32) r3.Vec { return g.normals[v] }

// Key returns the voxel-space key of vertex v.
func (g *Graph) Key(v uint32) kernel.GridKey { return g.keys[v] }

// Overhanging reports whether vertex v lies in the padding region.
func (g *Graph) Overhanging(v uint32) bool { return g.overhang[v] }

// Triangle returns the vertex indices of triangle t.
func (g *Graph) Triangle(t int) [3]uint32 { return g.triangles[t] }

// Incident returns the triangles using vertex v.
func (g *Graph) Incident(v uint32) []int { return g.incident[v] }

// Ring returns the 1-ring of vertex v.
func (g *Graph) Ring(v uint32) []uint32 { return g.ring[v] }

// faceNormal returns the unit world-space normal of triangle t.
func (g *Graph) faceNormal(t int) r3.Vec {
	tri := g.triangles[t]
	a, b, c := g.positions[tri[0]], g.positions[tri[1]], g.positions[tri[2]]
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// AverageNormals sets every vertex normal to the normalized sum of the face
// normals of its incident triangles.
func (g *Graph) AverageNormals() {
	faces := make([]r3.Vec, len(g.triangles))
	for t := range g.triangles {
		faces[t] = g.faceNormal(t)
	}
	for v, tris := range g.incident {
		var sum r3.Vec
		for _, t := range tris {
			sum = r3.Add(sum, faces[t])
		}
		if r3.Norm(sum) > 0 {
			sum = r3.Unit(sum)
		}
		g.normals[v] = sum
	}
}

// Smooth runs iterations of synchronous Laplacian smoothing: each vertex
// moves to (1-lambda)*p + lambda*mean(1-ring), every update reading the
// positions of the previous iteration. Vertices without neighbours stay put.
func (g *Graph) Smooth(lambda float64, iterations int) error {
	if iterations < 0 {
		return fmt.Errorf("%w: iterations %d", kernel.ErrInvalidSmoothing, iterations)
	}
	if iterations == 0 {
		return nil
	}
	if lambda <= 0 || lambda > 1 {
		return fmt.Errorf("%w: lambda %g not in (0,1]", kernel.ErrInvalidSmoothing, lambda)
	}

	next := make([]r3.Vec, len(g.positions))
	for it := 0; it < iterations; it++ {
		for v, ring := range g.ring {
			p := g.positions[v]
			if len(ring) == 0 {
				next[v] = p
				continue
			}
			var mean r3.Vec
			for _, u := range ring {
				mean = r3.Add(mean, g.positions[u])
			}
			mean = r3.Scale(1/float64(len(ring)), mean)
			next[v] = r3.Add(r3.Scale(1-lambda, p), r3.Scale(lambda, mean))
		}
		g.positions, next = next, g.positions
	}
	return nil
}

// Export returns the graph as an indexed mesh. With filter set, triangles
// touching an overhanging vertex are dropped. Vertices no triangle uses are
// removed; the rest keep their relative order.
func (g *Graph) Export(filter bool) *kernel.Mesh {
	keep := lo.Filter(lo.Range(len(g.triangles)), func(t int, _ int) bool {
		if !filter {
			return true
		}
		tri := g.triangles[t]
		return !g.overhang[tri[0]] && !g.overhang[tri[1]] && !g.overhang[tri[2]]
	})

	used := make([]bool, len(g.positions))
	for _, t := range keep {
		for _, v := range g.triangles[t] {
			used[v] = true
		}
	}
	remap := make([]uint32, len(g.positions))
	m := &kernel.Mesh{Indices: make([]uint32, 0, 3*len(keep))}
	for v, ok := range used {
		if ok {
			remap[v] = m.AddVertex(g.positions[v], g.normals[v])
		}
	}
	for _, t := range keep {
		for _, v := range g.triangles[t] {
			m.Indices = append(m.Indices, remap[v])
		}
	}
	return m
}

// Soup flattens the graph back into triangle buffers, three entries per
// triangle, in the form Build accepts.
func (g *Graph) Soup() (grid, world []r3.Vec) {
	grid = make([]r3.Vec, 0, 3*len(g.triangles))
	world = make([]r3.Vec, 0, 3*len(g.triangles))
	for _, tri := range g.triangles {
		for _, v := range tri {
			grid = append(grid, g.keys[v].Vec())
			world = append(world, g.positions[v])
		}
	}
	return grid, world
}
