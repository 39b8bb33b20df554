package marching

import (
	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Soup is an unwelded triangle list, three consecutive entries per triangle.
// Grid holds the voxel-space positions used for exact welding; World and
// Normals hold the transformed positions and unit normals.
type Soup struct {
	Grid    []r3.Vec
	World   []r3.Vec
	Normals []r3.Vec
}

// TriangleCount returns the number of triangles.
func (s *Soup) TriangleCount() int {
	return len(s.Grid) / 3
}

// MapToWorld transforms the accumulated buffer. Each position goes through
// the full transform; each normal is averaged, mapped through the linear
// part and renormalized. A mirroring transform reverses the winding of
// every triangle so faces keep pointing outward in world space.
func (a *Accumulator) MapToWorld(t affine.Transform) *Soup {
	n := len(a.positions)
	s := &Soup{
		Grid:    make([]r3.Vec, n),
		World:   make([]r3.Vec, n),
		Normals: make([]r3.Vec, n),
	}
	lin := t.Linear()
	world := make(map[kernel.GridKey]r3.Vec, len(a.normals))
	for k, ns := range a.normals {
		if ns.weight == 0 {
			continue
		}
		v := lin.Apply(r3.Scale(1/ns.weight, ns.sum))
		if r3.Norm(v) > 0 {
			v = r3.Unit(v)
		}
		world[k] = v
	}

	mirror := t.Determinant() < 0
	for i, p := range a.positions {
		j := i
		if mirror {
			// Swap the second and third corner of each triangle.
			switch i % 3 {
			case 1:
				j = i + 1
			case 2:
				j = i - 1
			}
		}
		s.Grid[j] = p
		s.World[j] = t.Apply(p)
		s.Normals[j] = world[kernel.KeyOf(p)]
	}
	return s
}

// Mesh returns the soup as an unindexed mesh: every triangle owns its three
// vertices.
func (s *Soup) Mesh() *kernel.Mesh {
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, 3*len(s.World)),
		Normals:  make([]float32, 0, 3*len(s.World)),
		Indices:  make([]uint32, 0, len(s.World)),
	}
	for i := range s.World {
		m.Indices = append(m.Indices, m.AddVertex(s.World[i], s.Normals[i]))
	}
	return m
}
