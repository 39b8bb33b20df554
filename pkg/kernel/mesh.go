package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a welded or unwelded triangle mesh in world space.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...] unit, outward
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // object or block this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// Vertex returns vertex i as a vector.
func (m *Mesh) Vertex(i uint32) r3.Vec {
	return r3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Normal returns the normal of vertex i.
func (m *Mesh) Normal(i uint32) r3.Vec {
	return r3.Vec{
		X: float64(m.Normals[3*i]),
		Y: float64(m.Normals[3*i+1]),
		Z: float64(m.Normals[3*i+2]),
	}
}

// Triangle returns the vertex indices of triangle t.
func (m *Mesh) Triangle(t int) [3]uint32 {
	return [3]uint32{m.Indices[3*t], m.Indices[3*t+1], m.Indices[3*t+2]}
}

// AddVertex appends a vertex with its normal and returns its index.
func (m *Mesh) AddVertex(p, n r3.Vec) uint32 {
	idx := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	return idx
}

// Append adds all geometry of o to m, offsetting o's indices. Vertices are
// not shared between the two meshes.
func (m *Mesh) Append(o *Mesh) {
	if o == nil {
		return
	}
	base := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	for _, i := range o.Indices {
		m.Indices = append(m.Indices, base+i)
	}
}

// Bounds returns the axis-aligned bounding box of the vertices. An empty
// mesh returns zero vectors.
func (m *Mesh) Bounds() (min, max r3.Vec) {
	if m.VertexCount() == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	min = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(uint32(i))
		min = r3.Vec{X: math.Min(min.X, v.X), Y: math.Min(min.Y, v.Y), Z: math.Min(min.Z, v.Z)}
		max = r3.Vec{X: math.Max(max.X, v.X), Y: math.Max(max.Y, v.Y), Z: math.Max(max.Z, v.Z)}
	}
	return min, max
}
