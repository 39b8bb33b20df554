package marching

import "gonum.org/v1/gonum/spatial/r3"

// maxTriangles is the largest number of triangles any configuration emits.
const maxTriangles = 5

// Triangle is three edge points in voxel coordinates, wound so that the
// right-hand normal points away from the foreground.
type Triangle [3]r3.Vec

// EdgePoint returns the midpoint of edge e of the cube at lattice index
// cube: origin + (index + midpoint) * stride on every axis.
func (l Lattice) EdgePoint(cube [3]int64, e int) r3.Vec {
	m := edgeMidpoint[e]
	return r3.Vec{
		X: float64(l.Origin[0]) + (float64(cube[0])+m[0])*float64(l.Stride[0]),
		Y: float64(l.Origin[1]) + (float64(cube[1])+m[1])*float64(l.Stride[1]),
		Z: float64(l.Origin[2]) + (float64(cube[2])+m[2])*float64(l.Stride[2]),
	}
}

// Triangulate appends the triangles of one cube to dst and returns the
// extended slice. Configurations 0 and 255 append nothing.
//
// The case table winds each triple counter-clockwise seen from the
// foreground corners; triangles are emitted as (t0, t2, t1) so they face
// outward.
func Triangulate(config uint8, cube [3]int64, l Lattice, dst []Triangle) []Triangle {
	edges := edgeTable[config]
	if edges == 0 {
		return dst
	}
	var points [12]r3.Vec
	for e := 0; e < 12; e++ {
		if edges&(1<<e) != 0 {
			points[e] = l.EdgePoint(cube, e)
		}
	}
	row := &triTable[config]
	for i := 0; i+2 < len(row) && row[i] != edgeSentinel; i += 3 {
		dst = append(dst, Triangle{points[row[i]], points[row[i+2]], points[row[i+1]]})
	}
	return dst
}

// FaceNormal returns the unit normal (b-a)×(c-a), or the zero vector for a
// degenerate triangle.
func (t Triangle) FaceNormal() r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	if r3.Norm(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}
