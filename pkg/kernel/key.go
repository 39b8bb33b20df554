package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GridKey identifies a pre-transform lattice position exactly. Edge points
// lie on half-integer voxel coordinates, so twice the coordinate is always an
// integer and the key compares by value without tolerance.
type GridKey [3]int64

// KeyOf returns the key of p. p must lie on the half-integer grid.
func KeyOf(p r3.Vec) GridKey {
	return GridKey{
		int64(math.Round(2 * p.X)),
		int64(math.Round(2 * p.Y)),
		int64(math.Round(2 * p.Z)),
	}
}

// Vec returns the position the key stands for.
func (k GridKey) Vec() r3.Vec {
	return r3.Vec{X: float64(k[0]) / 2, Y: float64(k[1]) / 2, Z: float64(k[2]) / 2}
}

func (k GridKey) String() string {
	return fmt.Sprintf("(%g,%g,%g)", float64(k[0])/2, float64(k[1])/2, float64(k[2])/2)
}
