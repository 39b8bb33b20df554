package marching

import (
	"context"

	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
)

// Lattice is the set of voxels sampled for a block: Points[d] lattice points
// per axis starting at Origin and spaced Stride voxels apart.
type Lattice struct {
	Origin [3]int64
	Stride [3]int64
	Points [3]int64
}

// LatticeOf returns the sampling lattice of a validated block. The lattice
// starts Padding strides below the interval minimum and extends Padding
// strides past the last stride-aligned point inside the interval. An axis
// shorter than one stride yields a lattice with no points.
func LatticeOf(b kernel.Block) Lattice {
	l := Lattice{Stride: b.Stride}
	dims := b.Interval.Dims()
	for d := 0; d < 3; d++ {
		s := b.Stride[d]
		l.Origin[d] = b.Interval.Min[d] - b.Padding*s
		if dims[d] < s {
			return Lattice{Origin: l.Origin, Stride: b.Stride}
		}
		l.Points[d] = (b.Interval.Max[d]-b.Interval.Min[d])/s + 1 + 2*b.Padding
	}
	return l
}

// Cubes returns the number of cubes per axis.
func (l Lattice) Cubes() [3]int64 {
	var c [3]int64
	for d := 0; d < 3; d++ {
		if l.Points[d] > 1 {
			c[d] = l.Points[d] - 1
		}
	}
	return c
}

// CubeCount returns the total number of cubes.
func (l Lattice) CubeCount() int64 {
	c := l.Cubes()
	return c[0] * c[1] * c[2]
}

// Voxel returns the voxel coordinate of lattice point (i, j, k).
func (l Lattice) Voxel(i, j, k int64) [3]int64 {
	return [3]int64{
		l.Origin[0] + i*l.Stride[0],
		l.Origin[1] + j*l.Stride[1],
		l.Origin[2] + k*l.Stride[2],
	}
}

// Cube is one sampled cube: its lattice index (the lattice point at its
// canonical corner 0) and its canonical corner configuration.
type Cube struct {
	Index  [3]int64
	Config uint8
}

// classifier evaluates the predicate for voxels, reusing the previous
// result while the label repeats.
type classifier struct {
	acc  volume.Accessor
	pred predicate.Predicate

	valid bool
	last  uint64
	fg    bool
}

func (c *classifier) at(v [3]int64) (bool, error) {
	label := c.acc.At(v[0], v[1], v[2])
	if c.valid && label == c.last {
		return c.fg, nil
	}
	fg, err := c.pred.Test(label)
	if err != nil {
		c.valid = false
		return false, &kernel.PredicateError{Value: label, X: v[0], Y: v[1], Z: v[2], Err: err}
	}
	c.valid, c.last, c.fg = true, label, fg
	return fg, nil
}

// classifyPlane fills plane with the foreground flags of lattice plane k,
// x fastest. The context is checked once per lattice row.
func (c *classifier) classifyPlane(ctx context.Context, l Lattice, k int64, plane []bool) error {
	px := l.Points[0]
	for j := int64(0); j < l.Points[1]; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := plane[j*px : (j+1)*px]
		for i := range row {
			fg, err := c.at(l.Voxel(int64(i), j, k))
			if err != nil {
				return err
			}
			row[i] = fg
		}
	}
	return nil
}

// Sample classifies every lattice point exactly once and calls visit for
// every cube in z-major, then y, then x-fastest order. Only two lattice
// planes are held in memory. It returns the context's error on
// cancellation and a *kernel.PredicateError when the predicate fails; in
// both cases cubes already visited must be discarded by the caller.
func Sample(ctx context.Context, acc volume.Accessor, pred predicate.Predicate, l Lattice, visit func(Cube)) error {
	if l.CubeCount() == 0 {
		return nil
	}
	c := &classifier{acc: acc, pred: pred}
	px, py := l.Points[0], l.Points[1]
	lower := make([]bool, px*py)
	upper := make([]bool, px*py)

	if err := c.classifyPlane(ctx, l, 0, lower); err != nil {
		return err
	}
	for k := int64(1); k < l.Points[2]; k++ {
		if err := c.classifyPlane(ctx, l, k, upper); err != nil {
			return err
		}
		for j := int64(0); j < py-1; j++ {
			for i := int64(0); i < px-1; i++ {
				var natural [8]bool
				for n := 0; n < 8; n++ {
					o := naturalOffset(n)
					plane := lower
					if o[2] == 1 {
						plane = upper
					}
					natural[n] = plane[(j+o[1])*px+i+o[0]]
				}
				visit(Cube{Index: [3]int64{i, j, k - 1}, Config: configuration(natural)})
			}
		}
		lower, upper = upper, lower
	}
	return nil
}
