// Package affine implements 3×4 affine transforms from voxel space to world
// space. A Transform maps p to L·p + t, where L is the 3×3 linear part and t
// the translation column.
package affine

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotFinite is returned for transforms containing NaN or Inf.
	ErrNotFinite = errors.New("affine: transform has non-finite entries")
	// ErrSingular is returned for transforms whose linear part cannot be inverted.
	ErrSingular = errors.New("affine: linear part is singular")
)

// maxCondition bounds the 2-norm condition number of L. It is scale
// invariant, so nanometre voxel sizes pass while rank-deficient maps fail.
const maxCondition = 1e12

// Transform is a row-major 3×4 affine matrix. The zero value is not a valid
// transform; start from Identity.
type Transform struct {
	m [3][4]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: [3][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}}
}

// New builds a transform from three rows of four values.
func New(rows [3][4]float64) Transform {
	return Transform{m: rows}
}

// FromSlice builds a transform from 12 row-major values.
func FromSlice(values []float64) (Transform, error) {
	if len(values) != 12 {
		return Transform{}, fmt.Errorf("affine: need 12 values, got %d", len(values))
	}
	var t Transform
	for r := 0; r < 3; r++ {
		copy(t.m[r][:], values[r*4:r*4+4])
	}
	return t, nil
}

// Scale returns a transform scaling each axis independently.
func Scale(sx, sy, sz float64) Transform {
	return Transform{m: [3][4]float64{
		{sx, 0, 0, 0},
		{0, sy, 0, 0},
		{0, 0, sz, 0},
	}}
}

// Translation returns a pure translation.
func Translation(tx, ty, tz float64) Transform {
	t := Identity()
	t.m[0][3], t.m[1][3], t.m[2][3] = tx, ty, tz
	return t
}

// Rows returns the matrix rows.
func (t Transform) Rows() [3][4]float64 {
	return t.m
}

// Values returns the 12 row-major matrix entries.
func (t Transform) Values() []float64 {
	values := make([]float64, 0, 12)
	for r := 0; r < 3; r++ {
		values = append(values, t.m[r][:]...)
	}
	return values
}

// Linear returns the transform with its translation zeroed.
func (t Transform) Linear() Transform {
	for r := 0; r < 3; r++ {
		t.m[r][3] = 0
	}
	return t
}

// TranslationVec returns the translation column.
func (t Transform) TranslationVec() r3.Vec {
	return r3.Vec{X: t.m[0][3], Y: t.m[1][3], Z: t.m[2][3]}
}

// Concatenate returns the transform applying o first and then t.
func (t Transform) Concatenate(o Transform) Transform {
	var out Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			var v float64
			for k := 0; k < 3; k++ {
				v += t.m[r][k] * o.m[k][c]
			}
			if c == 3 {
				v += t.m[r][3]
			}
			out.m[r][c] = v
		}
	}
	return out
}

// Apply maps a point through the full transform.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t.m[0][0]*p.X + t.m[0][1]*p.Y + t.m[0][2]*p.Z + t.m[0][3],
		Y: t.m[1][0]*p.X + t.m[1][1]*p.Y + t.m[1][2]*p.Z + t.m[1][3],
		Z: t.m[2][0]*p.X + t.m[2][1]*p.Y + t.m[2][2]*p.Z + t.m[2][3],
	}
}

// ApplyLinear maps a direction through the linear part only.
func (t Transform) ApplyLinear(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t.m[0][0]*v.X + t.m[0][1]*v.Y + t.m[0][2]*v.Z,
		Y: t.m[1][0]*v.X + t.m[1][1]*v.Y + t.m[1][2]*v.Z,
		Z: t.m[2][0]*v.X + t.m[2][1]*v.Y + t.m[2][2]*v.Z,
	}
}

func (t Transform) linearDense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.m[0][0], t.m[0][1], t.m[0][2],
		t.m[1][0], t.m[1][1], t.m[1][2],
		t.m[2][0], t.m[2][1], t.m[2][2],
	})
}

// Determinant returns det L.
func (t Transform) Determinant() float64 {
	return mat.Det(t.linearDense())
}

// Condition returns the 2-norm condition number of L, +Inf when singular.
func (t Transform) Condition() float64 {
	if t.Determinant() == 0 {
		return math.Inf(1)
	}
	c := mat.Cond(t.linearDense(), 2)
	if math.IsNaN(c) {
		return math.Inf(1)
	}
	return c
}

// Validate checks that every entry is finite and the linear part is invertible.
func (t Transform) Validate() error {
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			if v := t.m[r][c]; math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: entry (%d,%d) = %v", ErrNotFinite, r, c, v)
			}
		}
	}
	if c := t.Condition(); c > maxCondition {
		return fmt.Errorf("%w: det = %g, condition %g", ErrSingular, t.Determinant(), c)
	}
	return nil
}

func (t Transform) String() string {
	return fmt.Sprintf("[%g %g %g %g; %g %g %g %g; %g %g %g %g]",
		t.m[0][0], t.m[0][1], t.m[0][2], t.m[0][3],
		t.m[1][0], t.m[1][1], t.m[1][2], t.m[1][3],
		t.m[2][0], t.m[2][1], t.m[2][2], t.m[2][3])
}
