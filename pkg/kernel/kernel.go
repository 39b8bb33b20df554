// Package kernel defines the mesh-extraction request model shared by all
// meshing backends. A Request describes one block of a labeled volume, the
// foreground test applied to its voxels, and the post-processing wanted on
// the result. Implementations (marching, sdfx) turn a Request into a Mesh
// behind the Mesher interface, so callers can swap backends without changing
// the rest of the system.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
)

// Configuration errors. Request.Validate returns these wrapped with detail.
var (
	ErrInvalidStride    = errors.New("kernel: cube stride must be positive")
	ErrEmptyInterval    = errors.New("kernel: block interval is empty")
	ErrInvalidTransform = errors.New("kernel: invalid transform")
	ErrInvalidPadding   = errors.New("kernel: padding must not be negative")
	ErrInvalidSmoothing = errors.New("kernel: invalid smoothing parameters")
	ErrMissingInput     = errors.New("kernel: missing volume or predicate")
)

// ErrPredicate matches every *PredicateError via errors.Is.
var ErrPredicate = errors.New("kernel: foreground predicate failed")

// DefaultPadding is the number of strides sampled beyond each side of a block
// so neighbouring blocks overlap by one cube.
const DefaultPadding = 1

// Block is one axis-aligned region of a volume to be meshed.
type Block struct {
	// Interval is the inclusive voxel range owned by the block.
	Interval volume.Interval `json:"interval"`
	// Stride is the cube edge length in voxels along each axis.
	Stride [3]int64 `json:"stride"`
	// Padding is the number of strides sampled outside the interval on each
	// side. Geometry produced there is flagged as overhanging.
	Padding int64 `json:"padding"`
	// Transform maps voxel coordinates to world space.
	Transform affine.Transform `json:"-"`
}

// NewBlock returns a block with the default padding and an identity transform.
func NewBlock(iv volume.Interval, stride [3]int64) Block {
	return Block{
		Interval:  iv,
		Stride:    stride,
		Padding:   DefaultPadding,
		Transform: affine.Identity(),
	}
}

// Validate checks the block configuration.
func (b Block) Validate() error {
	for d := 0; d < 3; d++ {
		if b.Stride[d] < 1 {
			return fmt.Errorf("%w: stride %v", ErrInvalidStride, b.Stride)
		}
	}
	if b.Interval.IsEmpty() {
		return fmt.Errorf("%w: %v", ErrEmptyInterval, b.Interval)
	}
	if b.Padding < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPadding, b.Padding)
	}
	if err := b.Transform.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransform, err)
	}
	return nil
}

// SampledInterval returns the voxel interval covered by the lattice,
// including padding. The max side may be short of a full stride.
func (b Block) SampledInterval() volume.Interval {
	return b.Interval.Expand([3]int64{
		b.Padding * b.Stride[0],
		b.Padding * b.Stride[1],
		b.Padding * b.Stride[2],
	})
}

// Options selects post-processing.
type Options struct {
	// Weld merges coincident vertices and averages normals over the welded
	// graph. Without it the mesh is an unindexed triangle soup.
	Weld bool `json:"weld" yaml:"weld"`
	// SmoothingLambda is the Laplacian step in (0,1]. Only used when welding.
	SmoothingLambda float64 `json:"smoothingLambda" yaml:"smoothing_lambda"`
	// SmoothingIterations is the number of synchronous smoothing passes.
	SmoothingIterations int `json:"smoothingIterations" yaml:"smoothing_iterations"`
	// FilterOverhang drops triangles touching the padding region. Only used
	// when welding.
	FilterOverhang bool `json:"filterOverhang" yaml:"filter_overhang"`
}

// Validate checks the smoothing parameters.
func (o Options) Validate() error {
	if o.SmoothingIterations < 0 {
		return fmt.Errorf("%w: iterations %d", ErrInvalidSmoothing, o.SmoothingIterations)
	}
	if o.SmoothingIterations > 0 && (o.SmoothingLambda <= 0 || o.SmoothingLambda > 1) {
		return fmt.Errorf("%w: lambda %g not in (0,1]", ErrInvalidSmoothing, o.SmoothingLambda)
	}
	return nil
}

// Request is one block extraction.
type Request struct {
	Volume    volume.Accessor
	Predicate predicate.Predicate
	Block     Block
	Options   Options
}

// Validate rejects configuration errors before any voxel is sampled.
func (r Request) Validate() error {
	if r.Volume == nil || r.Predicate == nil {
		return ErrMissingInput
	}
	if err := r.Block.Validate(); err != nil {
		return err
	}
	return r.Options.Validate()
}

// Mesher extracts a surface mesh for one block. Implementations must be safe
// for concurrent use with distinct requests. A nil mesh with a nil error is
// never returned; an empty block yields a mesh with no triangles.
type Mesher interface {
	Mesh(ctx context.Context, req Request) (*Mesh, error)
}

// MesherFunc adapts a function to the Mesher interface.
type MesherFunc func(ctx context.Context, req Request) (*Mesh, error)

// Mesh calls f(ctx, req).
func (f MesherFunc) Mesh(ctx context.Context, req Request) (*Mesh, error) {
	return f(ctx, req)
}

// PredicateError reports a foreground test failure at one voxel.
type PredicateError struct {
	Value   uint64
	X, Y, Z int64
	Err     error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("kernel: predicate failed for label %d at (%d,%d,%d): %v", e.Value, e.X, e.Y, e.Z, e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPredicate) true for any PredicateError.
func (e *PredicateError) Is(target error) bool { return target == ErrPredicate }
