// Package tessellate meshes whole objects by running one block pipeline per
// block on a bounded worker pool. Block failures are local: the block is
// logged and skipped while its siblings complete. Cancelling the object's
// context aborts every block and publishes nothing.
package tessellate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/chazu/labelmesh/pkg/volume"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrNoBlocks is returned by BlocksFor for an empty object interval.
var ErrNoBlocks = errors.New("tessellate: no blocks")

// Object is one labeled object to mesh at one resolution level.
type Object struct {
	ID        uint64
	Scale     int
	Volume    volume.Accessor
	Predicate predicate.Predicate
	Blocks    []kernel.Block
	Options   kernel.Options
}

// Job is one block of an object, as dispatched to a worker.
type Job struct {
	ID      uuid.UUID
	Object  uint64
	Scale   int
	Index   int
	Block   kernel.Block
	Options kernel.Options
}

// Key identifies the mesh a job produces, independent of the job id.
func (j Job) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{object=%d, scale=%d", j.Object, j.Scale)
	if j.Options.Weld && j.Options.SmoothingIterations > 0 {
		fmt.Fprintf(&b, ", smoothing=%.2fx%d", j.Options.SmoothingLambda, j.Options.SmoothingIterations)
	}
	iv := j.Block.Interval
	fmt.Fprintf(&b, ", min=[%d,%d,%d], max=[%d,%d,%d]}",
		iv.Min[0], iv.Min[1], iv.Min[2], iv.Max[0], iv.Max[1], iv.Max[2])
	return b.String()
}

// BlockMesh is the mesh of one successful job.
type BlockMesh struct {
	Job      Job
	Mesh     *kernel.Mesh
	Duration time.Duration
}

// Failure is a job that produced no mesh.
type Failure struct {
	Job Job
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("block %s: %v", f.Job.Key(), f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result holds the outcome of one object. Meshes and Failures are in block
// order.
type Result struct {
	Object   uint64
	Scale    int
	Meshes   []BlockMesh
	Failures []Failure
}

// Merged concatenates all block meshes into one mesh. Vertices are not
// shared between blocks.
func (r *Result) Merged() *kernel.Mesh {
	m := &kernel.Mesh{Name: fmt.Sprintf("object-%d", r.Object)}
	for _, bm := range r.Meshes {
		m.Append(bm.Mesh)
	}
	return m
}

// TriangleCount returns the number of triangles over all blocks.
func (r *Result) TriangleCount() int {
	n := 0
	for _, bm := range r.Meshes {
		n += bm.Mesh.TriangleCount()
	}
	return n
}

// Err combines all block failures, or returns nil.
func (r *Result) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithWorkers bounds the number of blocks meshed at once. Values below one
// select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithBlockTimeout limits the time one block may take. Zero disables it.
func WithBlockTimeout(d time.Duration) Option {
	return func(r *Runner) { r.blockTimeout = d }
}

// Runner tessellates objects with a mesher. It is safe for concurrent use.
type Runner struct {
	mesher       kernel.Mesher
	log          *zap.Logger
	workers      int
	blockTimeout time.Duration
}

// NewRunner returns a runner meshing with m.
func NewRunner(m kernel.Mesher, opts ...Option) *Runner {
	r := &Runner{mesher: m, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// Run meshes every block of obj. Configuration errors shared by all blocks
// are returned before any work starts. If ctx is cancelled Run returns
// ctx's error and no result, even if some blocks had finished.
func (r *Runner) Run(ctx context.Context, obj Object) (*Result, error) {
	if obj.Volume == nil || obj.Predicate == nil {
		return nil, fmt.Errorf("tessellate: object %d: %w", obj.ID, kernel.ErrMissingInput)
	}
	if err := obj.Options.Validate(); err != nil {
		return nil, fmt.Errorf("tessellate: object %d: %w", obj.ID, err)
	}

	start := time.Now()
	log := r.log.With(zap.Uint64("object", obj.ID), zap.Int("scale", obj.Scale))

	meshes := make([]*BlockMesh, len(obj.Blocks))
	failures := make([]*Failure, len(obj.Blocks))
	sem := semaphore.NewWeighted(int64(r.workers))

	for i, blk := range obj.Blocks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		job := Job{
			ID:      uuid.New(),
			Object:  obj.ID,
			Scale:   obj.Scale,
			Index:   i,
			Block:   blk,
			Options: obj.Options,
		}
		go func() {
			defer sem.Release(1)
			bm, err := r.runBlock(ctx, obj, job)
			if err != nil {
				failures[job.Index] = &Failure{Job: job, Err: err}
				return
			}
			meshes[job.Index] = bm
		}()
	}
	// Wait for in-flight blocks.
	_ = sem.Acquire(context.Background(), int64(r.workers))

	if err := ctx.Err(); err != nil {
		log.Info("object cancelled", zap.Error(err))
		return nil, err
	}

	res := &Result{Object: obj.ID, Scale: obj.Scale}
	for i := range obj.Blocks {
		switch {
		case meshes[i] != nil:
			res.Meshes = append(res.Meshes, *meshes[i])
		case failures[i] != nil:
			f := *failures[i]
			log.Warn("block failed",
				zap.String("job", f.Job.ID.String()),
				zap.Stringer("block", f.Job.Block.Interval),
				zap.Error(f.Err))
			res.Failures = append(res.Failures, f)
		}
	}
	log.Info("object tessellated",
		zap.Int("blocks", len(obj.Blocks)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("triangles", res.TriangleCount()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// runBlock meshes one job. Panics in the mesher become the job's error.
func (r *Runner) runBlock(ctx context.Context, obj Object, job Job) (bm *BlockMesh, err error) {
	defer func() {
		if p := recover(); p != nil {
			bm, err = nil, fmt.Errorf("tessellate: panic in block: %v", p)
		}
	}()

	if r.blockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.blockTimeout)
		defer cancel()
	}

	start := time.Now()
	mesh, err := r.mesher.Mesh(ctx, kernel.Request{
		Volume:    obj.Volume,
		Predicate: obj.Predicate,
		Block:     job.Block,
		Options:   job.Options,
	})
	if err != nil {
		return nil, err
	}
	mesh.Name = job.Key()
	elapsed := time.Since(start)
	r.log.Debug("block meshed",
		zap.Uint64("object", job.Object),
		zap.Int("scale", job.Scale),
		zap.String("job", job.ID.String()),
		zap.Stringer("block", job.Block.Interval),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Duration("elapsed", elapsed))
	return &BlockMesh{Job: job, Mesh: mesh, Duration: elapsed}, nil
}

// BlocksFor partitions bounds into blocks of at most blockSize voxels per
// axis, all sharing stride, padding and transform. Blocks are in z-major
// order.
func BlocksFor(bounds volume.Interval, blockSize, stride [3]int64, padding int64, t affine.Transform) ([]kernel.Block, error) {
	if bounds.IsEmpty() {
		return nil, fmt.Errorf("%w: %v is empty", ErrNoBlocks, bounds)
	}
	ivs, err := bounds.Split(blockSize)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	blocks := make([]kernel.Block, len(ivs))
	for i, iv := range ivs {
		blocks[i] = kernel.Block{Interval: iv, Stride: stride, Padding: padding, Transform: t}
	}
	return blocks, nil
}

// Tessellate runs obj with a default runner and returns the block meshes in
// block order, skipping failed blocks. The error combines the failures.
func Tessellate(ctx context.Context, m kernel.Mesher, obj Object) ([]*kernel.Mesh, error) {
	res, err := NewRunner(m).Run(ctx, obj)
	if err != nil {
		return nil, err
	}
	meshes := make([]*kernel.Mesh, 0, len(res.Meshes))
	for _, bm := range res.Meshes {
		meshes = append(meshes, bm.Mesh)
	}
	return meshes, res.Err()
}
