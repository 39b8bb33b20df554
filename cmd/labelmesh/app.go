package main

import (
	"context"
	"fmt"

	"github.com/chazu/labelmesh/internal/config"
	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/kernel/sdfx"
	"github.com/chazu/labelmesh/pkg/marching"
	"github.com/chazu/labelmesh/pkg/tessellate"
	"github.com/chazu/labelmesh/pkg/volume"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// colorPalette is a default palette used to assign distinct colors to objects.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App wires configuration, volume, predicates and the tessellator together.
type App struct {
	cfg    *config.Config
	log    *zap.Logger
	volume volume.Accessor
	runner *tessellate.Runner
}

// MeshData summarizes one object's merged mesh.
type MeshData struct {
	Object    uint64     `json:"object"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	Vertices  int        `json:"vertices"`
	Triangles int        `json:"triangles"`
	Blocks    int        `json:"blocks"`
	Min       [3]float64 `json:"min"`
	Max       [3]float64 `json:"max"`
}

// FailureData is a JSON-serializable block failure.
type FailureData struct {
	Job     string `json:"job"`
	Block   string `json:"block"`
	Message string `json:"message"`
}

// ObjectResult is the outcome of one object.
type ObjectResult struct {
	Mesh     MeshData      `json:"mesh"`
	Failures []FailureData `json:"failures"`
	Warnings []string      `json:"warnings"`
	Errors   []string      `json:"errors"`
}

// RunResult is the full result printed by the command.
type RunResult struct {
	Kernel  string         `json:"kernel"`
	Objects []ObjectResult `json:"objects"`
	Errors  []string       `json:"errors"`
}

// NewApp creates an App for cfg. The phantom volume is built up front.
func NewApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var m kernel.Mesher
	switch cfg.Extraction.Kernel {
	case config.KernelSDFX:
		m = sdfx.New()
	default:
		m = marching.New()
	}
	return &App{
		cfg:    cfg,
		log:    log,
		volume: volume.Phantom(cfg.Phantom.Bounds(), cfg.Phantom.Spheres...),
		runner: tessellate.NewRunner(m,
			tessellate.WithLogger(log),
			tessellate.WithWorkers(cfg.Extraction.Workers),
			tessellate.WithBlockTimeout(cfg.Extraction.BlockTimeout)),
	}, nil
}

// Run meshes every configured object. Errors that stop the whole run land
// in RunResult.Errors; per-object problems stay with their object.
func (a *App) Run(ctx context.Context) RunResult {
	result := RunResult{
		Kernel:  a.cfg.Extraction.Kernel,
		Objects: []ObjectResult{},
		Errors:  []string{},
	}

	e := a.cfg.Extraction
	blocks, err := tessellate.BlocksFor(a.cfg.Phantom.Bounds(), e.BlockSize, e.CubeSize, e.Padding, a.cfg.Volume.Transform())
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	build := a.cfg.Predicate.Builder()
	for i, id := range a.cfg.Predicate.ObjectIDs(a.cfg.Phantom.Labels()) {
		pred, err := build(id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("object %d: %v", id, err))
			continue
		}
		res, err := a.runner.Run(ctx, tessellate.Object{
			ID:        id,
			Scale:     e.Scale,
			Volume:    a.volume,
			Predicate: pred,
			Blocks:    blocks,
			Options:   e.Options,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("object %d: %v", id, err))
			if ctx.Err() != nil {
				return result
			}
			continue
		}
		result.Objects = append(result.Objects, a.summarize(res, colorPalette[i%len(colorPalette)]))
	}
	return result
}

// summarize merges and validates one object's meshes.
func (a *App) summarize(res *tessellate.Result, color string) ObjectResult {
	merged := res.Merged()
	min, max := merged.Bounds()
	v := kernel.Validate(merged)

	out := ObjectResult{
		Mesh: MeshData{
			Object:    res.Object,
			Name:      merged.Name,
			Color:     color,
			Vertices:  merged.VertexCount(),
			Triangles: merged.TriangleCount(),
			Blocks:    len(res.Meshes),
			Min:       [3]float64{min.X, min.Y, min.Z},
			Max:       [3]float64{max.X, max.Y, max.Z},
		},
		Failures: lo.Map(res.Failures, func(f tessellate.Failure, _ int) FailureData {
			return FailureData{Job: f.Job.ID.String(), Block: f.Job.Block.Interval.String(), Message: f.Err.Error()}
		}),
		Warnings: lo.Map(v.Warnings, func(w kernel.ValidationError, _ int) string { return w.Message }),
		Errors:   lo.Map(v.Errors, func(e kernel.ValidationError, _ int) string { return e.Error() }),
	}
	if len(out.Errors) > 0 {
		a.log.Warn("merged mesh failed validation",
			zap.Uint64("object", res.Object), zap.Strings("errors", out.Errors))
	}
	return out
}
