// Package config handles labelmesh configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/labelmesh/pkg/affine"
	"github.com/chazu/labelmesh/pkg/kernel"
	"github.com/chazu/labelmesh/pkg/volume"
	"github.com/samber/lo"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Kernel names accepted by ExtractionConfig.Kernel.
const (
	KernelMarching = "marching"
	KernelSDFX     = "sdfx"
)

// Predicate kinds accepted by PredicateConfig.Kind.
const (
	PredicateEqual        = "equal"
	PredicateGreaterEqual = "greater_equal"
	PredicateRange        = "range"
	PredicateSegment      = "segment"
	PredicateScript       = "script"
)

// Config holds all labelmesh settings.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction"`
	Volume     VolumeConfig     `yaml:"volume"`
	Phantom    PhantomConfig    `yaml:"phantom"`
	Predicate  PredicateConfig  `yaml:"predicate"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExtractionConfig holds block pipeline and tessellator settings.
type ExtractionConfig struct {
	Kernel    string   `yaml:"kernel"`
	Scale     int      `yaml:"scale"`
	CubeSize  [3]int64 `yaml:"cube_size"`
	BlockSize [3]int64 `yaml:"block_size"`
	Padding   int64    `yaml:"padding"`

	kernel.Options `yaml:",inline"`

	Workers      int           `yaml:"workers"`       // 0 means GOMAXPROCS
	BlockTimeout time.Duration `yaml:"block_timeout"` // 0 disables
}

// VolumeConfig places voxel space in world space.
type VolumeConfig struct {
	VoxelSize [3]float64 `yaml:"voxel_size"`
	Offset    [3]float64 `yaml:"offset"`
}

// Transform returns the voxel-to-world map: scale by VoxelSize, then
// translate by Offset.
func (v VolumeConfig) Transform() affine.Transform {
	s := affine.Scale(v.VoxelSize[0], v.VoxelSize[1], v.VoxelSize[2])
	return affine.Translation(v.Offset[0], v.Offset[1], v.Offset[2]).Concatenate(s)
}

// PhantomConfig describes the synthetic volume meshed by the CLI.
type PhantomConfig struct {
	Min     [3]int64        `yaml:"min"`
	Max     [3]int64        `yaml:"max"`
	Spheres []volume.Sphere `yaml:"spheres"`
}

// Bounds returns the phantom's voxel interval.
func (p PhantomConfig) Bounds() volume.Interval {
	return volume.NewInterval(p.Min, p.Max)
}

// Labels returns the distinct non-background sphere labels in first-seen
// order.
func (p PhantomConfig) Labels() []uint64 {
	labels := lo.Map(p.Spheres, func(s volume.Sphere, _ int) uint64 { return s.Label })
	return lo.Uniq(lo.Without(labels, 0))
}

// PredicateConfig selects the foreground test. Objects lists the object ids
// to mesh; for equal and segment kinds an empty list means every phantom
// label.
type PredicateConfig struct {
	Kind       string            `yaml:"kind"`
	Objects    []uint64          `yaml:"objects,omitempty"`
	Threshold  uint64            `yaml:"threshold,omitempty"`
	Lo         uint64            `yaml:"lo,omitempty"`
	Hi         uint64            `yaml:"hi,omitempty"`
	Script     string            `yaml:"script,omitempty"`
	Assignment map[uint64]uint64 `yaml:"assignment,omitempty"` // fragment -> segment
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values: two overlapping
// spheres in a 48^3 phantom, welded and lightly smoothed.
func Default() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Kernel:    KernelMarching,
			CubeSize:  [3]int64{1, 1, 1},
			BlockSize: [3]int64{16, 16, 16},
			Padding:   kernel.DefaultPadding,
			Options: kernel.Options{
				Weld:                true,
				SmoothingLambda:     0.5,
				SmoothingIterations: 2,
				FilterOverhang:      true,
			},
			BlockTimeout: 30 * time.Second,
		},
		Volume: VolumeConfig{
			VoxelSize: [3]float64{1, 1, 1},
		},
		Phantom: PhantomConfig{
			Min: [3]int64{0, 0, 0},
			Max: [3]int64{47, 47, 47},
			Spheres: []volume.Sphere{
				{Center: [3]float64{18, 24, 24}, Radius: 10, Label: 1},
				{Center: [3]float64{30, 24, 24}, Radius: 8, Label: 2},
			},
		},
		Predicate: PredicateConfig{
			Kind: PredicateEqual,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	e := c.Extraction
	if e.Kernel != KernelMarching && e.Kernel != KernelSDFX {
		return fmt.Errorf("%w: extraction.kernel %q", ErrInvalid, e.Kernel)
	}
	if e.Scale < 0 {
		return fmt.Errorf("%w: extraction.scale %d", ErrInvalid, e.Scale)
	}
	for d := 0; d < 3; d++ {
		if e.CubeSize[d] <= 0 {
			return fmt.Errorf("%w: extraction.cube_size %v", ErrInvalid, e.CubeSize)
		}
		if e.BlockSize[d] <= 0 {
			return fmt.Errorf("%w: extraction.block_size %v", ErrInvalid, e.BlockSize)
		}
	}
	if e.Padding < 0 {
		return fmt.Errorf("%w: extraction.padding %d", ErrInvalid, e.Padding)
	}
	if err := e.Options.Validate(); err != nil {
		return fmt.Errorf("%w: extraction: %w", ErrInvalid, err)
	}
	if e.Workers < 0 || e.BlockTimeout < 0 {
		return fmt.Errorf("%w: extraction.workers %d, block_timeout %v", ErrInvalid, e.Workers, e.BlockTimeout)
	}
	if err := c.Volume.Transform().Validate(); err != nil {
		return fmt.Errorf("%w: volume: %w", ErrInvalid, err)
	}
	if c.Phantom.Bounds().IsEmpty() {
		return fmt.Errorf("%w: phantom bounds %v", ErrInvalid, c.Phantom.Bounds())
	}
	return c.Predicate.validate()
}

func (p PredicateConfig) validate() error {
	switch p.Kind {
	case PredicateEqual, PredicateGreaterEqual, PredicateSegment:
	case PredicateRange:
		if p.Lo > p.Hi {
			return fmt.Errorf("%w: predicate range %d..%d", ErrInvalid, p.Lo, p.Hi)
		}
	case PredicateScript:
		if p.Script == "" {
			return fmt.Errorf("%w: predicate.script is empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: predicate.kind %q", ErrInvalid, p.Kind)
	}
	return nil
}
