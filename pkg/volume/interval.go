// Package volume defines integer voxel intervals and read-only access to
// labeled volumes. Volumes are addressed by signed 64-bit voxel coordinates;
// intervals are inclusive on both ends.
package volume

import "fmt"

// Interval is an axis-aligned box of voxel coordinates. Both Min and Max are
// inclusive, so a single voxel has Min == Max.
type Interval struct {
	Min [3]int64 `json:"min" yaml:"min"`
	Max [3]int64 `json:"max" yaml:"max"`
}

// NewInterval returns the interval spanning min..max inclusive.
func NewInterval(min, max [3]int64) Interval {
	return Interval{Min: min, Max: max}
}

// IntervalOfSize returns the interval starting at min with the given size.
func IntervalOfSize(min, size [3]int64) Interval {
	return Interval{
		Min: min,
		Max: [3]int64{min[0] + size[0] - 1, min[1] + size[1] - 1, min[2] + size[2] - 1},
	}
}

// IsEmpty reports whether the interval contains no voxels.
func (iv Interval) IsEmpty() bool {
	for d := 0; d < 3; d++ {
		if iv.Max[d] < iv.Min[d] {
			return true
		}
	}
	return false
}

// Dims returns the number of voxels along each axis. Empty axes report zero.
func (iv Interval) Dims() [3]int64 {
	var dims [3]int64
	for d := 0; d < 3; d++ {
		if n := iv.Max[d] - iv.Min[d] + 1; n > 0 {
			dims[d] = n
		}
	}
	return dims
}

// Size returns the total number of voxels.
func (iv Interval) Size() int64 {
	dims := iv.Dims()
	return dims[0] * dims[1] * dims[2]
}

// Expand grows the interval by the given amount on both sides of each axis.
// Negative amounts shrink it.
func (iv Interval) Expand(by [3]int64) Interval {
	for d := 0; d < 3; d++ {
		iv.Min[d] -= by[d]
		iv.Max[d] += by[d]
	}
	return iv
}

// Intersect returns the overlap of two intervals, which may be empty.
func (iv Interval) Intersect(o Interval) Interval {
	for d := 0; d < 3; d++ {
		iv.Min[d] = max(iv.Min[d], o.Min[d])
		iv.Max[d] = min(iv.Max[d], o.Max[d])
	}
	return iv
}

// Contains reports whether the voxel (x, y, z) lies inside the interval.
func (iv Interval) Contains(x, y, z int64) bool {
	return x >= iv.Min[0] && x <= iv.Max[0] &&
		y >= iv.Min[1] && y <= iv.Max[1] &&
		z >= iv.Min[2] && z <= iv.Max[2]
}

// Split partitions the interval into a grid of blocks of at most blockSize
// voxels per axis. Blocks are aligned to the interval minimum and returned in
// z-major, then y, then x order. The last block on each axis may be smaller.
func (iv Interval) Split(blockSize [3]int64) ([]Interval, error) {
	for d := 0; d < 3; d++ {
		if blockSize[d] <= 0 {
			return nil, fmt.Errorf("volume: block size %v must be positive on every axis", blockSize)
		}
	}
	if iv.IsEmpty() {
		return nil, nil
	}

	var blocks []Interval
	for z := iv.Min[2]; z <= iv.Max[2]; z += blockSize[2] {
		for y := iv.Min[1]; y <= iv.Max[1]; y += blockSize[1] {
			for x := iv.Min[0]; x <= iv.Max[0]; x += blockSize[0] {
				b := IntervalOfSize([3]int64{x, y, z}, blockSize)
				blocks = append(blocks, b.Intersect(iv))
			}
		}
	}
	return blocks, nil
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d,%d]-[%d,%d,%d]",
		iv.Min[0], iv.Min[1], iv.Min[2], iv.Max[0], iv.Max[1], iv.Max[2])
}
