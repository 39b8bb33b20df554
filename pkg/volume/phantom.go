package volume

// Sphere is a labeled ball used to build synthetic volumes.
type Sphere struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
	Label  uint64     `yaml:"label"`
}

// Contains reports whether the voxel center (x, y, z) lies inside the sphere.
func (s Sphere) Contains(x, y, z int64) bool {
	dx := float64(x) - s.Center[0]
	dy := float64(y) - s.Center[1]
	dz := float64(z) - s.Center[2]
	return dx*dx+dy*dy+dz*dz <= s.Radius*s.Radius
}

// Phantom builds a dense volume over bounds with background label 0 and the
// given spheres painted in order; later spheres overwrite earlier ones.
func Phantom(bounds Interval, spheres ...Sphere) *Dense {
	d := NewDense(bounds, 0)
	for _, s := range spheres {
		box := NewInterval(
			[3]int64{int64(s.Center[0] - s.Radius - 1), int64(s.Center[1] - s.Radius - 1), int64(s.Center[2] - s.Radius - 1)},
			[3]int64{int64(s.Center[0] + s.Radius + 1), int64(s.Center[1] + s.Radius + 1), int64(s.Center[2] + s.Radius + 1)},
		).Intersect(bounds)
		if box.IsEmpty() {
			continue
		}
		for z := box.Min[2]; z <= box.Max[2]; z++ {
			for y := box.Min[1]; y <= box.Max[1]; y++ {
				for x := box.Min[0]; x <= box.Max[0]; x++ {
					if s.Contains(x, y, z) {
						d.Set(x, y, z, s.Label)
					}
				}
			}
		}
	}
	return d
}
