package volume

// Accessor is read-only random access into a labeled volume. Implementations
// must tolerate concurrent reads and return a background value for
// coordinates they do not cover; block pipelines sample one stride beyond
// the block they mesh.
type Accessor interface {
	At(x, y, z int64) uint64
}

// AccessorFunc adapts a plain function to the Accessor interface.
type AccessorFunc func(x, y, z int64) uint64

// At calls f(x, y, z).
func (f AccessorFunc) At(x, y, z int64) uint64 {
	return f(x, y, z)
}

// Dense is an in-memory label volume over a fixed interval, stored x-fastest.
// Reads outside the interval return the background label. Dense is not safe
// for concurrent writes; once populated it may be shared between readers.
type Dense struct {
	bounds     Interval
	background uint64
	data       []uint64
}

// NewDense allocates a volume covering bounds with every voxel set to the
// background label.
func NewDense(bounds Interval, background uint64) *Dense {
	d := &Dense{
		bounds:     bounds,
		background: background,
		data:       make([]uint64, bounds.Size()),
	}
	if background != 0 {
		for i := range d.data {
			d.data[i] = background
		}
	}
	return d
}

// Bounds returns the interval covered by the volume.
func (d *Dense) Bounds() Interval {
	return d.bounds
}

// Background returns the label reported outside the bounds.
func (d *Dense) Background() uint64 {
	return d.background
}

func (d *Dense) offset(x, y, z int64) int64 {
	dims := d.bounds.Dims()
	return (x - d.bounds.Min[0]) + dims[0]*((y-d.bounds.Min[1])+dims[1]*(z-d.bounds.Min[2]))
}

// At returns the label at (x, y, z).
func (d *Dense) At(x, y, z int64) uint64 {
	if !d.bounds.Contains(x, y, z) {
		return d.background
	}
	return d.data[d.offset(x, y, z)]
}

// Set writes a label. Writes outside the bounds are ignored.
func (d *Dense) Set(x, y, z int64, label uint64) {
	if !d.bounds.Contains(x, y, z) {
		return
	}
	d.data[d.offset(x, y, z)] = label
}

// Fill writes label into every voxel of iv that lies inside the bounds.
func (d *Dense) Fill(iv Interval, label uint64) {
	iv = iv.Intersect(d.bounds)
	if iv.IsEmpty() {
		return
	}
	for z := iv.Min[2]; z <= iv.Max[2]; z++ {
		for y := iv.Min[1]; y <= iv.Max[1]; y++ {
			for x := iv.Min[0]; x <= iv.Max[0]; x++ {
				d.data[d.offset(x, y, z)] = label
			}
		}
	}
}

// Labels returns the distinct labels present inside the bounds, in order of
// first occurrence.
func (d *Dense) Labels() []uint64 {
	seen := make(map[uint64]struct{})
	var labels []uint64
	for _, v := range d.data {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		labels = append(labels, v)
	}
	return labels
}
