package marching

// Canonical corner layout of the case tables. Corner i sits at
// canonicalOffset[i] within a unit cube:
//
//	   7-------6
//	  /|      /|
//	 4-------5 |      z
//	 | 3-----|-2      |  y
//	 |/      |/       | /
//	 0-------1        |/___ x
var canonicalOffset = [8][3]int64{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{1, 1, 1},
	{0, 1, 1},
}

// naturalToCanonical maps the natural corner enumeration, where corner n
// has offset (n&1, n>>1&1, n>>2&1), to the canonical corner index. The
// natural order walks x fastest, so corners 2 and 3 (and 6 and 7) swap.
var naturalToCanonical = [8]uint8{0, 1, 3, 2, 4, 5, 7, 6}

// edgeCorners lists the canonical corner pair of each of the 12 edges.
var edgeCorners = [12][2]uint8{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// edgeMidpoint is the midpoint of each edge in unit-cube coordinates. Every
// component is 0, 0.5 or 1.
var edgeMidpoint = func() [12][3]float64 {
	var mids [12][3]float64
	for e, c := range edgeCorners {
		a, b := canonicalOffset[c[0]], canonicalOffset[c[1]]
		for d := 0; d < 3; d++ {
			mids[e][d] = float64(a[d]+b[d]) / 2
		}
	}
	return mids
}()

// naturalOffset returns the unit-cube offset of natural corner n.
func naturalOffset(n int) [3]int64 {
	return [3]int64{int64(n & 1), int64(n >> 1 & 1), int64(n >> 2 & 1)}
}

// configuration packs eight foreground flags given in natural corner order
// into a canonical corner configuration.
func configuration(natural [8]bool) uint8 {
	var c uint8
	for n, fg := range natural {
		if fg {
			c |= 1 << naturalToCanonical[n]
		}
	}
	return c
}
