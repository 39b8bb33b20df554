package marching

import "testing"

// wantTriangleCounts is the published triangle count of every case.
var wantTriangleCounts = [256]int{
	0, 1, 1, 2, 1, 2, 2, 3, 1, 2, 2, 3, 2, 3, 3, 2, 1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 3,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 3, 2, 3, 3, 2, 3, 4, 4, 3, 3, 4, 4, 3, 4, 5, 5, 2,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 3, 2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 4,
	2, 3, 3, 4, 3, 4, 2, 3, 3, 4, 4, 5, 4, 5, 3, 2, 3, 4, 4, 3, 4, 5, 3, 2, 4, 5, 5, 4, 5, 2, 4, 1,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 3, 2, 3, 3, 4, 3, 4, 4, 5, 3, 2, 4, 3, 4, 3, 5, 2,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 4, 3, 4, 4, 3, 4, 5, 5, 4, 4, 3, 5, 2, 5, 4, 2, 1,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 2, 3, 3, 2, 3, 4, 4, 5, 4, 5, 5, 2, 4, 3, 5, 4, 3, 2, 4, 1,
	3, 4, 4, 5, 4, 5, 3, 4, 4, 5, 5, 2, 3, 4, 2, 1, 2, 3, 3, 2, 3, 4, 2, 1, 3, 2, 4, 1, 2, 1, 1, 0,
}

func triangleCount(config int) int {
	n := 0
	for n*3 < len(triTable[config]) && triTable[config][n*3] != edgeSentinel {
		n++
	}
	return n
}

func TestTriangleCounts(t *testing.T) {
	hist := make(map[int]int)
	for c := 0; c < 256; c++ {
		got := triangleCount(c)
		if got != wantTriangleCounts[c] {
			t.Errorf("config %d: %d triangles, want %d", c, got, wantTriangleCounts[c])
		}
		if got > maxTriangles {
			t.Errorf("config %d: %d triangles exceeds %d", c, got, maxTriangles)
		}
		hist[got]++
	}
	want := map[int]int{0: 2, 1: 16, 2: 50, 3: 80, 4: 76, 5: 32}
	for n, count := range want {
		if hist[n] != count {
			t.Errorf("%d configs with %d triangles, want %d", hist[n], n, count)
		}
	}
}

func TestTriTableEdgesDistinctAndCrossed(t *testing.T) {
	for c := 0; c < 256; c++ {
		row := triTable[c]
		n := triangleCount(c)
		var used uint16
		for i := 0; i < 3*n; i += 3 {
			a, b, e := row[i], row[i+1], row[i+2]
			if a == b || b == e || a == e {
				t.Errorf("config %d triangle %d repeats an edge: %v", c, i/3, row[i:i+3])
			}
			for _, edge := range []int8{a, b, e} {
				if edge < 0 || edge > 11 {
					t.Fatalf("config %d: edge index %d out of range", c, edge)
				}
				used |= 1 << edge
			}
		}
		if used != edgeTable[c] {
			t.Errorf("config %d: triangles use edges %#03x, edge table has %#03x", c, used, edgeTable[c])
		}
		for i := 3 * n; i < len(row); i++ {
			if row[i] != edgeSentinel {
				t.Errorf("config %d: entry %d after the sentinel is %d", c, i, row[i])
			}
		}
	}
}

func TestEdgeTableMatchesCorners(t *testing.T) {
	for c := 0; c < 256; c++ {
		var want uint16
		for e, pair := range edgeCorners {
			if (c>>pair[0])&1 != (c>>pair[1])&1 {
				want |= 1 << e
			}
		}
		if edgeTable[c] != want {
			t.Errorf("edgeTable[%d] = %#03x, want %#03x", c, edgeTable[c], want)
		}
	}
}

func TestEdgeCornersAreAdjacent(t *testing.T) {
	for e, pair := range edgeCorners {
		a, b := canonicalOffset[pair[0]], canonicalOffset[pair[1]]
		diff := 0
		for d := 0; d < 3; d++ {
			if a[d] != b[d] {
				diff++
			}
		}
		if diff != 1 {
			t.Errorf("edge %d joins corners %v and %v, not adjacent", e, a, b)
		}
	}
}

func TestNaturalToCanonical(t *testing.T) {
	seen := make(map[uint8]bool)
	for n := 0; n < 8; n++ {
		c := naturalToCanonical[n]
		if seen[c] {
			t.Fatalf("canonical corner %d mapped twice", c)
		}
		seen[c] = true
		if got, want := canonicalOffset[c], naturalOffset(n); got != want {
			t.Errorf("natural corner %d at %v maps to canonical %d at %v", n, want, c, got)
		}
	}
}

func TestConfiguration(t *testing.T) {
	var natural [8]bool
	if got := configuration(natural); got != 0 {
		t.Errorf("empty = %d", got)
	}
	natural[2] = true // (0,1,0) is canonical corner 3
	if got := configuration(natural); got != 1<<3 {
		t.Errorf("natural corner 2 = %#x, want %#x", got, 1<<3)
	}
	for i := range natural {
		natural[i] = true
	}
	if got := configuration(natural); got != 255 {
		t.Errorf("full = %d", got)
	}
}
