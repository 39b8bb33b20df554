package predicate

import (
	"fmt"
	"sort"
	"sync"
)

// Assignment maps fragment ids (the labels stored in the volume) to segment
// ids. Unassigned fragments are their own segment. It is safe for concurrent
// use; edits made while blocks are being meshed are visible to later lookups
// only, so callers that need a consistent surface should re-extract.
type Assignment struct {
	mu       sync.RWMutex
	segments map[uint64]uint64
}

// NewAssignment returns an empty assignment.
func NewAssignment() *Assignment {
	return &Assignment{segments: make(map[uint64]uint64)}
}

// Assign moves a fragment into the segment containing segment.
func (a *Assignment) Assign(fragment, segment uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	segment = a.resolve(segment)
	if fragment == segment {
		delete(a.segments, fragment)
		return
	}
	a.segments[fragment] = segment
}

// Merge moves every fragment of the segment containing from into the segment
// containing into.
func (a *Assignment) Merge(from, into uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	from, into = a.resolve(from), a.resolve(into)
	if from == into {
		return
	}
	for f, s := range a.segments {
		if s == from {
			a.segments[f] = into
		}
	}
	a.segments[from] = into
}

// resolve follows fragment to the root of its chain. Assign and Merge only
// link to roots, so chains are acyclic; the step bound is a guard.
func (a *Assignment) resolve(fragment uint64) uint64 {
	for steps := 0; steps <= len(a.segments); steps++ {
		s, ok := a.segments[fragment]
		if !ok {
			return fragment
		}
		fragment = s
	}
	return fragment
}

// Detach makes a fragment its own segment again.
func (a *Assignment) Detach(fragment uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.segments, fragment)
}

// SegmentOf returns the segment a fragment belongs to.
func (a *Assignment) SegmentOf(fragment uint64) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolve(fragment)
}

// Fragments returns the explicitly assigned fragments resolving to segment
// in ascending order, plus the segment id itself when it is not assigned
// elsewhere.
func (a *Assignment) Fragments(segment uint64) []uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []uint64
	if _, ok := a.segments[segment]; !ok {
		out = append(out, segment)
	}
	for f := range a.segments {
		if a.resolve(f) == segment {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type segmentPredicate struct {
	a  *Assignment
	id uint64
}

func (p segmentPredicate) Test(label uint64) (bool, error) {
	return p.a.SegmentOf(label) == p.id, nil
}

func (p segmentPredicate) String() string {
	return fmt.Sprintf("segment == %d", p.id)
}

// Segment is foreground for every fragment that resolves to segment id.
func Segment(a *Assignment, id uint64) Predicate {
	return segmentPredicate{a: a, id: id}
}
