package config

import (
	"fmt"
	"slices"

	"github.com/chazu/labelmesh/pkg/predicate"
	"github.com/samber/lo"
)

// ObjectIDs returns the objects to mesh. Explicit Objects win. Otherwise
// the equal kind meshes every label in labels, the segment kind every
// distinct segment those labels resolve to, and the remaining kinds define
// a single object 0.
func (p PredicateConfig) ObjectIDs(labels []uint64) []uint64 {
	if len(p.Objects) > 0 {
		return p.Objects
	}
	switch p.Kind {
	case PredicateEqual:
		return labels
	case PredicateSegment:
		a := p.Assignments()
		return lo.Uniq(lo.Map(labels, func(l uint64, _ int) uint64 { return a.SegmentOf(l) }))
	default:
		return []uint64{0}
	}
}

// Assignments builds the fragment-to-segment table. Entries are applied in
// ascending fragment order.
func (p PredicateConfig) Assignments() *predicate.Assignment {
	a := predicate.NewAssignment()
	fragments := lo.Keys(p.Assignment)
	slices.Sort(fragments)
	for _, fragment := range fragments {
		a.Assign(fragment, p.Assignment[fragment])
	}
	return a
}

// Builder returns a function that builds the predicate for one object.
// Shared state such as the assignment table is built once.
func (p PredicateConfig) Builder() func(id uint64) (predicate.Predicate, error) {
	switch p.Kind {
	case PredicateEqual:
		return func(id uint64) (predicate.Predicate, error) { return predicate.Equal(id), nil }
	case PredicateGreaterEqual:
		return func(uint64) (predicate.Predicate, error) { return predicate.GreaterEqual(p.Threshold), nil }
	case PredicateRange:
		return func(uint64) (predicate.Predicate, error) { return predicate.Range(p.Lo, p.Hi) }
	case PredicateSegment:
		a := p.Assignments()
		return func(id uint64) (predicate.Predicate, error) { return predicate.Segment(a, id), nil }
	case PredicateScript:
		a := p.Assignments()
		return func(uint64) (predicate.Predicate, error) {
			return predicate.NewScript(p.Script, predicate.WithAssignment(a))
		}
	default:
		return func(uint64) (predicate.Predicate, error) {
			return nil, fmt.Errorf("%w: predicate.kind %q", ErrInvalid, p.Kind)
		}
	}
}
