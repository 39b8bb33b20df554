// Package predicate provides foreground tests over voxel labels. A
// Predicate decides, per label, whether a voxel belongs to the object being
// meshed. Predicates are called from many block pipelines at once and must
// be safe for concurrent use.
package predicate

import "fmt"

// Predicate classifies a voxel label as foreground or background.
type Predicate interface {
	Test(label uint64) (bool, error)
}

// Func adapts a plain function to the Predicate interface.
type Func func(label uint64) (bool, error)

// Test calls f(label).
func (f Func) Test(label uint64) (bool, error) {
	return f(label)
}

type equal uint64

func (e equal) Test(label uint64) (bool, error) { return label == uint64(e), nil }
func (e equal) String() string                  { return fmt.Sprintf("label == %d", uint64(e)) }

// Equal is foreground for exactly one label.
func Equal(id uint64) Predicate {
	return equal(id)
}

type greaterEqual uint64

func (g greaterEqual) Test(label uint64) (bool, error) { return label >= uint64(g), nil }
func (g greaterEqual) String() string                  { return fmt.Sprintf("label >= %d", uint64(g)) }

// GreaterEqual is foreground for every label at or above threshold.
func GreaterEqual(threshold uint64) Predicate {
	return greaterEqual(threshold)
}

type valueRange struct {
	lo, hi uint64
}

func (r valueRange) Test(label uint64) (bool, error) { return label >= r.lo && label <= r.hi, nil }
func (r valueRange) String() string                  { return fmt.Sprintf("%d <= label <= %d", r.lo, r.hi) }

// Range is foreground for labels in [lo, hi].
func Range(lo, hi uint64) (Predicate, error) {
	if hi < lo {
		return nil, fmt.Errorf("predicate: empty range [%d, %d]", lo, hi)
	}
	return valueRange{lo: lo, hi: hi}, nil
}

type always bool

func (a always) Test(uint64) (bool, error) { return bool(a), nil }
func (a always) String() string            { return fmt.Sprintf("always %t", bool(a)) }

// Always returns a constant predicate.
func Always(v bool) Predicate {
	return always(v)
}

// Not inverts p. Errors pass through.
func Not(p Predicate) Predicate {
	return Func(func(label uint64) (bool, error) {
		v, err := p.Test(label)
		if err != nil {
			return false, err
		}
		return !v, nil
	})
}

// And is foreground when every predicate is. It stops at the first false
// result or error; with no predicates it is always foreground.
func And(ps ...Predicate) Predicate {
	return Func(func(label uint64) (bool, error) {
		for _, p := range ps {
			v, err := p.Test(label)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	})
}

// Or is foreground when any predicate is. It stops at the first true result
// or error; with no predicates it is never foreground.
func Or(ps ...Predicate) Predicate {
	return Func(func(label uint64) (bool, error) {
		for _, p := range ps {
			v, err := p.Test(label)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	})
}
