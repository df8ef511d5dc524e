// Package availability computes the inclusive window of platform versions
// for which a declaration is authoritative.
//
// Bounds are gathered from documentation tags, explicit range attributes,
// and the owning container for methods and class constants. Lower bounds
// combine by minimum, upper bounds by minimum, and an upper bound from the
// range attribute replaces the documentation-derived one outright.
package availability

import (
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// Resolver resolves availability against a fixed release sequence. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	seq *version.Sequence
}

// New returns a Resolver for seq.
func New(seq *version.Sequence) *Resolver {
	return &Resolver{seq: seq}
}

// Sequence returns the release sequence the resolver filters.
func (r *Resolver) Sequence() *version.Sequence { return r.seq }

// LowerBound returns the first version e is available in, or false when
// nothing constrains it and the sequence minimum applies.
func (r *Resolver) LowerBound(e *entity.Entity) (version.Version, bool) {
	if e.HasInheritDoc {
		return "", false
	}
	var (
		best  version.Version
		found bool
	)
	for c := e; c != nil; c = foldedOwner(c) {
		for _, v := range lowerCandidates(c) {
			if !found || v.Less(best) {
				best, found = v, true
			}
		}
	}
	return best, found
}

// lowerCandidates lists the since versions an entity itself declares. Doc
// tags count only for the core surface.
func lowerCandidates(e *entity.Entity) []version.Version {
	var out []version.Version
	if e.Core {
		out = append(out, e.Doc.Since...)
	}
	if e.Range.From != "" {
		out = append(out, e.Range.From)
	}
	return out
}

// foldedOwner returns the container whose bounds also constrain e. Only
// methods and class constants inherit their owner's window.
func foldedOwner(e *entity.Entity) *entity.Entity {
	if e.Kind == entity.KindMethod || e.Kind == entity.KindConstant {
		return e.Owner
	}
	return nil
}

// UpperBound returns the last version e is available in, or false when
// nothing constrains it and the sequence maximum applies.
func (r *Resolver) UpperBound(e *entity.Entity) (version.Version, bool) {
	if e.HasInheritDoc {
		return "", false
	}
	var (
		best  version.Version
		found bool
	)
	for c := e; c != nil; c = foldedOwner(c) {
		if v, ok := r.ownUpper(c); ok && (!found || v.Less(best)) {
			best, found = v, true
		}
	}
	return best, found
}

// ownUpper is the upper bound an entity declares itself. The range
// attribute wins over removal tags; a removal maps to the release before it.
func (r *Resolver) ownUpper(e *entity.Entity) (version.Version, bool) {
	if e.Range.To != "" {
		return e.Range.To, true
	}
	var (
		best  version.Version
		found bool
	)
	for _, removed := range e.Doc.Removed {
		last, ok := r.seq.Before(removed)
		if !ok {
			last = version.Zero
		}
		if !found || last.Less(best) {
			best, found = last, true
		}
	}
	return best, found
}

// Versions returns the releases e is available in, oldest first. The result
// is always a contiguous run of the sequence.
func (r *Resolver) Versions(e *entity.Entity) []version.Version {
	lo, ok := r.LowerBound(e)
	if !ok {
		lo = r.seq.Min()
	}
	hi, ok := r.UpperBound(e)
	if !ok {
		hi = r.seq.Max()
	}
	return r.seq.Between(lo, hi)
}

// AvailableIn reports whether e is available in v.
func (r *Resolver) AvailableIn(e *entity.Entity, v version.Version) bool {
	for _, x := range r.Versions(e) {
		if x.Compare(v) == 0 {
			return true
		}
	}
	return false
}

// Overlap reports whether a and b share at least one available version.
func (r *Resolver) Overlap(a, b *entity.Entity) bool {
	return version.Intersects(r.Versions(a), r.Versions(b))
}
