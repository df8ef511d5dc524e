// Package compare reconciles the declaration catalog against the reference
// catalog and reports structural discrepancies as verdicts.
package compare

import (
	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// IsMuted reports whether problem p is accepted for e at version v.
func IsMuted(e *entity.Entity, p entity.ProblemKind, v version.Version) bool {
	if e == nil || e.Muted == nil {
		return false
	}
	return e.Muted.Covers(p, v)
}

// Pair is a top-level entity, or one of its members when Child is set.
type Pair struct {
	Container *entity.Entity
	Child     *entity.Entity
}

// Subject is the entity the pair is about.
func (p Pair) Subject() *entity.Entity {
	if p.Child != nil {
		return p.Child
	}
	return p.Container
}

// IsMember reports whether the pair names a member.
func (p Pair) IsMember() bool { return p.Child != nil }

// Strategy selects the pairs of a catalog that are under test.
type Strategy interface {
	Select(cat *catalog.Catalog, p Pair) bool
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(cat *catalog.Catalog, p Pair) bool

func (f StrategyFunc) Select(cat *catalog.Catalog, p Pair) bool { return f(cat, p) }

// Where adapts a predicate that needs no catalog.
func Where(pred func(Pair) bool) Strategy {
	return StrategyFunc(func(_ *catalog.Catalog, p Pair) bool { return pred(p) })
}

// All selects the pairs every strategy selects.
func All(strategies ...Strategy) Strategy {
	return StrategyFunc(func(cat *catalog.Catalog, p Pair) bool {
		for _, s := range strategies {
			if s != nil && !s.Select(cat, p) {
				return false
			}
		}
		return true
	})
}

// DefaultStrategy selects pairs whose container and member are both
// available in the catalog's current version.
var DefaultStrategy Strategy = StrategyFunc(availableNow)

func availableNow(cat *catalog.Catalog, p Pair) bool {
	r, v := cat.Resolver(), cat.Current()
	if p.Container != nil && !r.AvailableIn(p.Container, v) {
		return false
	}
	return p.Child == nil || r.AvailableIn(p.Child, v)
}

// CoreOnly selects pairs whose subject belongs to the core surface.
var CoreOnly Strategy = Where(func(p Pair) bool { return p.Subject().Core })

// Filter enumerates the top-level entities of the given kind that s selects
// and that are not muted for problem at the current version.
func Filter(cat *catalog.Catalog, kind entity.Kind, problem entity.ProblemKind, s Strategy) []Pair {
	var out []Pair
	if !kind.TopLevel() {
		return nil
	}
	for _, e := range cat.Container(kind).All() {
		if p := (Pair{Container: e}); keep(cat, p, problem, s) {
			out = append(out, p)
		}
	}
	return out
}

// Members pairs every class, interface and enum of cat with its members of
// the given kind, keeping the pairs s selects that are not muted for
// problem. A muted container mutes its members.
func Members(cat *catalog.Catalog, kind entity.Kind, problem entity.ProblemKind, s Strategy) []Pair {
	var out []Pair
	for _, k := range containerKinds {
		for _, c := range cat.Container(k).All() {
			for _, m := range c.MembersOf(kind) {
				if p := (Pair{Container: c, Child: m}); keep(cat, p, problem, s) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func keep(cat *catalog.Catalog, p Pair, problem entity.ProblemKind, s Strategy) bool {
	if s == nil {
		s = DefaultStrategy
	}
	if problem != "" && (IsMuted(p.Container, problem, cat.Current()) || IsMuted(p.Child, problem, cat.Current())) {
		return false
	}
	return s.Select(cat, p)
}

// Entities returns every top-level entity and member that Filter and
// Members would keep.
func Entities(cat *catalog.Catalog, problem entity.ProblemKind, s Strategy) []*entity.Entity {
	var out []*entity.Entity
	for _, k := range entity.TopLevelKinds {
		for _, p := range Filter(cat, k, problem, s) {
			out = append(out, p.Subject())
		}
	}
	for _, k := range memberKinds {
		for _, p := range Members(cat, k, problem, s) {
			out = append(out, p.Subject())
		}
	}
	return out
}

var (
	containerKinds = []entity.Kind{entity.KindClass, entity.KindInterface, entity.KindEnum}
	memberKinds    = []entity.Kind{entity.KindMethod, entity.KindProperty, entity.KindConstant, entity.KindEnumCase}
)
