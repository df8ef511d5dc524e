package stubcat

import (
	"context"
	"fmt"

	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
	"github.com/jward/stubcat/internal/version"
)

// QueryBuilder answers lookups against the frozen catalog of the last Build.
type QueryBuilder struct {
	e   *Engine
	cat *catalog.Catalog
}

// Query returns a QueryBuilder over the built catalog. It fails with
// ErrNotBuilt before the first successful Build.
func (e *Engine) Query() (*QueryBuilder, error) {
	if e.cat == nil {
		return nil, ErrNotBuilt
	}
	return &QueryBuilder{e: e, cat: e.cat}, nil
}

// LookupOptions narrow a lookup. Zero value means "the variant available in
// the current version".
type LookupOptions struct {
	SourceFile string
	AnyVersion bool
	AtVersion  version.Version
}

func (o LookupOptions) options() []catalog.LookupOption {
	var opts []catalog.LookupOption
	if o.SourceFile != "" {
		opts = append(opts, catalog.InSourceFile(o.SourceFile))
	}
	if o.AnyVersion {
		opts = append(opts, catalog.AnyVersion())
	}
	if o.AtVersion != "" {
		opts = append(opts, catalog.AtVersion(o.AtVersion))
	}
	return opts
}

// Lookup returns the declaration of kind with the given id. A nil entity
// and nil error means nothing matched; an *catalog.AmbiguousLookupError
// means more than one variant did.
func (q *QueryBuilder) Lookup(kind entity.Kind, id string, o LookupOptions) (*Entity, error) {
	if !kind.TopLevel() {
		return nil, fmt.Errorf("lookup: %s is not a top-level kind", kind)
	}
	return q.cat.Get(kind, id, o.options()...)
}

// LookupType searches classes, interfaces and enums for id.
func (q *QueryBuilder) LookupType(id string, o LookupOptions) (*Entity, error) {
	return q.cat.GetType(id, o.options()...)
}

// Versions returns the releases e is available in, oldest first.
func (q *QueryBuilder) Versions(e *Entity) []Version {
	return q.cat.Resolver().Versions(e)
}

// Hierarchy returns e, its parent chain and every interface it implements.
func (q *QueryBuilder) Hierarchy(e *Entity) (ancestors, interfaces []*Entity) {
	return graph.Ancestors(e), graph.AllInterfaces(e)
}

// Variant is one stored declaration of a duplicated id.
type Variant struct {
	Key      string
	Path     string
	Line     int
	Versions []Version
	Conflict bool
}

// DuplicateGroup lists every stored variant of one id.
type DuplicateGroup struct {
	Kind     entity.Kind
	ID       string
	Variants []Variant
}

// Conflicts reports whether any two variants of the group overlap.
func (g DuplicateGroup) Conflicts() bool {
	for _, v := range g.Variants {
		if v.Conflict {
			return true
		}
	}
	return false
}

// Variants returns every stored declaration of id, in insertion order. Ids
// declared once yield a single variant.
func (q *QueryBuilder) Variants(kind entity.Kind, id string) ([]Variant, error) {
	if !kind.TopLevel() {
		return nil, fmt.Errorf("variants: %s is not a top-level kind", kind)
	}
	return q.variants(q.cat.Container(kind), id), nil
}

func (q *QueryBuilder) variants(cont *catalog.Container, id string) []Variant {
	keys := make(map[string]string)
	for _, en := range cont.Entries() {
		if en.Entity.ID == id {
			keys[en.Entity.Hash] = en.Key
		}
	}
	r := q.cat.Resolver()
	var out []Variant
	for _, v := range cont.Variants(id) {
		out = append(out, Variant{
			Key:      keys[v.Hash],
			Path:     v.SourcePath,
			Line:     v.Line,
			Versions: r.Versions(v),
			Conflict: v.DuplicateConflict,
		})
	}
	return out
}

// Duplicates returns the ids declared more than once, grouped by kind in
// catalog order. A zero kind lists every top-level kind.
func (q *QueryBuilder) Duplicates(kind entity.Kind) []DuplicateGroup {
	kinds := entity.TopLevelKinds
	if kind != 0 {
		kinds = []entity.Kind{kind}
	}
	var groups []DuplicateGroup
	for _, k := range kinds {
		cont := q.cat.Container(k)
		if cont == nil {
			continue
		}
		for _, id := range cont.Duplicated() {
			groups = append(groups, DuplicateGroup{Kind: k, ID: id, Variants: q.variants(cont, id)})
		}
	}
	return groups
}

// Match returns every top-level entity and member for which the Risor
// expression evaluates to true, in catalog order.
func (q *QueryBuilder) Match(ctx context.Context, expr string) ([]*Entity, error) {
	pred, err := q.e.newRuntime().Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	var out []*Entity
	for _, top := range q.cat.All() {
		for _, e := range append([]*Entity{top}, top.Members...) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			ok, err := pred.Match(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			if ok {
				out = append(out, e)
			}
		}
	}
	return out, nil
}
