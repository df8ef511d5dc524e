// Package graph runs the enrichment pass over a built catalog: it attaches
// members to their owning containers and turns the raw extends/implements
// names collected at parse time into entity links.
//
// Interface sets are flattened transitively. Recursion keeps the ids on the
// current path and refuses to re-enter one, so a cyclic interface graph is
// reported as a CycleError instead of recursing forever.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
)

// CycleError reports an extends/implements chain that returns to an
// entity already on the resolution path. Path starts and ends with its id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: inheritance cycle %s", strings.Join(e.Path, " -> "))
}

// Relation names the kind of reference that failed to resolve.
type Relation string

const (
	RelationOwner     Relation = "owner"
	RelationParent    Relation = "extends"
	RelationInterface Relation = "implements"
)

// Unresolved is a raw reference with no matching declaration.
type Unresolved struct {
	From     *entity.Entity
	Name     string
	Relation Relation
	Err      error
}

func (u Unresolved) Error() string {
	msg := fmt.Sprintf("graph: %s %s %q: not found", u.From, u.Relation, u.Name)
	if u.Err != nil {
		msg = fmt.Sprintf("graph: %s %s %q: %v", u.From, u.Relation, u.Name, u.Err)
	}
	return msg
}

func (u Unresolved) Unwrap() error { return u.Err }

// Result summarizes an enrichment pass.
type Result struct {
	Attached   int
	Duplicated int // member ids declared more than once in one owner
	Links      int
	Unresolved []Unresolved
	Cycles     []*CycleError
}

// Errs returns every problem found as a slice of errors.
func (r *Result) Errs() []error {
	var errs []error
	for _, u := range r.Unresolved {
		errs = append(errs, u)
	}
	for _, c := range r.Cycles {
		errs = append(errs, c)
	}
	return errs
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for unresolved references.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver links the entities of one catalog. It must run while the catalog
// is still building.
type Resolver struct {
	cat    *catalog.Catalog
	logger *slog.Logger

	// direct holds the resolved, unflattened interface links per entity hash.
	direct map[string][]*entity.Entity
	cycles map[string]bool
	result Result
}

// New returns a Resolver over cat.
func New(cat *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		cat:    cat,
		logger: slog.Default(),
		direct: make(map[string][]*entity.Entity),
		cycles: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run attaches members and resolves inheritance. It stops early when ctx
// is done.
func (r *Resolver) Run(ctx context.Context, members []*entity.Entity) (*Result, error) {
	if r.cat.State() == catalog.StateFrozen {
		return nil, fmt.Errorf("graph: enrich: %w", catalog.ErrFrozen)
	}
	if err := r.AttachMembers(ctx, members); err != nil {
		return nil, err
	}
	if err := r.ResolveInheritance(ctx); err != nil {
		return nil, err
	}
	return &r.result, nil
}

// AttachMembers adds each member to its owning container. The owner is
// found by hash when extraction saw it in the same file, otherwise by id.
// Same-named members of one owner whose windows intersect are flagged as
// duplicate conflicts.
func (r *Resolver) AttachMembers(ctx context.Context, members []*entity.Entity) error {
	for i, m := range members {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("graph: attach members: %w", err)
			}
		}
		owner, err := r.findOwner(m)
		if err != nil || owner == nil {
			r.unresolved(m, m.OwnerID, RelationOwner, err)
			continue
		}
		prior := owner.MembersNamed(m.Kind, m.Name)
		if err := owner.AddMember(m); err != nil {
			r.unresolved(m, m.OwnerID, RelationOwner, err)
			continue
		}
		// Method and constant windows fold in the owner's bounds, so
		// overlap is only meaningful once m.Owner is set.
		for _, p := range prior {
			if r.cat.Resolver().Overlap(p, m) {
				p.MarkDuplicateConflict(m)
			}
		}
		if _, err := r.cat.RegisterMember(m); err != nil {
			return fmt.Errorf("graph: attach members: %w", err)
		}
		if len(prior) == 1 {
			r.result.Duplicated++
		}
		r.result.Attached++
	}
	return nil
}

func (r *Resolver) findOwner(m *entity.Entity) (*entity.Entity, error) {
	if m.OwnerHash != "" {
		if owner := r.cat.GetByHash(m.OwnerHash); owner != nil {
			return owner, nil
		}
	}
	owner, err := r.cat.GetType(m.OwnerID, catalog.AnyVersion(), catalog.InSourceFile(m.SourcePath))
	if err != nil || owner != nil {
		return owner, err
	}
	return r.cat.GetType(m.OwnerID)
}

// ResolveInheritance links parents and interfaces for every class-like
// entity and flattens interface sets.
func (r *Resolver) ResolveInheritance(ctx context.Context) error {
	var types []*entity.Entity
	for _, k := range []entity.Kind{entity.KindClass, entity.KindInterface, entity.KindEnum} {
		types = append(types, r.cat.Container(k).All()...)
	}

	for _, e := range types {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("graph: resolve inheritance: %w", err)
		}
		r.linkDirect(e)
	}
	for _, e := range types {
		e.Interfaces = r.flatten(e)
		if e.Kind == entity.KindClass {
			r.checkParentChain(e)
		}
	}
	return nil
}

// checkParentChain reports a class whose extends chain loops back.
func (r *Resolver) checkParentChain(e *entity.Entity) {
	var path []*entity.Entity
	onPath := make(map[string]bool)
	for c := e; c != nil; c = c.Parent {
		if onPath[c.Hash] {
			r.cycle(path, c)
			return
		}
		onPath[c.Hash] = true
		path = append(path, c)
	}
}

// linkDirect resolves e's own extends and implements names. Interfaces
// extend interfaces, so their parents land in the interface set.
func (r *Resolver) linkDirect(e *entity.Entity) {
	if e.ParentName != "" {
		want := entity.KindClass
		if e.Kind == entity.KindInterface {
			want = entity.KindInterface
		}
		if p := r.lookup(e, want, e.ParentName, RelationParent); p != nil {
			if want == entity.KindInterface {
				r.direct[e.Hash] = append(r.direct[e.Hash], p)
			} else {
				e.Parent = p
			}
			r.result.Links++
		}
	}
	for _, name := range e.InterfaceNames {
		if i := r.lookup(e, entity.KindInterface, name, RelationInterface); i != nil {
			r.direct[e.Hash] = append(r.direct[e.Hash], i)
			r.result.Links++
		}
	}
}

// lookup resolves name for from. Declarations outside the core surface are
// scoped to their own source file. A name missing in the current version
// falls back to any version.
func (r *Resolver) lookup(from *entity.Entity, kind entity.Kind, name string, rel Relation) *entity.Entity {
	name = strings.TrimPrefix(name, `\`)
	var opts []catalog.LookupOption
	if !from.Core {
		opts = append(opts, catalog.InSourceFile(from.SourcePath))
	}
	target, err := r.cat.Get(kind, name, opts...)
	if err == nil && target == nil {
		target, err = r.cat.Get(kind, name, append(opts, catalog.AnyVersion())...)
	}
	if err != nil || target == nil {
		r.unresolved(from, name, rel, err)
		return nil
	}
	return target
}

// flatten returns the transitive interface set of root. The walk keeps the
// entities on the current path and never re-enters one of them.
func (r *Resolver) flatten(root *entity.Entity) []*entity.Entity {
	var (
		out    []*entity.Entity
		path   []*entity.Entity
		seen   = map[string]bool{root.Hash: true}
		onPath = make(map[string]bool)
	)
	var walk func(e *entity.Entity)
	walk = func(e *entity.Entity) {
		onPath[e.Hash] = true
		path = append(path, e)
		for _, d := range r.direct[e.Hash] {
			if onPath[d.Hash] {
				r.cycle(path, d)
				continue
			}
			if seen[d.Hash] {
				continue
			}
			seen[d.Hash] = true
			out = append(out, d)
			walk(d)
		}
		path = path[:len(path)-1]
		onPath[e.Hash] = false
	}
	walk(root)
	return out
}

// cycle records the loop closed by reaching back to target. Each loop is
// reported once however many roots reach it.
func (r *Resolver) cycle(path []*entity.Entity, target *entity.Entity) {
	start := 0
	for i, e := range path {
		if e.Hash == target.Hash {
			start = i
			break
		}
	}
	loop := path[start:]
	// Rotate to the smallest hash so every traversal produces the same key.
	first := 0
	for i, e := range loop {
		if e.Hash < loop[first].Hash {
			first = i
		}
	}
	var key strings.Builder
	ids := make([]string, 0, len(loop)+1)
	for i := range loop {
		e := loop[(first+i)%len(loop)]
		key.WriteString(e.Hash)
		key.WriteByte('/')
		ids = append(ids, e.ID)
	}
	if r.cycles[key.String()] {
		return
	}
	r.cycles[key.String()] = true
	ids = append(ids, ids[0])
	r.result.Cycles = append(r.result.Cycles, &CycleError{Path: ids})
	r.logger.Warn("inheritance cycle", slog.String("path", strings.Join(ids, " -> ")))
}

func (r *Resolver) unresolved(from *entity.Entity, name string, rel Relation, err error) {
	r.result.Unresolved = append(r.result.Unresolved, Unresolved{From: from, Name: name, Relation: rel, Err: err})
	attrs := []any{
		slog.String("entity", from.ID),
		slog.String("relation", string(rel)),
		slog.String("name", name),
		slog.String("file", from.SourcePath),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.logger.Debug("unresolved reference", attrs...)
}

// AllInterfaces returns every interface e implements, including those
// inherited through its parent class chain.
func AllInterfaces(e *entity.Entity) []*entity.Entity {
	var out []*entity.Entity
	seen := make(map[string]bool)
	for _, c := range Ancestors(e) {
		for _, i := range c.Interfaces {
			if !seen[i.Hash] {
				seen[i.Hash] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// Ancestors returns e followed by its parent class chain. A cyclic chain
// stops at the first repeated entity.
func Ancestors(e *entity.Entity) []*entity.Entity {
	var out []*entity.Entity
	seen := make(map[string]bool)
	for c := e; c != nil && !seen[c.Hash]; c = c.Parent {
		seen[c.Hash] = true
		out = append(out, c)
	}
	return out
}

// IsCycle reports whether err is or wraps a *CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
