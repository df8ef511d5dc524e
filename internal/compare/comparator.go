package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
)

// LinkChecker reports the documentation links that could not be reached.
// Reachable links are absent from the result.
type LinkChecker interface {
	Check(ctx context.Context, urls []string) map[string]error
}

// Comparator checks a frozen declaration catalog against a frozen reference
// catalog built for the same current version.
type Comparator struct {
	decls    *catalog.Catalog
	ref      *catalog.Catalog
	strategy Strategy
	links    LinkChecker
	logger   *slog.Logger

	verdicts map[verdictKey]*Verdict
}

type verdictKey struct {
	kind entity.Kind
	id   string
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithStrategy replaces DefaultStrategy. The strategy is applied to the
// reference pairs that get compared and to the declarations that get
// checked on their own.
func WithStrategy(s Strategy) Option {
	return func(c *Comparator) {
		if s != nil {
			c.strategy = s
		}
	}
}

// WithLinkChecker enables broken-link checks.
func WithLinkChecker(l LinkChecker) Option {
	return func(c *Comparator) { c.links = l }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) { c.logger = l }
}

// New returns a Comparator. Both catalogs must be frozen.
func New(decls, ref *catalog.Catalog, opts ...Option) (*Comparator, error) {
	if decls == nil || ref == nil {
		return nil, errors.New("compare: nil catalog")
	}
	if decls.State() != catalog.StateFrozen || ref.State() != catalog.StateFrozen {
		return nil, errors.New("compare: catalogs must be frozen")
	}
	if decls.Current() != ref.Current() {
		return nil, fmt.Errorf("compare: declarations are at %s, reference at %s", decls.Current(), ref.Current())
	}
	c := &Comparator{
		decls:    decls,
		ref:      ref,
		strategy: DefaultStrategy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compare runs every check and returns one verdict per reference entity
// plus one per declaration with problems of its own.
func (c *Comparator) Compare(ctx context.Context) (*Report, error) {
	c.verdicts = make(map[verdictKey]*Verdict)

	for _, kind := range entity.TopLevelKinds {
		for _, p := range Filter(c.ref, kind, "", c.strategy) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("compare: %w", err)
			}
			c.compareTopLevel(p.Container)
		}
	}

	c.checkDeclarations()
	if c.links != nil {
		if err := c.checkLinks(ctx); err != nil {
			return nil, err
		}
	}

	report := &Report{Version: c.decls.Current()}
	for _, v := range c.verdicts {
		report.Verdicts = append(report.Verdicts, v)
	}
	report.sort()
	c.logger.Debug("comparison finished",
		"version", report.Version.String(),
		"verdicts", len(report.Verdicts),
		"failures", len(report.Failures()))
	return report, nil
}

func (c *Comparator) verdict(e *entity.Entity) *Verdict {
	top := e.Container()
	key := verdictKey{kind: top.Kind, id: top.ID}
	v, ok := c.verdicts[key]
	if !ok {
		v = &Verdict{ID: top.ID, Kind: top.Kind}
		c.verdicts[key] = v
	}
	if v.SourcePath == "" && c.isDecl(top) {
		v.SourcePath, v.Line = top.SourcePath, top.Line
	}
	return v
}

func (c *Comparator) isDecl(e *entity.Entity) bool {
	return c.decls.GetByHash(e.Hash) == e
}

// report adds p to v unless one of the entities involved, or its owner,
// mutes p.
func (c *Comparator) report(v *Verdict, p Problem, involved ...*entity.Entity) {
	cur := c.decls.Current()
	for _, e := range involved {
		if e == nil {
			continue
		}
		if IsMuted(e, p.Kind, cur) || IsMuted(e.Owner, p.Kind, cur) {
			return
		}
	}
	v.Problems = append(v.Problems, p)
}

func (c *Comparator) compareTopLevel(ref *entity.Entity) {
	v := c.verdict(ref)
	decl, err := c.decls.Get(ref.Kind, ref.ID)
	if err != nil {
		c.report(v, ambiguous(err, ""), ref)
		return
	}
	if decl == nil {
		c.report(v, Problem{Kind: entity.ProblemMissing, Detail: c.missingDetail(ref)}, ref)
		return
	}
	v.SourcePath, v.Line = decl.SourcePath, decl.Line

	switch ref.Kind {
	case entity.KindFunction:
		c.checkCallable(v, "", decl, ref)
	case entity.KindConstant:
		c.checkValue(v, "", decl, ref)
	default:
		c.checkContainer(v, decl, ref)
	}
}

// missingDetail explains a missing declaration, naming a same-id
// declaration of another kind or one outside the current version.
func (c *Comparator) missingDetail(ref *entity.Entity) string {
	if ref.Kind.IsContainer() {
		if other, err := c.decls.GetType(ref.ID); err == nil && other != nil {
			return fmt.Sprintf("declared as %s, reference has %s", other.Kind, ref.Kind)
		}
	}
	if vs, err := c.decls.Get(ref.Kind, ref.ID, catalog.AnyVersion()); vs != nil || err != nil {
		return fmt.Sprintf("not available in %s", c.decls.Current())
	}
	return "no declaration"
}

func ambiguous(err error, member string) Problem {
	p := Problem{Kind: entity.ProblemAmbiguousDeclaration, Member: member, Err: err}
	var amb *catalog.AmbiguousLookupError
	if errors.As(err, &amb) {
		p.Detail = fmt.Sprintf("%d candidates in %v", len(amb.Candidates), amb.Candidates)
	} else {
		p.Detail = err.Error()
	}
	return p
}

func (c *Comparator) checkContainer(v *Verdict, decl, ref *entity.Entity) {
	if ref.Kind == entity.KindClass {
		c.checkFlag(v, "", entity.ProblemWrongFinal, "final", decl.IsFinal, ref.IsFinal, decl, ref)
		c.checkFlag(v, "", entity.ProblemWrongAbstract, "abstract", decl.IsAbstract, ref.IsAbstract, decl, ref)
		c.checkFlag(v, "", entity.ProblemWrongReadonly, "readonly", decl.IsReadonly, ref.IsReadonly, decl, ref)
		c.checkParent(v, decl, ref)
	}
	c.checkNamespace(v, decl, ref)
	c.checkInterfaces(v, decl, ref)

	for _, kind := range memberKinds {
		for _, m := range ref.MembersOf(kind) {
			if !c.strategy.Select(c.ref, Pair{Container: ref, Child: m}) {
				continue
			}
			c.compareMember(v, decl, m)
		}
	}
}

func (c *Comparator) compareMember(v *Verdict, owner, ref *entity.Entity) {
	label := memberLabel(ref)
	decl, err := c.findMember(owner, ref.Kind, ref.Name)
	if err != nil {
		c.report(v, ambiguous(err, label), ref, owner)
		return
	}
	if decl == nil {
		c.report(v, Problem{Kind: entity.ProblemMissing, Member: label, Detail: "no declaration"}, ref, owner)
		return
	}

	switch ref.Kind {
	case entity.KindMethod:
		c.checkVisibility(v, label, decl, ref)
		c.checkFlag(v, label, entity.ProblemWrongStatic, "static", decl.IsStatic, ref.IsStatic, decl, ref)
		c.checkFlag(v, label, entity.ProblemWrongFinal, "final", decl.IsFinal, ref.IsFinal, decl, ref)
		if ref.Owner != nil && ref.Owner.Kind == entity.KindClass {
			c.checkFlag(v, label, entity.ProblemWrongAbstract, "abstract", decl.IsAbstract, ref.IsAbstract, decl, ref)
		}
		c.checkCallable(v, label, decl, ref)
	case entity.KindProperty:
		c.checkVisibility(v, label, decl, ref)
		c.checkFlag(v, label, entity.ProblemWrongStatic, "static", decl.IsStatic, ref.IsStatic, decl, ref)
		c.checkFlag(v, label, entity.ProblemWrongReadonly, "readonly", decl.IsReadonly, ref.IsReadonly, decl, ref)
	case entity.KindConstant:
		c.checkVisibility(v, label, decl, ref)
		c.checkValue(v, label, decl, ref)
	case entity.KindEnumCase:
		c.checkValue(v, label, decl, ref)
	}
}

// findMember resolves a member of owner available in the current version,
// falling back to inherited members.
func (c *Comparator) findMember(owner *entity.Entity, kind entity.Kind, name string) (*entity.Entity, error) {
	scopes := append(graph.Ancestors(owner), graph.AllInterfaces(owner)...)

	r, cur := c.decls.Resolver(), c.decls.Current()
	for _, scope := range scopes {
		var found []*entity.Entity
		for _, m := range scope.MembersNamed(kind, name) {
			if r.AvailableIn(m, cur) {
				found = append(found, m)
			}
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		}
		err := &catalog.AmbiguousLookupError{ID: entity.MemberID(scope.ID, name), Version: cur}
		for _, m := range found {
			err.Candidates = append(err.Candidates, m.SourcePath)
		}
		return nil, err
	}
	return nil, nil
}

func memberLabel(m *entity.Entity) string {
	switch m.Kind {
	case entity.KindMethod:
		return m.Name + "()"
	case entity.KindProperty:
		return "$" + m.Name
	}
	return m.Name
}

// checkDeclarations reports problems that need no reference counterpart.
func (c *Comparator) checkDeclarations() {
	for _, e := range Entities(c.decls, entity.ProblemDocParseError, c.strategy) {
		if e.DocParseError == nil {
			continue
		}
		c.report(c.verdict(e), Problem{
			Kind:   entity.ProblemDocParseError,
			Member: memberOf(e),
			Detail: e.DocParseError.Error(),
		}, e)
	}
	for _, kind := range entity.TopLevelKinds {
		for _, p := range Filter(c.decls, kind, entity.ProblemDuplicateConflict, c.strategy) {
			e := p.Container
			if !e.DuplicateConflict {
				continue
			}
			var paths []string
			for _, d := range c.decls.Container(kind).Variants(e.ID) {
				if d.DuplicateConflict {
					paths = append(paths, d.SourcePath)
				}
			}
			v := c.verdict(e)
			if hasMemberProblem(v, entity.ProblemDuplicateConflict, "") {
				continue
			}
			c.report(v, Problem{
				Kind:   entity.ProblemDuplicateConflict,
				Detail: fmt.Sprintf("overlapping declarations in %v", paths),
			}, e)
		}
	}
	for _, kind := range memberKinds {
		for _, p := range Members(c.decls, kind, entity.ProblemDuplicateConflict, c.strategy) {
			m := p.Child
			if !m.DuplicateConflict {
				continue
			}
			label := memberLabel(m)
			v := c.verdict(m)
			if hasMemberProblem(v, entity.ProblemDuplicateConflict, label) {
				continue
			}
			var sites []string
			for _, d := range p.Container.MembersNamed(m.Kind, m.Name) {
				if d.DuplicateConflict {
					sites = append(sites, fmt.Sprintf("%s:%d", d.SourcePath, d.Line))
				}
			}
			c.report(v, Problem{
				Kind:   entity.ProblemDuplicateConflict,
				Member: label,
				Detail: fmt.Sprintf("overlapping declarations at %v", sites),
			}, m)
		}
	}
}

func hasMemberProblem(v *Verdict, kind entity.ProblemKind, member string) bool {
	for _, p := range v.Problems {
		if p.Kind == kind && p.Member == member {
			return true
		}
	}
	return false
}

func memberOf(e *entity.Entity) string {
	if e.Owner == nil {
		return ""
	}
	return memberLabel(e)
}

// docURLs returns the @link targets and the @see targets that are URLs
// rather than symbol references.
func docURLs(d entity.DocTags) []string {
	urls := append([]string(nil), d.Links...)
	for _, s := range d.See {
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			urls = append(urls, s)
		}
	}
	return urls
}

func (c *Comparator) checkLinks(ctx context.Context) error {
	owners := make(map[string][]*entity.Entity)
	var urls []string
	for _, e := range Entities(c.decls, entity.ProblemBrokenLink, c.strategy) {
		for _, u := range docURLs(e.Doc) {
			if _, ok := owners[u]; !ok {
				urls = append(urls, u)
			}
			owners[u] = append(owners[u], e)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	broken := c.links.Check(ctx, urls)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("compare: links: %w", err)
	}
	for _, u := range urls {
		err, ok := broken[u]
		if !ok {
			continue
		}
		for _, e := range owners[u] {
			c.report(c.verdict(e), Problem{
				Kind:   entity.ProblemBrokenLink,
				Member: memberOf(e),
				Detail: fmt.Sprintf("%s: %v", u, err),
			}, e)
		}
	}
	return nil
}
