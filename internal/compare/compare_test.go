package compare

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
	"github.com/jward/stubcat/internal/version"
)

var testSeq = version.MustSequence("7.4", "8.0", "8.1")

// fixture collects entities and builds a frozen catalog from them.
type fixture struct {
	t       *testing.T
	path    string
	tops    []*entity.Entity
	members []*entity.Entity
}

func newFixture(t *testing.T, path string) *fixture {
	t.Helper()
	return &fixture{t: t, path: path}
}

func (f *fixture) top(kind entity.Kind, name string) *entity.Entity {
	f.t.Helper()
	e, err := entity.New(kind, name, "")
	require.NoError(f.t, err)
	e.SourcePath = f.path
	e.Core = true
	f.tops = append(f.tops, e)
	return e
}

func (f *fixture) member(owner *entity.Entity, kind entity.Kind, name string) *entity.Entity {
	f.t.Helper()
	m, err := entity.NewMember(kind, owner.ID, name)
	require.NoError(f.t, err)
	m.SourcePath = f.path
	m.Core = true
	m.OwnerHash = owner.Hash
	f.members = append(f.members, m)
	return m
}

func (f *fixture) build(current version.Version) *catalog.Catalog {
	f.t.Helper()
	cat := catalog.New(availability.New(testSeq), current)
	for _, e := range f.tops {
		_, err := cat.Add(e)
		require.NoError(f.t, err)
	}
	_, err := graph.New(cat).Run(context.Background(), f.members)
	require.NoError(f.t, err)
	cat.Freeze()
	return cat
}

func compare(t *testing.T, decls, ref *fixture, opts ...Option) *Report {
	t.Helper()
	c, err := New(decls.build("8.1"), ref.build("8.1"), opts...)
	require.NoError(t, err)
	report, err := c.Compare(context.Background())
	require.NoError(t, err)
	return report
}

func param(name string) *entity.Parameter {
	return &entity.Parameter{Name: name}
}

// =============================================================================
// Muting and filtering
// =============================================================================

func TestIsMuted(t *testing.T) {
	t.Parallel()
	e, err := entity.New(entity.KindFunction, "f", "")
	require.NoError(t, err)
	e.Muted.Mute(entity.ProblemWrongDefault)
	e.Muted.Mute(entity.ProblemMissing, "8.0")

	assert.True(t, IsMuted(e, entity.ProblemWrongDefault, "7.4"))
	assert.True(t, IsMuted(e, entity.ProblemMissing, "8.0"))
	assert.False(t, IsMuted(e, entity.ProblemMissing, "8.1"))
	assert.False(t, IsMuted(e, entity.ProblemWrongStatic, "8.0"))
	assert.False(t, IsMuted(nil, entity.ProblemMissing, "8.0"))
}

func TestFilter_DefaultStrategyUsesCurrentVersion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a.php")
	old := f.top(entity.KindFunction, "old")
	old.Range = entity.VersionRange{To: "7.4"}
	f.top(entity.KindFunction, "now")
	cat := f.build("8.1")

	pairs := Filter(cat, entity.KindFunction, "", nil)
	require.Len(t, pairs, 1)
	assert.Equal(t, "now", pairs[0].Subject().ID)
	assert.False(t, pairs[0].IsMember())
}

func TestFilter_ExcludesMuted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a.php")
	a := f.top(entity.KindFunction, "a")
	f.top(entity.KindFunction, "b")
	a.Muted.Mute(entity.ProblemWrongReturnType, "8.1")
	cat := f.build("8.1")

	assert.Len(t, Filter(cat, entity.KindFunction, entity.ProblemWrongReturnType, nil), 1)
	assert.Len(t, Filter(cat, entity.KindFunction, entity.ProblemMissing, nil), 2)
	assert.Nil(t, Filter(cat, entity.KindMethod, "", nil))
}

func TestMembers_PairsAndMutedContainer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a.php")
	foo := f.top(entity.KindClass, "Foo")
	bar := f.top(entity.KindInterface, "Bar")
	f.member(foo, entity.KindMethod, "run")
	f.member(bar, entity.KindMethod, "go")
	f.member(foo, entity.KindConstant, "X")
	foo.Muted.Mute(entity.ProblemWrongStatic)
	cat := f.build("8.1")

	all := Members(cat, entity.KindMethod, "", nil)
	require.Len(t, all, 2)
	assert.Same(t, foo, all[0].Container)
	assert.Equal(t, "run", all[0].Child.Name)
	assert.True(t, all[0].IsMember())

	unmuted := Members(cat, entity.KindMethod, entity.ProblemWrongStatic, nil)
	require.Len(t, unmuted, 1)
	assert.Same(t, bar, unmuted[0].Container)

	assert.Len(t, Members(cat, entity.KindConstant, "", nil), 1)
	assert.Empty(t, Filter(cat, entity.KindConstant, "", nil))
}

func TestStrategies_Compose(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a.php")
	f.top(entity.KindFunction, "core_fn")
	ext := f.top(entity.KindFunction, "ext_fn")
	ext.Core = false
	gone := f.top(entity.KindFunction, "gone_fn")
	gone.Range = entity.VersionRange{To: "8.0"}
	cat := f.build("8.1")

	got := Filter(cat, entity.KindFunction, "", All(DefaultStrategy, CoreOnly))
	require.Len(t, got, 1)
	assert.Equal(t, "core_fn", got[0].Subject().ID)

	named := Where(func(p Pair) bool { return p.Subject().Name == "gone_fn" })
	assert.Len(t, Filter(cat, entity.KindFunction, "", named), 1)
	assert.Empty(t, Filter(cat, entity.KindFunction, "", All(DefaultStrategy, named)))
}

func TestEntities_CoversTopLevelAndMembers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "a.php")
	f.top(entity.KindFunction, "f")
	foo := f.top(entity.KindClass, "Foo")
	f.member(foo, entity.KindProperty, "p")
	cat := f.build("8.1")

	assert.Len(t, Entities(cat, "", nil), 3)
}

// =============================================================================
// Comparator
// =============================================================================

func TestNew_RequiresFrozenCatalogs(t *testing.T) {
	t.Parallel()
	open := catalog.New(availability.New(testSeq), "8.1")
	frozen := newFixture(t, "a.php").build("8.1")

	_, err := New(open, frozen)
	require.Error(t, err)
	_, err = New(frozen, nil)
	require.Error(t, err)
}

func TestNew_RequiresSameVersion(t *testing.T) {
	t.Parallel()
	_, err := New(newFixture(t, "a.php").build("8.0"), newFixture(t, "r").build("8.1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "8.0")
}

func TestCompare_MatchingFunctionPasses(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "standard.php"), newFixture(t, "reflection:8.1")
	for _, f := range []*fixture{decls, ref} {
		fn := f.top(entity.KindFunction, "strlen")
		fn.Parameters = []*entity.Parameter{param("string")}
		fn.Types.FromSignature = []string{"int"}
	}

	report := compare(t, decls, ref)
	require.Len(t, report.Verdicts, 1)
	v := report.Verdicts[0]
	assert.True(t, v.Passed())
	assert.Equal(t, "standard.php", v.SourcePath)
	assert.Equal(t, "PASS function strlen", v.String())
	assert.True(t, report.Passed())
}

func TestCompare_Missing(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	ref.top(entity.KindFunction, "array_find")
	gone := decls.top(entity.KindFunction, "each")
	gone.Range = entity.VersionRange{To: "7.4"}
	ref.top(entity.KindFunction, "each")

	report := compare(t, decls, ref)
	assert.Equal(t, 2, report.Count(entity.ProblemMissing))
	assert.Contains(t, report.Find(entity.KindFunction, "each").String(), "not available in 8.1")
	assert.Contains(t, report.Find(entity.KindFunction, "array_find").String(), "no declaration")
}

func TestCompare_MissingReportsKindMismatch(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	decls.top(entity.KindInterface, "Countable")
	ref.top(entity.KindClass, "Countable")

	v := compare(t, decls, ref).Find(entity.KindClass, "Countable")
	require.NotNil(t, v)
	assert.Contains(t, v.String(), "declared as interface, reference has class")
}

func TestCompare_ParameterMismatches(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")

	d := decls.top(entity.KindFunction, "preg_match")
	d.Parameters = []*entity.Parameter{
		param("pattern"),
		param("subj"),
		{Name: "matches", Index: 2, IsOptional: true},
	}
	r := ref.top(entity.KindFunction, "preg_match")
	r.Parameters = []*entity.Parameter{
		{Name: "pattern", Index: 0},
		{Name: "subject", Index: 1},
		{Name: "matches", Index: 2, IsOptional: true, IsByReference: true, DefaultValue: "null"},
		{Name: "flags", Index: 3, IsOptional: true, DefaultValue: "0"},
	}

	v := compare(t, decls, ref).Find(entity.KindFunction, "preg_match")
	require.NotNil(t, v)
	assert.True(t, v.Has(entity.ProblemWrongParameterCount))
	assert.True(t, v.Has(entity.ProblemWrongParameterName))
	assert.True(t, v.Has(entity.ProblemWrongByReference))
	assert.False(t, v.Has(entity.ProblemWrongOptional))
	assert.False(t, v.Has(entity.ProblemWrongDefault))
	assert.Contains(t, v.String(), "parameter 2: named $subj, reference has $subject")
}

func TestCompare_ParametersOutsideCurrentVersionIgnored(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	d := decls.top(entity.KindFunction, "f")
	d.Parameters = []*entity.Parameter{
		param("a"),
		{Name: "legacy", Index: 1, Range: entity.VersionRange{To: "7.4"}},
	}
	r := ref.top(entity.KindFunction, "f")
	r.Parameters = []*entity.Parameter{param("a")}

	assert.True(t, compare(t, decls, ref).Passed())
}

func TestCompare_DefaultsAndReturnTypes(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	d := decls.top(entity.KindFunction, "round")
	d.Parameters = []*entity.Parameter{{Name: "mode", IsOptional: true, DefaultValue: "'up'"}}
	d.Types.FromSignature = []string{"int", `\Stringable`}
	r := ref.top(entity.KindFunction, "round")
	r.Parameters = []*entity.Parameter{{Name: "mode", IsOptional: true, DefaultValue: `"down"`}}
	r.Types.FromSignature = []string{"stringable", "float"}

	v := compare(t, decls, ref).Find(entity.KindFunction, "round")
	assert.True(t, v.Has(entity.ProblemWrongDefault))
	assert.True(t, v.Has(entity.ProblemWrongReturnType))
	assert.Contains(t, v.String(), "returns int|stringable, reference returns float|stringable")
}

func TestCompare_TypeAttributeAtCurrentVersion(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	d := decls.top(entity.KindFunction, "f")
	d.Types.FromSignature = []string{"mixed"}
	d.Types.FromAttribute = map[version.Version][]string{"8.0": {"string", "false"}}
	r := ref.top(entity.KindFunction, "f")
	r.Types.FromSignature = []string{"false", "string"}

	assert.True(t, compare(t, decls, ref).Passed())
}

func TestCompare_ConstantValues(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	decls.top(entity.KindConstant, "PHP_EOL").Value = `"\n"`
	ref.top(entity.KindConstant, "PHP_EOL").Value = `"\n"`
	decls.top(entity.KindConstant, "E_ALL").Value = "32767"
	ref.top(entity.KindConstant, "E_ALL").Value = "30719"
	decls.top(entity.KindConstant, "DEBUG").Value = "TRUE"
	ref.top(entity.KindConstant, "DEBUG").Value = "true"

	report := compare(t, decls, ref)
	assert.Equal(t, 1, report.Count(entity.ProblemWrongConstantValue))
	assert.True(t, report.Find(entity.KindConstant, "E_ALL").Has(entity.ProblemWrongConstantValue))
}

func TestCompare_ClassStructure(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")

	for i, f := range []*fixture{decls, ref} {
		f.top(entity.KindClass, "Base")
		f.top(entity.KindInterface, "Countable")
		f.top(entity.KindInterface, "Traversable")
		it := f.top(entity.KindInterface, "IteratorAggregate")
		it.InterfaceNames = []string{"Traversable"}

		c := f.top(entity.KindClass, "ArrayObject")
		c.ParentName = "Base"
		if i == 0 {
			c.InterfaceNames = []string{"Countable"}
			c.IsFinal = true
		} else {
			c.InterfaceNames = []string{"IteratorAggregate", "Countable"}
			c.ParentName = ""
		}
	}

	v := compare(t, decls, ref).Find(entity.KindClass, "ArrayObject")
	require.NotNil(t, v)
	assert.True(t, v.Has(entity.ProblemWrongFinal))
	assert.True(t, v.Has(entity.ProblemWrongParent))
	assert.True(t, v.Has(entity.ProblemWrongInterfaces))
	assert.Contains(t, v.String(), "missing IteratorAggregate, Traversable")
}

func TestCompare_MemberChecks(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")

	dc := decls.top(entity.KindClass, "DateTime")
	run := decls.member(dc, entity.KindMethod, "format")
	run.Parameters = []*entity.Parameter{param("format")}
	create := decls.member(dc, entity.KindMethod, "createFromFormat")
	create.IsStatic = false
	prop := decls.member(dc, entity.KindProperty, "tz")
	prop.Visibility = entity.VisibilityPublic
	decls.member(dc, entity.KindConstant, "ATOM").Value = "'Y-m-d'"

	rc := ref.top(entity.KindClass, "DateTime")
	ref.member(rc, entity.KindMethod, "FORMAT").Parameters = []*entity.Parameter{param("format")}
	ref.member(rc, entity.KindMethod, "createFromFormat").IsStatic = true
	rp := ref.member(rc, entity.KindProperty, "tz")
	rp.Visibility = entity.VisibilityProtected
	rp.IsReadonly = true
	ref.member(rc, entity.KindConstant, "ATOM").Value = "'Y-m-d\\TH:i:sP'"
	ref.member(rc, entity.KindMethod, "modify")

	v := compare(t, decls, ref).Find(entity.KindClass, "DateTime")
	require.NotNil(t, v)

	byMember := make(map[string][]entity.ProblemKind)
	for _, p := range v.Problems {
		byMember[p.Member] = append(byMember[p.Member], p.Kind)
	}
	assert.NotContains(t, byMember, "FORMAT()")
	assert.Equal(t, []entity.ProblemKind{entity.ProblemWrongStatic}, byMember["createFromFormat()"])
	assert.ElementsMatch(t, []entity.ProblemKind{entity.ProblemWrongVisibility, entity.ProblemWrongReadonly}, byMember["$tz"])
	assert.Equal(t, []entity.ProblemKind{entity.ProblemWrongConstantValue}, byMember["ATOM"])
	assert.Equal(t, []entity.ProblemKind{entity.ProblemMissing}, byMember["modify()"])
}

func TestCompare_InheritedMemberFound(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")

	base := decls.top(entity.KindClass, "Exception")
	decls.member(base, entity.KindMethod, "getMessage").IsFinal = true
	child := decls.top(entity.KindClass, "RuntimeException")
	child.ParentName = "Exception"

	rb := ref.top(entity.KindClass, "Exception")
	ref.member(rb, entity.KindMethod, "getMessage").IsFinal = true
	rc := ref.top(entity.KindClass, "RuntimeException")
	rc.ParentName = "Exception"
	ref.member(rc, entity.KindMethod, "getMessage").IsFinal = true

	assert.True(t, compare(t, decls, ref).Passed())
}

func TestCompare_AmbiguousMemberVariants(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	dc := decls.top(entity.KindClass, "PDO")
	decls.member(dc, entity.KindMethod, "query")
	decls.member(dc, entity.KindMethod, "query")
	rc := ref.top(entity.KindClass, "PDO")
	ref.member(rc, entity.KindMethod, "query")

	v := compare(t, decls, ref).Find(entity.KindClass, "PDO")
	require.Len(t, v.Problems, 1)
	p := v.Problems[0]
	assert.Equal(t, entity.ProblemAmbiguousDeclaration, p.Kind)
	var amb *catalog.AmbiguousLookupError
	require.ErrorAs(t, p.Err, &amb)
	assert.Equal(t, "PDO::query", amb.ID)
}

func TestCompare_DuplicateConflictIsAmbiguous(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	decls.top(entity.KindFunction, "mb_str_pad")
	decls.path = "b.php"
	decls.top(entity.KindFunction, "mb_str_pad")
	ref.top(entity.KindFunction, "mb_str_pad")

	v := compare(t, decls, ref).Find(entity.KindFunction, "mb_str_pad")
	require.NotNil(t, v)
	assert.True(t, v.Has(entity.ProblemAmbiguousDeclaration))
	assert.True(t, v.Has(entity.ProblemDuplicateConflict))
	assert.Contains(t, v.String(), "[a.php b.php]")
}

func TestCompare_MemberDuplicateConflict(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	dc := decls.top(entity.KindClass, "Foo")
	oldRun := decls.member(dc, entity.KindMethod, "run")
	oldRun.Range = entity.VersionRange{To: "8.0"}
	oldRun.Line = 3
	newRun := decls.member(dc, entity.KindMethod, "run")
	newRun.Range = entity.VersionRange{From: "8.0"}
	newRun.Line = 9
	decls.member(dc, entity.KindProperty, "size").Range = entity.VersionRange{To: "7.4"}
	decls.member(dc, entity.KindProperty, "size").Range = entity.VersionRange{From: "8.0"}

	rc := ref.top(entity.KindClass, "Foo")
	ref.member(rc, entity.KindMethod, "run")
	ref.member(rc, entity.KindProperty, "size")

	v := compare(t, decls, ref).Find(entity.KindClass, "Foo")
	require.NotNil(t, v)
	var conflicts []Problem
	for _, p := range v.Problems {
		if p.Kind == entity.ProblemDuplicateConflict {
			conflicts = append(conflicts, p)
		}
	}
	require.Len(t, conflicts, 1)
	assert.Equal(t, "run()", conflicts[0].Member)
	assert.Contains(t, conflicts[0].Detail, "[a.php:3 a.php:9]")
}

func TestCompare_DocParseErrorOnDeclarationOnlyEntity(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "ext.php"), newFixture(t, "r")
	c := decls.top(entity.KindClass, "Ext")
	m := decls.member(c, entity.KindMethod, "run")
	m.DocParseError = errors.New("phpdoc: line 2: unterminated comment")

	report := compare(t, decls, ref)
	v := report.Find(entity.KindClass, "Ext")
	require.NotNil(t, v)
	require.Len(t, v.Problems, 1)
	assert.Equal(t, "run()", v.Problems[0].Member)
	assert.Equal(t, "ext.php", v.SourcePath)
	assert.False(t, report.Passed())
}

func TestCompare_MutedProblemsSuppressed(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	d := decls.top(entity.KindFunction, "f")
	d.IsDeprecated = true
	d.Muted.Mute(entity.ProblemDeprecationMismatch, "8.1")
	ref.top(entity.KindFunction, "f")
	missing := ref.top(entity.KindFunction, "g")
	missing.Muted.Mute(entity.ProblemMissing)

	assert.True(t, compare(t, decls, ref).Passed())
}

func TestCompare_StrategyLimitsReference(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	ref.top(entity.KindFunction, "a")
	ref.top(entity.KindFunction, "b")

	only := Where(func(p Pair) bool { return p.Subject().Name == "a" })
	report := compare(t, decls, ref, WithStrategy(All(DefaultStrategy, only)))
	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, "a", report.Verdicts[0].ID)
}

type fakeLinks struct {
	broken map[string]error
	seen   []string
}

func (f *fakeLinks) Check(_ context.Context, urls []string) map[string]error {
	f.seen = append(f.seen, urls...)
	return f.broken
}

func TestCompare_BrokenLinks(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	f := decls.top(entity.KindFunction, "f")
	f.Doc.Links = []string{"https://php.net/f", "https://php.net/gone"}
	g := decls.top(entity.KindFunction, "g")
	g.Doc.Links = []string{"https://php.net/gone"}
	g.Doc.See = []string{"f()", "https://php.net/see"}
	ref.top(entity.KindFunction, "f")
	ref.top(entity.KindFunction, "g")

	links := &fakeLinks{broken: map[string]error{"https://php.net/gone": errors.New("status 404")}}
	report := compare(t, decls, ref, WithLinkChecker(links))

	assert.ElementsMatch(t, []string{"https://php.net/f", "https://php.net/gone", "https://php.net/see"}, links.seen)
	assert.Equal(t, 2, report.Count(entity.ProblemBrokenLink))
	assert.Contains(t, report.Find(entity.KindFunction, "g").String(), "https://php.net/gone: status 404")
}

func TestCompare_VerdictsSorted(t *testing.T) {
	t.Parallel()
	decls, ref := newFixture(t, "a.php"), newFixture(t, "r")
	for _, f := range []*fixture{decls, ref} {
		f.top(entity.KindConstant, "A")
		f.top(entity.KindClass, "Z")
		f.top(entity.KindFunction, "y")
		f.top(entity.KindFunction, "b")
	}
	var got []string
	for _, v := range compare(t, decls, ref).Verdicts {
		got = append(got, v.ID)
	}
	assert.Equal(t, []string{"b", "y", "Z", "A"}, got)
}

func TestCompare_CancelledContext(t *testing.T) {
	t.Parallel()
	ref := newFixture(t, "r")
	ref.top(entity.KindFunction, "f")
	c, err := New(newFixture(t, "a.php").build("8.1"), ref.build("8.1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compare(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
