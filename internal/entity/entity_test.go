package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stubcat/internal/version"
)

func TestNew_RequiresName(t *testing.T) {
	t.Parallel()
	_, err := New(KindFunction, "  ", "")
	require.Error(t, err)

	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindFunction, se.Kind)
	assert.Contains(t, se.Error(), "missing name")
}

func TestNew_RejectsMemberKinds(t *testing.T) {
	t.Parallel()
	_, err := New(KindMethod, "foo", "")
	require.Error(t, err)
}

func TestNew_QualifiesID(t *testing.T) {
	t.Parallel()
	e, err := New(KindClass, "Client", `\Redis\Cluster`)
	require.NoError(t, err)
	assert.Equal(t, `Redis\Cluster\Client`, e.ID)
	assert.Equal(t, `Redis\Cluster`, e.Namespace)
	assert.NotEmpty(t, e.Hash)
	assert.NotNil(t, e.Muted)
}

func TestNew_HashUniquePerInstance(t *testing.T) {
	t.Parallel()
	a, err := New(KindFunction, "foo", "")
	require.NoError(t, err)
	b, err := New(KindFunction, "foo", "")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestNewMember(t *testing.T) {
	t.Parallel()
	m, err := NewMember(KindMethod, "ArrayObject", "count")
	require.NoError(t, err)
	assert.Equal(t, "ArrayObject::count", m.ID)
	assert.Equal(t, VisibilityPublic, m.Visibility)

	_, err = NewMember(KindMethod, "", "count")
	require.Error(t, err)
	_, err = NewMember(KindClass, "Owner", "Nested")
	require.Error(t, err)
	_, err = NewMember(KindProperty, "Owner", "")
	require.Error(t, err)
}

// =============================================================================
// Mutation
// =============================================================================

func TestAddMember_SetsOwner(t *testing.T) {
	t.Parallel()
	cls, err := New(KindClass, "ArrayObject", "")
	require.NoError(t, err)
	m, err := NewMember(KindMethod, "ArrayObject", "count")
	require.NoError(t, err)

	require.NoError(t, cls.AddMember(m))
	assert.Same(t, cls, m.Owner)
	assert.Same(t, cls, m.Container())
	assert.Len(t, cls.MembersOf(KindMethod), 1)
}

func TestAddMember_RejectsWrongKind(t *testing.T) {
	t.Parallel()
	iface, err := New(KindInterface, "Countable", "")
	require.NoError(t, err)
	prop, err := NewMember(KindProperty, "Countable", "count")
	require.NoError(t, err)

	require.Error(t, iface.AddMember(prop))
	require.Error(t, iface.AddMember(nil))

	fn, err := New(KindFunction, "strlen", "")
	require.NoError(t, err)
	m, err := NewMember(KindMethod, "strlen", "x")
	require.NoError(t, err)
	require.Error(t, fn.AddMember(m))
}

func TestMembersNamed_MethodCaseInsensitive(t *testing.T) {
	t.Parallel()
	cls, err := New(KindClass, "PDO", "")
	require.NoError(t, err)
	for _, name := range []string{"prepare", "Prepare"} {
		m, err := NewMember(KindMethod, "PDO", name)
		require.NoError(t, err)
		require.NoError(t, cls.AddMember(m))
	}
	p, err := NewMember(KindProperty, "PDO", "errorInfo")
	require.NoError(t, err)
	require.NoError(t, cls.AddMember(p))

	assert.Len(t, cls.MembersNamed(KindMethod, "PREPARE"), 2)
	assert.Len(t, cls.MembersNamed(KindProperty, "errorInfo"), 1)
	assert.Empty(t, cls.MembersNamed(KindProperty, "errorinfo"))
}

func TestMarkDuplicateConflict(t *testing.T) {
	t.Parallel()
	a, _ := New(KindFunction, "foo", "")
	b, _ := New(KindFunction, "foo", "")
	a.MarkDuplicateConflict(b)
	assert.True(t, a.DuplicateConflict)
	assert.True(t, b.DuplicateConflict)
}

// =============================================================================
// Types and ranges
// =============================================================================

func TestTypeSet_At(t *testing.T) {
	t.Parallel()
	ts := TypeSet{
		FromSignature:    []string{"mixed"},
		FromAttribute:    map[version.Version][]string{"8.0": {"string"}, "8.1": {"int", "string"}},
		AttributeDefault: []string{"int"},
	}

	assert.Equal(t, []string{"int"}, ts.At("7.4"))
	assert.Equal(t, []string{"string"}, ts.At("8.0"))
	assert.Equal(t, []string{"int", "string"}, ts.At("8.3"))
	assert.Equal(t, []version.Version{"8.0", "8.1"}, ts.AttributeVersions())

	plain := TypeSet{FromSignature: []string{"bool"}}
	assert.Equal(t, []string{"bool"}, plain.At("8.0"))
}

func TestVersionRange_Contains(t *testing.T) {
	t.Parallel()
	r := VersionRange{From: "7.0", To: "7.1"}
	assert.False(t, r.Contains("5.3"))
	assert.True(t, r.Contains("7.0"))
	assert.True(t, r.Contains("7.1"))
	assert.False(t, r.Contains("8.0"))
	assert.True(t, VersionRange{}.Contains("5.3"))
	assert.True(t, VersionRange{}.IsZero())

	p := &Parameter{Name: "flags", Range: VersionRange{From: "8.0"}}
	assert.False(t, p.AvailableAt("7.4"))
	assert.True(t, p.AvailableAt("8.1"))
}

func TestMutedProblems(t *testing.T) {
	t.Parallel()
	m := make(MutedProblems)
	m.Mute(ProblemWrongDefault, "8.0", "8.1")
	m.Mute(ProblemMissing)

	assert.True(t, m.Covers(ProblemWrongDefault, "8.0"))
	assert.False(t, m.Covers(ProblemWrongDefault, "7.4"))
	assert.True(t, m.Covers(ProblemMissing, "5.3"))
	assert.False(t, m.Covers(ProblemWrongStatic, "8.0"))

	m.Mute(ProblemWrongVisibility, "7.4.0")
	assert.True(t, m.Covers(ProblemWrongVisibility, "7.4"))
	assert.False(t, m.Covers(ProblemWrongVisibility, "7.4.1"))
}

func TestKind_RoundTrip(t *testing.T) {
	t.Parallel()
	for k := range kindNames {
		got, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("trait")
	assert.False(t, ok)
	assert.True(t, KindEnum.IsContainer())
	assert.True(t, KindMethod.IsCallable())
	assert.False(t, KindProperty.TopLevel())
	assert.True(t, KnownProblem(ProblemBrokenLink))
	assert.False(t, KnownProblem("nope"))
}
