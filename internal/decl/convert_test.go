package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

func TestConvert_ClassWithMembers(t *testing.T) {
	t.Parallel()
	nodes := []Node{
		{
			Kind: entity.KindClass, Name: "Widget", Namespace: `Foo`, Owner: -1,
			Modifiers: []string{"readonly"}, Extends: []string{`Foo\Base`},
			Implements: []string{"Countable"}, Line: 3,
			Doc: "/**\n * @since 7.1\n */",
		},
		{
			Kind: entity.KindMethod, Name: "count", Owner: 0, OwnerName: `Foo\Widget`,
			Modifiers: []string{"public"}, Type: "?int", Line: 5,
			Params: []Param{{Name: "mode", Type: "int", Default: "0", HasDefault: true}},
			Doc:    "/**\n * @param int|string $mode\n * @return int\n */",
		},
		{Kind: entity.KindProperty, Name: "size", Owner: 0, OwnerName: `Foo\Widget`, Line: 6},
	}

	f := Convert("stubs/widget.php", nodes, true)
	require.Empty(t, f.Errors)
	require.Len(t, f.Entities, 1)
	require.Len(t, f.Members, 2)
	assert.Equal(t, 3, f.Len())

	cls := f.Entities[0]
	assert.Equal(t, `Foo\Widget`, cls.ID)
	assert.Equal(t, `Foo\Base`, cls.ParentName)
	assert.Equal(t, []string{"Countable"}, cls.InterfaceNames)
	assert.Equal(t, []version.Version{"7.1"}, cls.Doc.Since)
	assert.True(t, cls.Core)
	assert.Equal(t, "stubs/widget.php", cls.SourcePath)

	m := f.Members[0]
	assert.Equal(t, `Foo\Widget::count`, m.ID)
	assert.Equal(t, cls.Hash, m.OwnerHash)
	assert.Equal(t, entity.VisibilityPublic, m.Visibility)
	assert.Equal(t, []string{"int", "null"}, m.Types.FromSignature)
	assert.Equal(t, []string{"int"}, m.Types.FromDoc)
	require.Len(t, m.Parameters, 1)
	assert.Equal(t, []string{"int", "string"}, m.Parameters[0].Types.FromDoc)
	assert.True(t, m.Parameters[0].IsOptional)

	assert.True(t, f.Members[1].IsReadonly)
}

func TestConvert_StructuralErrorSkipsEntity(t *testing.T) {
	t.Parallel()
	nodes := []Node{
		{Kind: entity.KindFunction, Name: "", Owner: -1, Line: 7},
		{Kind: entity.KindFunction, Name: "ok", Owner: -1, Line: 9},
	}
	f := Convert("a.php", nodes, false)
	require.Len(t, f.Errors, 1)
	var se *entity.StructuralError
	require.ErrorAs(t, f.Errors[0], &se)
	assert.Equal(t, "a.php", se.Path)
	assert.Equal(t, 7, se.Line)
	require.Len(t, f.Entities, 1)
	assert.Equal(t, "ok", f.Entities[0].ID)
}

func TestConvert_DocParseErrorIsKept(t *testing.T) {
	t.Parallel()
	f := Convert("a.php", []Node{{Kind: entity.KindFunction, Name: "f", Owner: -1, Doc: "/**\n * @param\n */"}}, true)
	require.Empty(t, f.Errors)
	require.Len(t, f.Entities, 1)
	assert.Error(t, f.Entities[0].DocParseError)
}

func TestConvert_Attributes(t *testing.T) {
	t.Parallel()
	nodes := []Node{{
		Kind: entity.KindFunction, Name: "f", Owner: -1,
		Attributes: []Attribute{
			{Name: `JetBrains\PhpStorm\Internal\PhpStormStubsElementAvailable`, Args: []Arg{{Name: "from", Value: "'7.0'"}, {Name: "to", Value: "'7.4'"}}},
			{Name: "LanguageLevelTypeAware", Args: []Arg{{Value: "['8.0' => 'string|false', '8.1' => 'string']"}, {Name: "default", Value: "'mixed'"}}},
			{Name: "Deprecated"},
		},
		Params: []Param{{
			Name:       "flags",
			Attributes: []Attribute{{Name: "PhpStormStubsElementAvailable", Args: []Arg{{Value: "'8.0'"}}}},
		}},
	}}
	f := Convert("a.php", nodes, true)
	require.Empty(t, f.Errors)
	e := f.Entities[0]

	assert.Equal(t, entity.VersionRange{From: "7.0", To: "7.4"}, e.Range)
	assert.True(t, e.IsDeprecated)
	assert.Equal(t, []string{"string", "false"}, e.Types.At("8.0"))
	assert.Equal(t, []string{"string"}, e.Types.At("8.2"))
	assert.Equal(t, []string{"mixed"}, e.Types.At("7.4"))
	assert.Equal(t, entity.VersionRange{From: "8.0"}, e.Parameters[0].Range)
}

func TestConvert_BadAttributeVersion(t *testing.T) {
	t.Parallel()
	nodes := []Node{{
		Kind: entity.KindFunction, Name: "f", Owner: -1,
		Attributes: []Attribute{{Name: "PhpStormStubsElementAvailable", Args: []Arg{{Value: "'seven'"}}}},
	}}
	f := Convert("a.php", nodes, true)
	assert.Empty(t, f.Errors)
	require.Len(t, f.Malformed, 1)
	assert.Contains(t, f.Malformed[0].Error(), "a.php")
	assert.Len(t, f.Entities, 1)
	assert.True(t, f.Entities[0].Range.IsZero())
}

func TestConvert_InterfaceMethodsAreAbstract(t *testing.T) {
	t.Parallel()
	nodes := []Node{
		{Kind: entity.KindInterface, Name: "Shape", Owner: -1, Extends: []string{"A", "B"}},
		{Kind: entity.KindMethod, Name: "area", Owner: 0, OwnerName: "Shape"},
		{Kind: entity.KindEnum, Name: "Suit", Owner: -1},
	}
	f := Convert("a.php", nodes, true)
	assert.Equal(t, []string{"A", "B"}, f.Entities[0].InterfaceNames)
	assert.Empty(t, f.Entities[0].ParentName)
	assert.True(t, f.Members[0].IsAbstract)
	assert.True(t, f.Entities[1].IsFinal)
}

func TestSplitTypes(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitTypes(""))
	assert.Equal(t, []string{"int", "null"}, SplitTypes("?int"))
	assert.Equal(t, []string{"A&B", "null"}, SplitTypes("A&B|null"))
}
