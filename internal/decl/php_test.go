package decl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stubcat/internal/entity"
)

func parsePHP(t *testing.T, src string) []Node {
	t.Helper()
	nodes, err := NewPHPSource().Parse(context.Background(), "test.php", []byte(src))
	require.NoError(t, err)
	return nodes
}

func findNode(t *testing.T, nodes []Node, kind entity.Kind, name string) Node {
	t.Helper()
	for _, n := range nodes {
		if n.Kind == kind && n.Name == name {
			return n
		}
	}
	t.Fatalf("no %s %q in %d nodes", kind, name, len(nodes))
	return Node{}
}

func TestPHP_Function(t *testing.T) {
	t.Parallel()
	nodes := parsePHP(t, `<?php
/**
 * @since 8.0
 */
function str_contains(string $haystack, string $needle = "", &$out, ...$rest): bool {}
`)
	fn := findNode(t, nodes, entity.KindFunction, "str_contains")
	assert.Equal(t, -1, fn.Owner)
	assert.Equal(t, "bool", fn.Type)
	assert.Contains(t, fn.Doc, "@since 8.0")
	assert.Equal(t, 5, fn.Line)
	require.Len(t, fn.Params, 4)
	assert.Equal(t, "haystack", fn.Params[0].Name)
	assert.Equal(t, "string", fn.Params[0].Type)
	assert.True(t, fn.Params[1].HasDefault)
	assert.Equal(t, `""`, fn.Params[1].Default)
	assert.True(t, fn.Params[2].ByRef)
	assert.True(t, fn.Params[3].Variadic)
}

func TestPHP_ClassMembers(t *testing.T) {
	t.Parallel()
	nodes := parsePHP(t, `<?php
namespace Foo\Bar;

use Other\Thing as Alias;

final class Widget extends Base implements \Countable, Alias {
    public const LIMIT = 10;
    protected static ?int $count = 0;

    /** @return int */
    public static function make(int $n): static {}
    abstract protected function hidden();
}

interface Shape extends \Stringable, Sized {}
`)
	cls := findNode(t, nodes, entity.KindClass, "Widget")
	assert.Equal(t, `Foo\Bar`, cls.Namespace)
	assert.True(t, cls.HasModifier("final"))
	assert.Equal(t, []string{`Foo\Bar\Base`}, cls.Extends)
	assert.Equal(t, []string{"Countable", `Other\Thing`}, cls.Implements)

	limit := findNode(t, nodes, entity.KindConstant, "LIMIT")
	assert.Equal(t, `Foo\Bar\Widget`, limit.OwnerName)
	assert.Equal(t, "10", limit.Value)
	assert.True(t, limit.HasModifier("public"))

	count := findNode(t, nodes, entity.KindProperty, "count")
	assert.Equal(t, "?int", count.Type)
	assert.True(t, count.HasModifier("static"))
	assert.True(t, count.HasModifier("protected"))

	factory := findNode(t, nodes, entity.KindMethod, "make")
	assert.Equal(t, "Widget", nodes[factory.Owner].Name)
	assert.Contains(t, factory.Doc, "@return int")
	assert.True(t, factory.HasModifier("static"))

	hidden := findNode(t, nodes, entity.KindMethod, "hidden")
	assert.True(t, hidden.HasModifier("abstract"))

	shape := findNode(t, nodes, entity.KindInterface, "Shape")
	assert.Equal(t, []string{"Stringable", `Foo\Bar\Sized`}, shape.Extends)
}

func TestPHP_EnumAndAttributes(t *testing.T) {
	t.Parallel()
	nodes := parsePHP(t, `<?php
enum Suit: string implements JsonSerializable {
    case Hearts = 'H';
    case Spades = 'S';
}

#[PhpStormStubsElementAvailable(from: '7.0', to: '7.4')]
function legacy(#[LanguageLevelTypeAware(['8.0' => 'string'], default: 'mixed')] $v) {}

define('STUB_FLAG', 4);
`)
	suit := findNode(t, nodes, entity.KindEnum, "Suit")
	assert.Equal(t, []string{"JsonSerializable"}, suit.Implements)
	hearts := findNode(t, nodes, entity.KindEnumCase, "Hearts")
	assert.Equal(t, "'H'", hearts.Value)
	assert.Equal(t, "Suit", hearts.OwnerName)

	legacy := findNode(t, nodes, entity.KindFunction, "legacy")
	require.Len(t, legacy.Attributes, 1)
	assert.Equal(t, "PhpStormStubsElementAvailable", legacy.Attributes[0].Name)
	assert.Equal(t, []Arg{{Name: "from", Value: "'7.0'"}, {Name: "to", Value: "'7.4'"}}, legacy.Attributes[0].Args)
	require.Len(t, legacy.Params, 1)
	require.Len(t, legacy.Params[0].Attributes, 1)
	assert.Equal(t, "LanguageLevelTypeAware", legacy.Params[0].Attributes[0].Name)

	flag := findNode(t, nodes, entity.KindConstant, "STUB_FLAG")
	assert.Equal(t, "4", flag.Value)
	assert.Equal(t, -1, flag.Owner)
}

func TestSplitNamedArg(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Arg{Name: "from", Value: "'8.0'"}, splitNamedArg("from: '8.0'"))
	assert.Equal(t, Arg{Value: "Foo::BAR"}, splitNamedArg("Foo::BAR"))
	assert.Equal(t, Arg{Value: "'a:b'"}, splitNamedArg("'a:b'"))
	assert.Equal(t, Arg{Value: "['8.0' => 'x']"}, splitNamedArg("['8.0' => 'x']"))
}

func TestCoreMatcher(t *testing.T) {
	t.Parallel()
	m := NewCoreMatcher("standard", "/Core/")
	assert.True(t, m.Match("stubs/standard/basic.php"))
	assert.True(t, m.Match("Core/Core.php"))
	assert.False(t, m.Match("stubs/standardish/x.php"))
	assert.True(t, NewCoreMatcher().Match("anything.php"))
}
