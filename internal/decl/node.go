// Package decl turns declaration source files into entities.
//
// A Source reads one file into Nodes, plain records of what was written.
// Convert turns the Nodes of one file into a Fragment of entities that
// the catalog build consumes.
package decl

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jward/stubcat/internal/entity"
)

// Node is one declaration exactly as written, before interpretation.
type Node struct {
	Kind      entity.Kind
	Name      string
	Namespace string

	// Owner is the index of the containing Node in the same file for
	// members, -1 otherwise. OwnerName is the container's qualified name.
	Owner     int
	OwnerName string

	Modifiers  []string
	Params     []Param
	Type       string
	Value      string
	Doc        string
	Attributes []Attribute
	Extends    []string
	Implements []string
	Line       int
}

// HasModifier reports whether the node carries modifier m.
func (n *Node) HasModifier(m string) bool {
	for _, x := range n.Modifiers {
		if strings.EqualFold(x, m) {
			return true
		}
	}
	return false
}

// Param is one parameter of a callable Node.
type Param struct {
	Name       string
	Type       string
	Default    string
	HasDefault bool
	Variadic   bool
	ByRef      bool
	Attributes []Attribute
}

// Attribute is an attribute attached to a declaration or parameter. Args
// keep their source text.
type Attribute struct {
	Name string
	Args []Arg
}

// Arg is one attribute argument. Name is empty for positional arguments.
type Arg struct {
	Name  string
	Value string
}

// Source reads the declarations of one file.
type Source interface {
	Parse(ctx context.Context, path string, src []byte) ([]Node, error)
}

// CoreMatcher decides which files belong to the core surface by path
// segment.
type CoreMatcher struct {
	segments []string
}

// NewCoreMatcher returns a matcher for the given directory segments. With
// no segments every file is core.
func NewCoreMatcher(segments ...string) *CoreMatcher {
	m := &CoreMatcher{}
	for _, s := range segments {
		s = strings.Trim(filepath.ToSlash(s), "/")
		if s != "" {
			m.segments = append(m.segments, s)
		}
	}
	return m
}

// Match reports whether path lies under one of the core segments.
func (m *CoreMatcher) Match(path string) bool {
	if m == nil || len(m.segments) == 0 {
		return true
	}
	p := "/" + strings.Trim(filepath.ToSlash(path), "/") + "/"
	for _, s := range m.segments {
		if strings.Contains(p, "/"+s+"/") {
			return true
		}
	}
	return false
}
