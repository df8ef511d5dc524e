package entity

import (
	"sort"

	"github.com/jward/stubcat/internal/version"
)

// Visibility of a declaration. Top-level functions and constants have none.
type Visibility string

const (
	VisibilityNone      Visibility = ""
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// VersionRange is an explicit availability annotation. Empty bounds are unset.
type VersionRange struct {
	From version.Version
	To   version.Version
}

// Contains reports whether v lies inside the range, treating unset bounds
// as open.
func (r VersionRange) Contains(v version.Version) bool {
	if r.From != "" && v.Less(r.From) {
		return false
	}
	if r.To != "" && r.To.Less(v) {
		return false
	}
	return true
}

// IsZero reports whether neither bound is set.
func (r VersionRange) IsZero() bool { return r.From == "" && r.To == "" }

// TypeSet holds the type of a parameter, return value, property or
// constant as seen by each source.
type TypeSet struct {
	FromSignature []string
	FromDoc       []string

	// FromAttribute maps the first version a type applies to onto that type.
	FromAttribute map[version.Version][]string

	// AttributeDefault applies below the lowest FromAttribute key.
	AttributeDefault []string
}

// At returns the effective types for v: the FromAttribute entry with the
// greatest key not after v, then AttributeDefault, then FromSignature.
func (t TypeSet) At(v version.Version) []string {
	var best version.Version
	found := false
	for k := range t.FromAttribute {
		if v.Less(k) {
			continue
		}
		if !found || best.Less(k) {
			best, found = k, true
		}
	}
	if found {
		return t.FromAttribute[best]
	}
	if len(t.AttributeDefault) > 0 {
		return t.AttributeDefault
	}
	return t.FromSignature
}

// AttributeVersions returns the FromAttribute keys in ascending order.
func (t TypeSet) AttributeVersions() []version.Version {
	keys := make([]version.Version, 0, len(t.FromAttribute))
	for k := range t.FromAttribute {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// ParamTag is one documented parameter.
type ParamTag struct {
	Name  string
	Types []string
}

// DocTags is the metadata recovered from a documentation comment. Missing
// tags are empty slices, never nil-dereferenced.
type DocTags struct {
	Since      []version.Version
	Removed    []version.Version
	Deprecated []string
	Links      []string
	See        []string
	Params     []ParamTag
	Returns    []string
	Vars       []string
	Templates  []string
}

// Parameter is one entry of a callable's signature.
type Parameter struct {
	Name          string
	Index         int
	Types         TypeSet
	IsOptional    bool
	IsVariadic    bool
	IsByReference bool
	DefaultValue  string
	IsDeprecated  bool
	Range         VersionRange
}

// AvailableAt reports whether the parameter exists in version v.
func (p *Parameter) AvailableAt(v version.Version) bool {
	return p.Range.Contains(v)
}
