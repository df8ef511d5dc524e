package decl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/phpdoc"
	"github.com/jward/stubcat/internal/version"
)

// Attribute names understood by Convert. Matching ignores the namespace.
const (
	attrAvailable  = "PhpStormStubsElementAvailable"
	attrTypeAware  = "LanguageLevelTypeAware"
	attrDeprecated = "Deprecated"
)

var arrayPairRe = regexp.MustCompile(`['"]([^'"]*)['"]\s*=>\s*['"]([^'"]*)['"]`)

// shortName drops the namespace from an attribute name.
func shortName(name string) string {
	name = strings.TrimPrefix(name, `\`)
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if shortName(a.Name) == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// arg returns the argument called name, or the positional argument at pos.
func (a Attribute) arg(name string, pos int) (string, bool) {
	for _, x := range a.Args {
		if x.Name == name {
			return x.Value, true
		}
	}
	i := 0
	for _, x := range a.Args {
		if x.Name != "" {
			continue
		}
		if i == pos {
			return x.Value, true
		}
		i++
	}
	return "", false
}

// unquote returns the contents of a PHP string literal, or the trimmed
// text for anything else.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		body := s[1 : len(s)-1]
		if s[0] == '"' {
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
		}
		return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(body)
	}
	return s
}

// availableRange decodes #[PhpStormStubsElementAvailable(from: .., to: ..)].
func availableRange(attrs []Attribute) (entity.VersionRange, error) {
	a, ok := findAttribute(attrs, attrAvailable)
	if !ok {
		return entity.VersionRange{}, nil
	}
	var r entity.VersionRange
	if s, ok := a.arg("from", 0); ok {
		v, err := version.Parse(unquote(s))
		if err != nil {
			return entity.VersionRange{}, err
		}
		r.From = v
	}
	if s, ok := a.arg("to", 1); ok {
		v, err := version.Parse(unquote(s))
		if err != nil {
			return entity.VersionRange{}, err
		}
		r.To = v
	}
	return r, nil
}

// typeAware decodes #[LanguageLevelTypeAware(['8.0' => 'T'], default: 'D')]
// into the attribute part of a TypeSet.
func typeAware(attrs []Attribute, ts *entity.TypeSet) error {
	a, ok := findAttribute(attrs, attrTypeAware)
	if !ok {
		return nil
	}
	if s, ok := a.arg("languageLevelTypeMap", 0); ok {
		for _, m := range arrayPairRe.FindAllStringSubmatch(s, -1) {
			v, err := version.Parse(m[1])
			if err != nil {
				return err
			}
			if ts.FromAttribute == nil {
				ts.FromAttribute = make(map[version.Version][]string)
			}
			ts.FromAttribute[v] = phpdoc.SplitUnion(m[2])
		}
	}
	if s, ok := a.arg("default", 1); ok {
		ts.AttributeDefault = phpdoc.SplitUnion(unquote(s))
	}
	return nil
}

func hasDeprecatedAttribute(attrs []Attribute) bool {
	_, ok := findAttribute(attrs, attrDeprecated)
	return ok
}
