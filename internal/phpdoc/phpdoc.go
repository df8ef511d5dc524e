// Package phpdoc reads the tags of a documentation comment.
//
// Only the tags the catalog uses are recognized. Unknown tags are skipped.
// A comment that cannot be read completely still yields the tags found
// before the problem, together with an error describing it.
package phpdoc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// Comment is the parsed form of one documentation comment.
type Comment struct {
	Summary    string
	Tags       entity.DocTags
	InheritDoc bool
	Deprecated bool
}

// ParseError describes the first problem found in a comment.
type ParseError struct {
	Line   int
	Tag    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("phpdoc: line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("phpdoc: line %d: @%s: %s", e.Line, e.Tag, e.Reason)
}

var (
	inheritDocRe = regexp.MustCompile(`(?i)\{@inheritdoc\}|^@inheritdoc\b`)
	tagRe        = regexp.MustCompile(`^@([A-Za-z][\w-]*)\s*(.*)$`)
	leadingVerRe = regexp.MustCompile(`^(\d+(?:\.\d+){0,2})\b`)
)

// Parse reads a "/** ... */" comment. An empty string yields an empty
// Comment and no error.
func Parse(text string) (*Comment, error) {
	c := &Comment{}
	text = strings.TrimSpace(text)
	if text == "" {
		return c, nil
	}
	if !strings.HasPrefix(text, "/**") {
		return c, &ParseError{Line: 1, Reason: "not a documentation comment"}
	}
	if !strings.HasSuffix(text, "*/") || len(text) < len("/***/") {
		return c, &ParseError{Line: 1, Reason: "unterminated comment"}
	}
	body := strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")

	var (
		firstErr error
		summary  []string
		inTags   bool
	)
	for i, raw := range strings.Split(body, "\n") {
		line := cleanLine(raw)
		if inheritDocRe.MatchString(line) {
			c.InheritDoc = true
		}
		m := tagRe.FindStringSubmatch(line)
		if m == nil {
			if !inTags && line != "" {
				summary = append(summary, line)
			}
			continue
		}
		inTags = true
		if err := c.addTag(strings.ToLower(m[1]), strings.TrimSpace(m[2])); err != nil && firstErr == nil {
			err.Line = i + 1
			firstErr = err
		}
	}
	c.Summary = strings.Join(summary, " ")
	if firstErr != nil {
		return c, firstErr
	}
	return c, nil
}

func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.TrimPrefix(line, "*")
	return strings.TrimSpace(line)
}

func (c *Comment) addTag(name, value string) *ParseError {
	t := &c.Tags
	switch name {
	case "since":
		v, err := leadingVersion(name, value)
		if err != nil {
			return err
		}
		if v != "" {
			t.Since = append(t.Since, v)
		}
	case "removed":
		v, err := leadingVersion(name, value)
		if err != nil {
			return err
		}
		if v != "" {
			t.Removed = append(t.Removed, v)
		}
	case "deprecated":
		c.Deprecated = true
		t.Deprecated = append(t.Deprecated, value)
	case "link":
		if value == "" {
			return &ParseError{Tag: name, Reason: "missing URL"}
		}
		t.Links = append(t.Links, firstField(value))
	case "see":
		if value == "" {
			return &ParseError{Tag: name, Reason: "missing reference"}
		}
		t.See = append(t.See, firstField(value))
	case "param":
		p, err := parseParam(value)
		if err != nil {
			return err
		}
		t.Params = append(t.Params, p)
	case "return":
		typ, _ := splitType(value)
		if typ == "" {
			return &ParseError{Tag: name, Reason: "missing type"}
		}
		t.Returns = append(t.Returns, SplitUnion(typ)...)
	case "var":
		typ, _ := splitType(value)
		if typ == "" {
			return &ParseError{Tag: name, Reason: "missing type"}
		}
		t.Vars = append(t.Vars, SplitUnion(typ)...)
	case "template":
		if value == "" {
			return &ParseError{Tag: name, Reason: "missing name"}
		}
		t.Templates = append(t.Templates, firstField(value))
	case "inheritdoc":
		c.InheritDoc = true
	}
	return nil
}

// leadingVersion returns the version a since/removed tag starts with.
// Tags naming an extension release ("PECL foo 1.0") carry no platform
// version and yield "".
func leadingVersion(tag, value string) (version.Version, *ParseError) {
	if value == "" {
		return "", &ParseError{Tag: tag, Reason: "missing version"}
	}
	m := leadingVerRe.FindString(value)
	if m == "" {
		return "", nil
	}
	v, err := version.Parse(m)
	if err != nil {
		return "", &ParseError{Tag: tag, Reason: err.Error()}
	}
	return v, nil
}

func parseParam(value string) (entity.ParamTag, *ParseError) {
	if value == "" {
		return entity.ParamTag{}, &ParseError{Tag: "param", Reason: "empty"}
	}
	typ, rest := splitType(value)
	if strings.HasPrefix(typ, "$") || strings.HasPrefix(typ, "...$") || strings.HasPrefix(typ, "&") {
		typ, rest = "", value
	}
	name := firstField(rest)
	name = strings.TrimPrefix(name, "&")
	name = strings.TrimPrefix(name, "...")
	if !strings.HasPrefix(name, "$") || len(name) < 2 {
		return entity.ParamTag{}, &ParseError{Tag: "param", Reason: fmt.Sprintf("missing variable name in %q", value)}
	}
	p := entity.ParamTag{Name: strings.TrimPrefix(name, "$")}
	if typ != "" {
		p.Types = SplitUnion(typ)
	}
	return p, nil
}

// splitType splits a tag value into its leading type expression and the
// rest. Brackets keep generic arguments like "array<int, string>" whole.
func splitType(value string) (string, string) {
	depth := 0
	for i, r := range value {
		switch r {
		case '<', '(', '{', '[':
			depth++
		case '>', ')', '}', ']':
			if depth > 0 {
				depth--
			}
		case ' ', '\t':
			if depth == 0 {
				return value[:i], strings.TrimSpace(value[i:])
			}
		}
	}
	return value, ""
}

// SplitUnion splits "int|string|null" into its members, leaving bracketed
// parts intact.
func SplitUnion(typ string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range typ {
		switch r {
		case '<', '(', '{', '[':
			depth++
		case '>', ')', '}', ']':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 {
				if s := strings.TrimSpace(typ[start:i]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(typ[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
