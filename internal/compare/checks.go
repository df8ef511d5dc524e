package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
)

func (c *Comparator) checkFlag(v *Verdict, member string, kind entity.ProblemKind, flag string, got, want bool, decl, ref *entity.Entity) {
	if got == want {
		return
	}
	c.report(v, Problem{Kind: kind, Member: member, Detail: fmt.Sprintf("%s is %t, reference has %t", flag, got, want)}, decl, ref)
}

func (c *Comparator) checkVisibility(v *Verdict, member string, decl, ref *entity.Entity) {
	got, want := decl.Visibility, ref.Visibility
	if got == entity.VisibilityNone {
		got = entity.VisibilityPublic
	}
	if want == entity.VisibilityNone {
		want = entity.VisibilityPublic
	}
	if got == want {
		return
	}
	c.report(v, Problem{Kind: entity.ProblemWrongVisibility, Member: member, Detail: fmt.Sprintf("declared %s, reference has %s", got, want)}, decl, ref)
}

func (c *Comparator) checkNamespace(v *Verdict, decl, ref *entity.Entity) {
	if strings.EqualFold(strings.Trim(decl.Namespace, `\`), strings.Trim(ref.Namespace, `\`)) {
		return
	}
	c.report(v, Problem{Kind: entity.ProblemWrongNamespace, Detail: fmt.Sprintf("declared in %q, reference has %q", decl.Namespace, ref.Namespace)}, decl, ref)
}

func (c *Comparator) checkParent(v *Verdict, decl, ref *entity.Entity) {
	got, want := parentName(decl), parentName(ref)
	if strings.EqualFold(got, want) {
		return
	}
	c.report(v, Problem{Kind: entity.ProblemWrongParent, Detail: fmt.Sprintf("extends %q, reference extends %q", got, want)}, decl, ref)
}

func parentName(e *entity.Entity) string {
	if e.Parent != nil {
		return e.Parent.ID
	}
	return strings.TrimPrefix(e.ParentName, `\`)
}

// checkInterfaces compares the full interface sets, inherited ones
// included.
func (c *Comparator) checkInterfaces(v *Verdict, decl, ref *entity.Entity) {
	got, want := interfaceSet(decl), interfaceSet(ref)
	missing := difference(want, got)
	extra := difference(got, want)
	if len(missing) == 0 && len(extra) == 0 {
		return
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	c.report(v, Problem{Kind: entity.ProblemWrongInterfaces, Detail: strings.Join(parts, "; ")}, decl, ref)
}

func interfaceSet(e *entity.Entity) map[string]string {
	set := make(map[string]string)
	for _, i := range graph.AllInterfaces(e) {
		set[strings.ToLower(i.ID)] = i.ID
	}
	for _, a := range graph.Ancestors(e) {
		for _, name := range a.InterfaceNames {
			name = strings.TrimPrefix(name, `\`)
			if _, ok := set[strings.ToLower(name)]; !ok {
				set[strings.ToLower(name)] = name
			}
		}
	}
	if e.Kind == entity.KindInterface {
		delete(set, strings.ToLower(e.ID))
	}
	return set
}

func difference(a, b map[string]string) []string {
	var out []string
	for k, name := range a {
		if _, ok := b[k]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Comparator) checkValue(v *Verdict, member string, decl, ref *entity.Entity) {
	if ref.Value == "" || decl.Value == "" {
		return
	}
	if normalizeValue(decl.Value) == normalizeValue(ref.Value) {
		return
	}
	c.report(v, Problem{Kind: entity.ProblemWrongConstantValue, Member: member, Detail: fmt.Sprintf("value %s, reference has %s", decl.Value, ref.Value)}, decl, ref)
}

// checkCallable compares deprecation, parameters available in the current
// version and the return type.
func (c *Comparator) checkCallable(v *Verdict, member string, decl, ref *entity.Entity) {
	cur := c.decls.Current()
	if decl.IsDeprecated != ref.IsDeprecated {
		c.report(v, Problem{Kind: entity.ProblemDeprecationMismatch, Member: member, Detail: fmt.Sprintf("deprecated is %t, reference has %t", decl.IsDeprecated, ref.IsDeprecated)}, decl, ref)
	}

	var params []*entity.Parameter
	for _, p := range decl.Parameters {
		if p.AvailableAt(cur) {
			params = append(params, p)
		}
	}
	if len(params) != len(ref.Parameters) {
		c.report(v, Problem{Kind: entity.ProblemWrongParameterCount, Member: member, Detail: fmt.Sprintf("declares %d parameters, reference has %d", len(params), len(ref.Parameters))}, decl, ref)
	}
	for i := 0; i < len(params) && i < len(ref.Parameters); i++ {
		c.checkParameter(v, member, params[i], ref.Parameters[i], decl, ref)
	}

	want := normalizeTypes(ref.Types.At(cur))
	if len(want) == 0 {
		return
	}
	got := normalizeTypes(decl.Types.At(cur))
	if strings.Join(got, "|") != strings.Join(want, "|") {
		c.report(v, Problem{Kind: entity.ProblemWrongReturnType, Member: member, Detail: fmt.Sprintf("returns %s, reference returns %s", typeString(got), typeString(want))}, decl, ref)
	}
}

func (c *Comparator) checkParameter(v *Verdict, member string, got, want *entity.Parameter, decl, ref *entity.Entity) {
	at := fmt.Sprintf("parameter %d", want.Index+1)
	add := func(kind entity.ProblemKind, format string, args ...any) {
		c.report(v, Problem{Kind: kind, Member: member, Detail: at + ": " + fmt.Sprintf(format, args...)}, decl, ref)
	}
	if got.Name != want.Name {
		add(entity.ProblemWrongParameterName, "named $%s, reference has $%s", got.Name, want.Name)
	}
	if got.IsOptional != want.IsOptional {
		add(entity.ProblemWrongOptional, "optional is %t, reference has %t", got.IsOptional, want.IsOptional)
	}
	if got.DefaultValue != "" && want.DefaultValue != "" && normalizeValue(got.DefaultValue) != normalizeValue(want.DefaultValue) {
		add(entity.ProblemWrongDefault, "defaults to %s, reference has %s", got.DefaultValue, want.DefaultValue)
	}
	if got.IsVariadic != want.IsVariadic {
		add(entity.ProblemWrongVariadic, "variadic is %t, reference has %t", got.IsVariadic, want.IsVariadic)
	}
	if got.IsByReference != want.IsByReference {
		add(entity.ProblemWrongByReference, "by reference is %t, reference has %t", got.IsByReference, want.IsByReference)
	}
}

// normalizeTypes lowercases, strips leading backslashes, dedupes and sorts.
func normalizeTypes(types []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), `\`))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func typeString(types []string) string {
	if len(types) == 0 {
		return "nothing"
	}
	return strings.Join(types, "|")
}

// normalizeValue makes literal spellings comparable: quotes are dropped,
// keywords lowercased and names unqualified.
func normalizeValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	switch lower := strings.ToLower(s); lower {
	case "true", "false", "null":
		return lower
	}
	if s == "[]" || strings.EqualFold(s, "array()") {
		return "[]"
	}
	return strings.TrimPrefix(s, `\`)
}
