package main

import (
	"strings"

	"github.com/jward/stubcat"
	"github.com/jward/stubcat/internal/compare"
	"github.com/jward/stubcat/internal/version"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIIndexSummary reports one index run and the build that followed it.
type CLIIndexSummary struct {
	Indexed    int      `json:"indexed"`
	Skipped    int      `json:"skipped"`
	Pruned     []string `json:"pruned,omitempty"`
	Structural []string `json:"structural_errors,omitempty"`
	Malformed  []string `json:"malformed_attributes,omitempty"`
	Files      int      `json:"files"`
	Entities   int      `json:"entities"`
	Members    int      `json:"members"`
	Duplicated int      `json:"duplicated"`
	Conflicts  int      `json:"conflicts"`
	Unresolved int      `json:"unresolved"`
	Cycles     []string `json:"cycles,omitempty"`
}

func newCLIIndexSummary(idx *stubcat.IndexResult, b *stubcat.BuildResult) CLIIndexSummary {
	s := CLIIndexSummary{
		Indexed:    idx.Indexed,
		Skipped:    idx.Skipped,
		Pruned:     idx.Pruned,
		Files:      b.Files,
		Entities:   b.Entities,
		Members:    b.Members,
		Duplicated: b.Duplicated,
		Conflicts:  b.Conflicts,
		Unresolved: len(b.Unresolved),
	}
	for _, err := range idx.Structural {
		s.Structural = append(s.Structural, err.Error())
	}
	for _, err := range idx.Malformed {
		s.Malformed = append(s.Malformed, err.Error())
	}
	for _, c := range b.Cycles {
		s.Cycles = append(s.Cycles, c.Error())
	}
	return s
}

// CLIEntity is a JSON-friendly declaration.
type CLIEntity struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	File       string      `json:"file,omitempty"`
	Line       int         `json:"line,omitempty"`
	Core       bool        `json:"core"`
	Modifiers  []string    `json:"modifiers,omitempty"`
	Parent     string      `json:"parent,omitempty"`
	Interfaces []string    `json:"interfaces,omitempty"`
	Parameters []string    `json:"parameters,omitempty"`
	Types      []string    `json:"types,omitempty"`
	Value      string      `json:"value,omitempty"`
	Versions   []string    `json:"versions"`
	Members    []CLIMember `json:"members,omitempty"`
	Conflict   bool        `json:"duplicate_conflict,omitempty"`
}

// CLIMember is a container member in a CLIEntity.
type CLIMember struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line,omitempty"`
}

func newCLIEntity(e *stubcat.Entity, versions []stubcat.Version) CLIEntity {
	out := CLIEntity{
		ID:       e.ID,
		Kind:     e.Kind.String(),
		File:     e.SourcePath,
		Line:     e.Line,
		Core:     e.Core,
		Types:    e.Types.At(lastVersion(versions)),
		Value:    e.Value,
		Versions: versionStrings(versions),
		Conflict: e.DuplicateConflict,
	}
	if e.Visibility != "" {
		out.Modifiers = append(out.Modifiers, string(e.Visibility))
	}
	for _, m := range []struct {
		set  bool
		name string
	}{
		{e.IsStatic, "static"}, {e.IsFinal, "final"}, {e.IsAbstract, "abstract"},
		{e.IsReadonly, "readonly"}, {e.IsDeprecated, "deprecated"},
	} {
		if m.set {
			out.Modifiers = append(out.Modifiers, m.name)
		}
	}
	if e.Parent != nil {
		out.Parent = e.Parent.ID
	} else {
		out.Parent = e.ParentName
	}
	out.Interfaces = e.InterfaceNames
	for _, p := range e.Parameters {
		out.Parameters = append(out.Parameters, paramString(p))
	}
	for _, m := range e.Members {
		out.Members = append(out.Members, CLIMember{Name: m.Name, Kind: m.Kind.String(), Line: m.Line})
	}
	return out
}

func paramString(p *stubcat.Parameter) string {
	var b strings.Builder
	if p.IsByReference {
		b.WriteString("&")
	}
	if p.IsVariadic {
		b.WriteString("...")
	}
	b.WriteString("$")
	b.WriteString(p.Name)
	if p.DefaultValue != "" {
		b.WriteString(" = ")
		b.WriteString(p.DefaultValue)
	} else if p.IsOptional && !p.IsVariadic {
		b.WriteString("?")
	}
	return b.String()
}

func lastVersion(vs []stubcat.Version) version.Version {
	if len(vs) == 0 {
		return version.Zero
	}
	return vs[len(vs)-1]
}

func versionStrings(vs []stubcat.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// CLIVariant is one stored declaration of a duplicated id.
type CLIVariant struct {
	Key      string   `json:"key"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Versions []string `json:"versions"`
	Conflict bool     `json:"conflict"`
}

// CLIDuplicate groups the variants of one id.
type CLIDuplicate struct {
	Kind     string       `json:"kind"`
	ID       string       `json:"id"`
	Conflict bool         `json:"conflict"`
	Variants []CLIVariant `json:"variants"`
}

func newCLIDuplicate(g stubcat.DuplicateGroup) CLIDuplicate {
	out := CLIDuplicate{Kind: g.Kind.String(), ID: g.ID, Conflict: g.Conflicts()}
	for _, v := range g.Variants {
		out.Variants = append(out.Variants, CLIVariant{
			Key:      v.Key,
			File:     v.Path,
			Line:     v.Line,
			Versions: versionStrings(v.Versions),
			Conflict: v.Conflict,
		})
	}
	return out
}

// CLIVerdict is a JSON-friendly verdict.
type CLIVerdict struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Passed   bool     `json:"passed"`
	Problems []string `json:"problems,omitempty"`
}

// CLIReport is a comparison report.
type CLIReport struct {
	Version  string       `json:"version"`
	Total    int          `json:"total"`
	Failed   int          `json:"failed"`
	Verdicts []CLIVerdict `json:"verdicts"`
}

func newCLIReport(r *compare.Report) CLIReport {
	out := CLIReport{
		Version:  r.Version.String(),
		Total:    len(r.Verdicts),
		Failed:   len(r.Failures()),
		Verdicts: make([]CLIVerdict, 0, len(r.Verdicts)),
	}
	for _, v := range r.Verdicts {
		cv := CLIVerdict{
			Kind:   v.Kind.String(),
			ID:     v.ID,
			File:   v.SourcePath,
			Line:   v.Line,
			Passed: v.Passed(),
		}
		for _, p := range v.Problems {
			cv.Problems = append(cv.Problems, p.String())
		}
		out.Verdicts = append(out.Verdicts, cv)
	}
	return out
}
