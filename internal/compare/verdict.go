package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// Problem is one discrepancy found for an entity or one of its members.
type Problem struct {
	Kind   entity.ProblemKind
	Member string
	Detail string
	Err    error
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Member != "" {
		b.WriteString(p.Member)
		b.WriteString(": ")
	}
	b.WriteString(string(p.Kind))
	if p.Detail != "" {
		b.WriteString(": ")
		b.WriteString(p.Detail)
	}
	return b.String()
}

// Verdict is the outcome of checking one top-level entity.
type Verdict struct {
	ID         string
	Kind       entity.Kind
	SourcePath string
	Line       int
	Problems   []Problem
}

// Passed reports whether no problems were found.
func (v *Verdict) Passed() bool { return len(v.Problems) == 0 }

// Has reports whether the verdict carries a problem of kind p.
func (v *Verdict) Has(p entity.ProblemKind) bool {
	for _, pr := range v.Problems {
		if pr.Kind == p {
			return true
		}
	}
	return false
}

func (v *Verdict) String() string {
	if v.Passed() {
		return fmt.Sprintf("PASS %s %s", v.Kind, v.ID)
	}
	parts := make([]string, len(v.Problems))
	for i, p := range v.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("FAIL %s %s: %s", v.Kind, v.ID, strings.Join(parts, "; "))
}

// Report collects the verdicts of one comparison run.
type Report struct {
	Version  version.Version
	Verdicts []*Verdict
}

// Failures returns the failing verdicts.
func (r *Report) Failures() []*Verdict {
	var out []*Verdict
	for _, v := range r.Verdicts {
		if !v.Passed() {
			out = append(out, v)
		}
	}
	return out
}

// Passed reports whether every verdict passed.
func (r *Report) Passed() bool { return len(r.Failures()) == 0 }

// Count returns how many problems of kind p were reported.
func (r *Report) Count(p entity.ProblemKind) int {
	n := 0
	for _, v := range r.Verdicts {
		for _, pr := range v.Problems {
			if pr.Kind == p {
				n++
			}
		}
	}
	return n
}

// Find returns the verdict for the given kind and id, or nil.
func (r *Report) Find(kind entity.Kind, id string) *Verdict {
	for _, v := range r.Verdicts {
		if v.Kind == kind && v.ID == id {
			return v
		}
	}
	return nil
}

var kindOrder = map[entity.Kind]int{
	entity.KindFunction:  0,
	entity.KindClass:     1,
	entity.KindInterface: 2,
	entity.KindEnum:      3,
	entity.KindConstant:  4,
}

func (r *Report) sort() {
	sort.SliceStable(r.Verdicts, func(i, j int) bool {
		a, b := r.Verdicts[i], r.Verdicts[j]
		if a.Kind != b.Kind {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return a.ID < b.ID
	})
}
