package entity

import "github.com/jward/stubcat/internal/version"

// ProblemKind names one class of discrepancy between a declaration and the
// reference catalog.
type ProblemKind string

const (
	ProblemMissing              ProblemKind = "missing"
	ProblemWrongVisibility      ProblemKind = "wrong-visibility"
	ProblemWrongStatic          ProblemKind = "wrong-static"
	ProblemWrongFinal           ProblemKind = "wrong-final"
	ProblemWrongReadonly        ProblemKind = "wrong-readonly"
	ProblemWrongAbstract        ProblemKind = "wrong-abstract"
	ProblemWrongParent          ProblemKind = "wrong-parent"
	ProblemWrongInterfaces      ProblemKind = "wrong-interfaces"
	ProblemWrongNamespace       ProblemKind = "wrong-namespace"
	ProblemWrongParameterCount  ProblemKind = "wrong-parameter-count"
	ProblemWrongParameterName   ProblemKind = "wrong-parameter-name"
	ProblemWrongOptional        ProblemKind = "wrong-optional"
	ProblemWrongDefault         ProblemKind = "wrong-default"
	ProblemWrongVariadic        ProblemKind = "wrong-variadic"
	ProblemWrongByReference     ProblemKind = "wrong-by-reference"
	ProblemWrongReturnType      ProblemKind = "wrong-return-type"
	ProblemWrongConstantValue   ProblemKind = "wrong-constant-value"
	ProblemDeprecationMismatch  ProblemKind = "deprecation-mismatch"
	ProblemDuplicateConflict    ProblemKind = "duplicate-conflict"
	ProblemDocParseError        ProblemKind = "doc-parse-error"
	ProblemBrokenLink           ProblemKind = "broken-link"
	ProblemAmbiguousDeclaration ProblemKind = "ambiguous-declaration"
)

// AllProblems lists every known problem kind.
var AllProblems = []ProblemKind{
	ProblemMissing, ProblemWrongVisibility, ProblemWrongStatic, ProblemWrongFinal,
	ProblemWrongReadonly, ProblemWrongAbstract, ProblemWrongParent, ProblemWrongInterfaces,
	ProblemWrongNamespace, ProblemWrongParameterCount, ProblemWrongParameterName,
	ProblemWrongOptional, ProblemWrongDefault, ProblemWrongVariadic, ProblemWrongByReference,
	ProblemWrongReturnType, ProblemWrongConstantValue, ProblemDeprecationMismatch,
	ProblemDuplicateConflict, ProblemDocParseError, ProblemBrokenLink,
	ProblemAmbiguousDeclaration,
}

// KnownProblem reports whether p is one of AllProblems.
func KnownProblem(p ProblemKind) bool {
	for _, k := range AllProblems {
		if k == p {
			return true
		}
	}
	return false
}

// MuteSet is the set of versions a problem is muted for. All mutes it for
// every version.
type MuteSet struct {
	All      bool
	Versions map[version.Version]bool
}

// MutedProblems maps a problem kind to the versions it is accepted for.
type MutedProblems map[ProblemKind]MuteSet

// Mute records that problem p is accepted for the given versions, or for
// every version when none are given.
func (m MutedProblems) Mute(p ProblemKind, versions ...version.Version) {
	set := m[p]
	if len(versions) == 0 {
		set.All = true
	}
	if set.Versions == nil {
		set.Versions = make(map[version.Version]bool)
	}
	for _, v := range versions {
		set.Versions[v] = true
	}
	m[p] = set
}

// Covers reports whether p is muted for v. Versions match by ordering, so
// "8.0" and "8.0.0" are the same release.
func (m MutedProblems) Covers(p ProblemKind, v version.Version) bool {
	set, ok := m[p]
	if !ok {
		return false
	}
	if set.All || set.Versions[v] {
		return true
	}
	if v == "" {
		return false
	}
	for mv := range set.Versions {
		if mv != "" && mv.Compare(v) == 0 {
			return true
		}
	}
	return false
}
