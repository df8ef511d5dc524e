package stubcat

import (
	"github.com/jward/stubcat/internal/compare"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/reference"
	"github.com/jward/stubcat/internal/version"
)

// Public aliases for the internal types that appear in the Engine and
// QueryBuilder APIs.

type Entity = entity.Entity
type Parameter = entity.Parameter
type Kind = entity.Kind
type ProblemKind = entity.ProblemKind
type Version = version.Version
type Snapshot = reference.Snapshot
type Report = compare.Report
type Verdict = compare.Verdict
type Problem = compare.Problem
