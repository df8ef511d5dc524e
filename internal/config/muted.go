package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// AllVersions is the versions entry muting a problem everywhere.
const AllVersions = "ALL"

// MuteRule accepts one problem kind for the listed versions.
type MuteRule struct {
	Problem  string   `yaml:"problem"`
	Versions []string `yaml:"versions"`
}

// MuteTable maps an entity id, e.g. "strlen" or "ArrayObject::count", to
// the problems accepted for it.
type MuteTable map[string][]MuteRule

// LoadMuted reads a muted-problems side-file.
func LoadMuted(path string) (MuteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading muted problems: %w", err)
	}
	t, err := ParseMuted(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return t, nil
}

// ParseMuted decodes and validates a muted-problems document.
func ParseMuted(data []byte) (MuteTable, error) {
	var t MuteTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate rejects unknown problem kinds and malformed versions.
func (t MuteTable) Validate() error {
	for id, rules := range t {
		for i, r := range rules {
			if !entity.KnownProblem(entity.ProblemKind(r.Problem)) {
				return fmt.Errorf("%s[%d]: unknown problem %q", id, i, r.Problem)
			}
			for _, v := range r.Versions {
				if strings.EqualFold(v, AllVersions) {
					continue
				}
				if _, err := version.Parse(v); err != nil {
					return fmt.Errorf("%s[%d]: %w", id, i, err)
				}
			}
		}
	}
	return nil
}

// Apply records the table's mutes on the matching entities and their
// members, returning how many entities were touched.
func (t MuteTable) Apply(entities []*entity.Entity) int {
	if len(t) == 0 {
		return 0
	}
	n := 0
	var visit func(e *entity.Entity)
	visit = func(e *entity.Entity) {
		if rules, ok := t[e.ID]; ok {
			if e.Muted == nil {
				e.Muted = make(entity.MutedProblems)
			}
			for _, r := range rules {
				e.Muted.Mute(entity.ProblemKind(r.Problem), ruleVersions(r)...)
			}
			n++
		}
		for _, m := range e.Members {
			visit(m)
		}
	}
	for _, e := range entities {
		visit(e)
	}
	return n
}

// ruleVersions returns nil, meaning every version, when the rule lists none
// or lists ALL.
func ruleVersions(r MuteRule) []version.Version {
	var out []version.Version
	for _, v := range r.Versions {
		if strings.EqualFold(v, AllVersions) {
			return nil
		}
		pv, err := version.Parse(v)
		if err != nil {
			pv = version.Version(strings.TrimSpace(v))
		}
		out = append(out, pv)
	}
	return out
}
