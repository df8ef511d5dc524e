// Package entity defines the declaration model shared by the declaration
// catalog and the reference catalog.
//
// Entities are created once during extraction, gain owner and inheritance
// links during the enrichment pass, and are read-only afterwards.
package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Entity is any declared symbol. Kind selects which fields are meaningful:
// Parameters only for callables, Members only for containers, Value only
// for constants and enum cases.
type Entity struct {
	Kind      Kind
	Name      string
	ID        string
	Namespace string

	Visibility   Visibility
	IsStatic     bool
	IsFinal      bool
	IsReadonly   bool
	IsAbstract   bool
	IsDeprecated bool

	Parameters []*Parameter

	// Types is the return type of a callable or the declared type of a
	// property or constant.
	Types TypeSet
	Value string

	Doc           DocTags
	HasInheritDoc bool
	DocParseError error

	Range             VersionRange
	SourcePath        string
	Line              int
	Core              bool
	DuplicateConflict bool
	Muted             MutedProblems

	// Hash is a surrogate key assigned at construction. It is never
	// recomputed and is unique even among entities sharing an ID.
	Hash string

	// Raw names collected at parse time. OwnerHash is set when the owner
	// was declared in the same file.
	OwnerID        string
	OwnerHash      string
	ParentName     string
	InterfaceNames []string

	// Links populated by the enrichment pass.
	Owner      *Entity
	Parent     *Entity
	Interfaces []*Entity
	Members    []*Entity
}

// StructuralError reports a declaration that lacks identity data.
type StructuralError struct {
	Kind   Kind
	Path   string
	Line   int
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("entity: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("entity: %s at %s:%d: %s", e.Kind, e.Path, e.Line, e.Reason)
}

// New creates a top-level entity. The ID is the namespace-qualified name.
func New(kind Kind, name, namespace string) (*Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &StructuralError{Kind: kind, Reason: "missing name"}
	}
	if !kind.TopLevel() {
		return nil, &StructuralError{Kind: kind, Reason: fmt.Sprintf("%s %q needs an owner", kind, name)}
	}
	namespace = strings.Trim(namespace, `\`)
	return &Entity{
		Kind:      kind,
		Name:      name,
		ID:        QualifiedName(namespace, name),
		Namespace: namespace,
		Hash:      uuid.NewString(),
		Muted:     make(MutedProblems),
	}, nil
}

// NewMember creates a member entity owned by the container with ownerID.
// The owner link itself is set by AddMember during enrichment.
func NewMember(kind Kind, ownerID, name string) (*Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &StructuralError{Kind: kind, Reason: "missing name"}
	}
	if kind.TopLevel() {
		return nil, &StructuralError{Kind: kind, Reason: fmt.Sprintf("%s %q cannot be a member", kind, name)}
	}
	if ownerID == "" {
		return nil, &StructuralError{Kind: kind, Reason: fmt.Sprintf("%s %q has no owner", kind, name)}
	}
	return &Entity{
		Kind:       kind,
		Name:       name,
		ID:         MemberID(ownerID, name),
		OwnerID:    ownerID,
		Visibility: VisibilityPublic,
		Hash:       uuid.NewString(),
		Muted:      make(MutedProblems),
	}, nil
}

// QualifiedName joins a namespace and a short name the way ids are spelled.
func QualifiedName(namespace, name string) string {
	name = strings.TrimPrefix(name, `\`)
	if namespace == "" || strings.Contains(name, `\`) {
		return name
	}
	return namespace + `\` + name
}

// MemberID is the id of member name inside the container ownerID.
func MemberID(ownerID, name string) string {
	return ownerID + "::" + name
}

// AddMember attaches m to e and points m back at its owner.
func (e *Entity) AddMember(m *Entity) error {
	if m == nil {
		return fmt.Errorf("entity: add member to %s: nil member", e.ID)
	}
	if !e.Kind.accepts(m.Kind) {
		return fmt.Errorf("entity: %s %s cannot own %s %s", e.Kind, e.ID, m.Kind, m.Name)
	}
	m.Owner = e
	m.OwnerID = e.ID
	e.Members = append(e.Members, m)
	return nil
}

// MarkDuplicateConflict flags e and other as overlapping declarations of
// the same id.
func (e *Entity) MarkDuplicateConflict(other *Entity) {
	e.DuplicateConflict = true
	other.DuplicateConflict = true
}

// MembersNamed returns every member of the given kind called name, in
// declaration order. Several results mean per-version variants.
func (e *Entity) MembersNamed(kind Kind, name string) []*Entity {
	var out []*Entity
	for _, m := range e.Members {
		if m.Kind != kind {
			continue
		}
		// Method names are case-insensitive, everything else is not.
		if m.Name == name || (kind == KindMethod && strings.EqualFold(m.Name, name)) {
			out = append(out, m)
		}
	}
	return out
}

// MembersOf returns the members of the given kind.
func (e *Entity) MembersOf(kind Kind) []*Entity {
	var out []*Entity
	for _, m := range e.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Container returns the top-level entity that e belongs to, or e itself.
func (e *Entity) Container() *Entity {
	c := e
	for c.Owner != nil {
		c = c.Owner
	}
	return c
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.ID)
}
