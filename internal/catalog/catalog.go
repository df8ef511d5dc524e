// Package catalog stores declarations per kind and resolves ids to a
// single authoritative declaration for a version.
//
// A Catalog moves through two states: Building, where entities are added
// and enriched, and Frozen, where it only answers queries. Reads on a
// frozen catalog have no side effects and need no locking.
package catalog

import (
	"fmt"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// State is the lifecycle phase of a Catalog.
type State int

const (
	StateBuilding State = iota
	StateFrozen
)

func (s State) String() string {
	if s == StateFrozen {
		return "frozen"
	}
	return "building"
}

// Catalog owns every entity of one source (declarations or reference).
type Catalog struct {
	resolver   *availability.Resolver
	current    version.Version
	containers map[entity.Kind]*Container
	members    map[string]*entity.Entity
	memberKeys map[string]string
	state      State
}

// New creates an empty catalog resolving lookups at current.
func New(resolver *availability.Resolver, current version.Version) *Catalog {
	c := &Catalog{
		resolver:   resolver,
		current:    current,
		containers: make(map[entity.Kind]*Container, len(entity.TopLevelKinds)),
		members:    make(map[string]*entity.Entity),
		memberKeys: make(map[string]string),
	}
	for _, k := range entity.TopLevelKinds {
		c.containers[k] = newContainer(k, resolver, current)
	}
	return c
}

// Resolver returns the availability resolver the catalog filters with.
func (c *Catalog) Resolver() *availability.Resolver { return c.resolver }

// Current returns the version lookups are resolved at by default.
func (c *Catalog) Current() version.Version { return c.current }

func (c *Catalog) State() State { return c.state }

// Freeze ends the Building phase. It is idempotent.
func (c *Catalog) Freeze() {
	c.state = StateFrozen
	for _, cont := range c.containers {
		cont.frozen = true
	}
}

// Add stores a top-level entity in its kind's container.
func (c *Catalog) Add(e *entity.Entity) (string, error) {
	if c.state == StateFrozen {
		return "", ErrFrozen
	}
	if e == nil {
		return "", nil
	}
	cont, ok := c.containers[e.Kind]
	if !ok {
		return "", fmt.Errorf("catalog: %s is not a top-level kind", e)
	}
	return cont.Add(e)
}

// RegisterMember indexes an attached member by hash so it can be pinned
// with GetByHash, and returns the key it is stored under. The Nth member of
// one owner sharing m's kind and name is keyed "<id>_duplicated_<N>".
func (c *Catalog) RegisterMember(m *entity.Entity) (string, error) {
	if c.state == StateFrozen {
		return "", ErrFrozen
	}
	key := m.ID
	if m.Owner != nil {
		if n := len(m.Owner.MembersNamed(m.Kind, m.Name)) - 1; n > 0 {
			key = fmt.Sprintf("%s_duplicated_%d", m.ID, n)
		}
	}
	c.members[m.Hash] = m
	c.memberKeys[m.Hash] = key
	return key, nil
}

// MemberKey returns the key m was registered under, or "" for an entity
// RegisterMember never saw.
func (c *Catalog) MemberKey(m *entity.Entity) string {
	return c.memberKeys[m.Hash]
}

// Container returns the store for kind, or nil for member kinds.
func (c *Catalog) Container(kind entity.Kind) *Container {
	return c.containers[kind]
}

func (c *Catalog) Functions() *Container  { return c.containers[entity.KindFunction] }
func (c *Catalog) Classes() *Container    { return c.containers[entity.KindClass] }
func (c *Catalog) Interfaces() *Container { return c.containers[entity.KindInterface] }
func (c *Catalog) Enums() *Container      { return c.containers[entity.KindEnum] }
func (c *Catalog) Constants() *Container  { return c.containers[entity.KindConstant] }

// Get resolves id within the container for kind.
func (c *Catalog) Get(kind entity.Kind, id string, opts ...LookupOption) (*entity.Entity, error) {
	cont, ok := c.containers[kind]
	if !ok {
		return nil, fmt.Errorf("catalog: %s is not a top-level kind", kind)
	}
	return cont.Get(id, opts...)
}

// typeKinds are the containers a class-like name may refer to.
var typeKinds = []entity.Kind{entity.KindClass, entity.KindInterface, entity.KindEnum}

// GetType resolves a class-like name across classes, interfaces and enums.
// A name matching in more than one of them is ambiguous.
func (c *Catalog) GetType(id string, opts ...LookupOption) (*entity.Entity, error) {
	var found []*entity.Entity
	for _, k := range typeKinds {
		e, err := c.containers[k].Get(id, opts...)
		if err != nil {
			return nil, err
		}
		if e != nil {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	}
	l := lookup{at: c.current}
	for _, opt := range opts {
		opt(&l)
	}
	err := &AmbiguousLookupError{ID: id, SourcePath: l.sourcePath}
	if !l.anyVersion {
		err.Version = l.at
	}
	for _, e := range found {
		err.Candidates = append(err.Candidates, e.SourcePath)
	}
	return nil, err
}

// GetByHash returns the entity, top-level or registered member, with the
// given surrogate key. It ignores the current version.
func (c *Catalog) GetByHash(hash string) *entity.Entity {
	for _, k := range entity.TopLevelKinds {
		if e := c.containers[k].GetByHash(hash); e != nil {
			return e
		}
	}
	return c.members[hash]
}

// All returns every top-level entity, grouped by kind in TopLevelKinds
// order and in insertion order within a kind.
func (c *Catalog) All() []*entity.Entity {
	var out []*entity.Entity
	for _, k := range entity.TopLevelKinds {
		out = append(out, c.containers[k].All()...)
	}
	return out
}

// Len returns the number of stored top-level entities.
func (c *Catalog) Len() int {
	n := 0
	for _, cont := range c.containers {
		n += cont.Len()
	}
	return n
}
