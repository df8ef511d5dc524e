package catalog

import (
	"fmt"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// Entry is a stored entity together with the key it was stored under.
type Entry struct {
	Key    string
	Entity *entity.Entity
}

// Container stores the entities of one kind. Entities sharing an id are
// kept side by side under disambiguated keys; none is ever overwritten.
type Container struct {
	kind     entity.Kind
	resolver *availability.Resolver
	current  version.Version

	entries []Entry
	keys    map[string]*entity.Entity
	byID    map[string][]*entity.Entity
	byHash  map[string]*entity.Entity
	frozen  bool
}

func newContainer(kind entity.Kind, r *availability.Resolver, current version.Version) *Container {
	return &Container{
		kind:     kind,
		resolver: r,
		current:  current,
		keys:     make(map[string]*entity.Entity),
		byID:     make(map[string][]*entity.Entity),
		byHash:   make(map[string]*entity.Entity),
	}
}

// Kind returns the entity kind this container holds.
func (c *Container) Kind() entity.Kind { return c.kind }

// Add stores e and returns the key it was stored under. Entities without
// an id are ignored. The Nth colliding entity is stored as
// "<id>_duplicated_<N>", and every pair of same-id entities whose
// availability windows intersect is flagged as a duplicate conflict.
func (c *Container) Add(e *entity.Entity) (string, error) {
	if c.frozen {
		return "", ErrFrozen
	}
	if e == nil || e.ID == "" {
		return "", nil
	}
	if e.Kind != c.kind {
		return "", fmt.Errorf("catalog: add %s to %s container", e, c.kind)
	}

	existing := c.byID[e.ID]
	key := e.ID
	if len(existing) > 0 {
		n := len(existing)
		key = fmt.Sprintf("%s_duplicated_%d", e.ID, n)
		for c.keys[key] != nil {
			n++
			key = fmt.Sprintf("%s_duplicated_%d", e.ID, n)
		}
	}

	for _, other := range existing {
		if c.resolver.Overlap(other, e) {
			other.MarkDuplicateConflict(e)
		}
	}

	c.entries = append(c.entries, Entry{Key: key, Entity: e})
	c.keys[key] = e
	c.byID[e.ID] = append(existing, e)
	c.byHash[e.Hash] = e
	return key, nil
}

// LookupOption narrows Get.
type LookupOption func(*lookup)

type lookup struct {
	sourcePath string
	anyVersion bool
	at         version.Version
}

// InSourceFile narrows candidates to those declared in path when the
// version filter alone leaves more than one.
func InSourceFile(path string) LookupOption {
	return func(l *lookup) { l.sourcePath = path }
}

// AnyVersion disables filtering by the current version.
func AnyVersion() LookupOption {
	return func(l *lookup) { l.anyVersion = true }
}

// AtVersion filters by v instead of the catalog's current version.
func AtVersion(v version.Version) LookupOption {
	return func(l *lookup) { l.at = v }
}

// Get resolves id to exactly one declaration. It returns (nil, nil) when
// nothing matches and an *AmbiguousLookupError when narrowing leaves more
// than one candidate.
func (c *Container) Get(id string, opts ...LookupOption) (*entity.Entity, error) {
	l := lookup{at: c.current}
	for _, opt := range opts {
		opt(&l)
	}

	var candidates []*entity.Entity
	for _, e := range c.byID[id] {
		if l.anyVersion || c.resolver.AvailableIn(e, l.at) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	if l.sourcePath != "" {
		narrowed := candidates[:0:0]
		for _, e := range candidates {
			if e.SourcePath == l.sourcePath {
				narrowed = append(narrowed, e)
			}
		}
		candidates = narrowed
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}
	err := &AmbiguousLookupError{ID: id, SourcePath: l.sourcePath}
	if !l.anyVersion {
		err.Version = l.at
	}
	for _, e := range candidates {
		err.Candidates = append(err.Candidates, e.SourcePath)
	}
	return nil, err
}

// GetByHash returns the entity with the given surrogate key regardless of
// the current version.
func (c *Container) GetByHash(hash string) *entity.Entity {
	return c.byHash[hash]
}

// GetByKey returns the entity stored under a storage key such as
// "foo_duplicated_1".
func (c *Container) GetByKey(key string) *entity.Entity {
	return c.keys[key]
}

// Entries returns every stored entity with its key, in insertion order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// All returns every stored entity in insertion order.
func (c *Container) All() []*entity.Entity {
	out := make([]*entity.Entity, len(c.entries))
	for i, en := range c.entries {
		out[i] = en.Entity
	}
	return out
}

// Variants returns every declaration stored for id, in insertion order.
func (c *Container) Variants(id string) []*entity.Entity {
	out := make([]*entity.Entity, len(c.byID[id]))
	copy(out, c.byID[id])
	return out
}

// Duplicated returns the ids stored more than once, in first-seen order.
func (c *Container) Duplicated() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, en := range c.entries {
		id := en.Entity.ID
		if seen[id] || len(c.byID[id]) < 2 {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (c *Container) Len() int { return len(c.entries) }
