package store

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// payloadVersion is bumped whenever the encoded layout changes; records
// written with another version are rejected on load.
const payloadVersion = 1

type payload struct {
	V int `msgpack:"v"`

	Kind      string `msgpack:"kind"`
	Name      string `msgpack:"name"`
	ID        string `msgpack:"id"`
	Namespace string `msgpack:"ns,omitempty"`

	Visibility string `msgpack:"vis,omitempty"`
	Static     bool   `msgpack:"static,omitempty"`
	Final      bool   `msgpack:"final,omitempty"`
	Readonly   bool   `msgpack:"readonly,omitempty"`
	Abstract   bool   `msgpack:"abstract,omitempty"`
	Deprecated bool   `msgpack:"deprecated,omitempty"`

	Parameters []paramPayload `msgpack:"params,omitempty"`
	Types      typesPayload   `msgpack:"types"`
	Value      string         `msgpack:"value,omitempty"`

	Doc           docPayload `msgpack:"doc"`
	HasInheritDoc bool       `msgpack:"inheritdoc,omitempty"`
	DocParseError string     `msgpack:"doc_error,omitempty"`

	From       string `msgpack:"from,omitempty"`
	To         string `msgpack:"to,omitempty"`
	SourcePath string `msgpack:"path"`
	Line       int    `msgpack:"line"`
	Core       bool   `msgpack:"core,omitempty"`

	Hash           string   `msgpack:"hash"`
	OwnerID        string   `msgpack:"owner,omitempty"`
	OwnerHash      string   `msgpack:"owner_hash,omitempty"`
	ParentName     string   `msgpack:"parent,omitempty"`
	InterfaceNames []string `msgpack:"interfaces,omitempty"`
}

type typesPayload struct {
	Signature []string            `msgpack:"sig,omitempty"`
	Doc       []string            `msgpack:"doc,omitempty"`
	Attribute map[string][]string `msgpack:"attr,omitempty"`
	Default   []string            `msgpack:"default,omitempty"`
}

type paramPayload struct {
	Name       string       `msgpack:"name"`
	Types      typesPayload `msgpack:"types"`
	Optional   bool         `msgpack:"optional,omitempty"`
	Variadic   bool         `msgpack:"variadic,omitempty"`
	ByRef      bool         `msgpack:"byref,omitempty"`
	Default    string       `msgpack:"default,omitempty"`
	Deprecated bool         `msgpack:"deprecated,omitempty"`
	From       string       `msgpack:"from,omitempty"`
	To         string       `msgpack:"to,omitempty"`
}

type docPayload struct {
	Since      []string          `msgpack:"since,omitempty"`
	Removed    []string          `msgpack:"removed,omitempty"`
	Deprecated []string          `msgpack:"deprecated,omitempty"`
	Links      []string          `msgpack:"links,omitempty"`
	See        []string          `msgpack:"see,omitempty"`
	Params     []entity.ParamTag `msgpack:"params,omitempty"`
	Returns    []string          `msgpack:"returns,omitempty"`
	Vars       []string          `msgpack:"vars,omitempty"`
	Templates  []string          `msgpack:"templates,omitempty"`
}

// EncodeEntity turns e into a record. Enrichment links are not stored;
// they are rebuilt on every load.
func EncodeEntity(e *entity.Entity) (Record, error) {
	p := payload{
		V:              payloadVersion,
		Kind:           e.Kind.String(),
		Name:           e.Name,
		ID:             e.ID,
		Namespace:      e.Namespace,
		Visibility:     string(e.Visibility),
		Static:         e.IsStatic,
		Final:          e.IsFinal,
		Readonly:       e.IsReadonly,
		Abstract:       e.IsAbstract,
		Deprecated:     e.IsDeprecated,
		Types:          encodeTypes(e.Types),
		Value:          e.Value,
		Doc:            encodeDoc(e.Doc),
		HasInheritDoc:  e.HasInheritDoc,
		From:           string(e.Range.From),
		To:             string(e.Range.To),
		SourcePath:     e.SourcePath,
		Line:           e.Line,
		Core:           e.Core,
		Hash:           e.Hash,
		OwnerID:        e.OwnerID,
		OwnerHash:      e.OwnerHash,
		ParentName:     e.ParentName,
		InterfaceNames: e.InterfaceNames,
	}
	if e.DocParseError != nil {
		p.DocParseError = e.DocParseError.Error()
	}
	for _, prm := range e.Parameters {
		p.Parameters = append(p.Parameters, paramPayload{
			Name:       prm.Name,
			Types:      encodeTypes(prm.Types),
			Optional:   prm.IsOptional,
			Variadic:   prm.IsVariadic,
			ByRef:      prm.IsByReference,
			Default:    prm.DefaultValue,
			Deprecated: prm.IsDeprecated,
			From:       string(prm.Range.From),
			To:         string(prm.Range.To),
		})
	}

	b, err := msgpack.Marshal(&p)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", e, err)
	}
	return Record{
		Hash:      e.Hash,
		Kind:      p.Kind,
		FQID:      e.ID,
		Name:      e.Name,
		OwnerHash: e.OwnerHash,
		Line:      e.Line,
		Payload:   b,
	}, nil
}

// DecodeEntity rebuilds the entity stored in r.
func DecodeEntity(r Record) (*entity.Entity, error) {
	var p payload
	if err := msgpack.Unmarshal(r.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode entity %s: %w", r.Hash, err)
	}
	if p.V != payloadVersion {
		return nil, fmt.Errorf("decode entity %s: payload version %d, want %d", r.Hash, p.V, payloadVersion)
	}
	kind, ok := entity.ParseKind(p.Kind)
	if !ok {
		return nil, fmt.Errorf("decode entity %s: unknown kind %q", r.Hash, p.Kind)
	}
	e := &entity.Entity{
		Kind:           kind,
		Name:           p.Name,
		ID:             p.ID,
		Namespace:      p.Namespace,
		Visibility:     entity.Visibility(p.Visibility),
		IsStatic:       p.Static,
		IsFinal:        p.Final,
		IsReadonly:     p.Readonly,
		IsAbstract:     p.Abstract,
		IsDeprecated:   p.Deprecated,
		Types:          decodeTypes(p.Types),
		Value:          p.Value,
		Doc:            decodeDoc(p.Doc),
		HasInheritDoc:  p.HasInheritDoc,
		Range:          entity.VersionRange{From: version.Version(p.From), To: version.Version(p.To)},
		SourcePath:     p.SourcePath,
		Line:           p.Line,
		Core:           p.Core,
		Muted:          make(entity.MutedProblems),
		Hash:           p.Hash,
		OwnerID:        p.OwnerID,
		OwnerHash:      p.OwnerHash,
		ParentName:     p.ParentName,
		InterfaceNames: p.InterfaceNames,
	}
	if p.DocParseError != "" {
		e.DocParseError = errors.New(p.DocParseError)
	}
	for i, prm := range p.Parameters {
		e.Parameters = append(e.Parameters, &entity.Parameter{
			Name:          prm.Name,
			Index:         i,
			Types:         decodeTypes(prm.Types),
			IsOptional:    prm.Optional,
			IsVariadic:    prm.Variadic,
			IsByReference: prm.ByRef,
			DefaultValue:  prm.Default,
			IsDeprecated:  prm.Deprecated,
			Range:         entity.VersionRange{From: version.Version(prm.From), To: version.Version(prm.To)},
		})
	}
	return e, nil
}

func encodeTypes(t entity.TypeSet) typesPayload {
	p := typesPayload{Signature: t.FromSignature, Doc: t.FromDoc, Default: t.AttributeDefault}
	if len(t.FromAttribute) > 0 {
		p.Attribute = make(map[string][]string, len(t.FromAttribute))
		for v, types := range t.FromAttribute {
			p.Attribute[string(v)] = types
		}
	}
	return p
}

func decodeTypes(p typesPayload) entity.TypeSet {
	t := entity.TypeSet{FromSignature: p.Signature, FromDoc: p.Doc, AttributeDefault: p.Default}
	if len(p.Attribute) > 0 {
		t.FromAttribute = make(map[version.Version][]string, len(p.Attribute))
		for v, types := range p.Attribute {
			t.FromAttribute[version.Version(v)] = types
		}
	}
	return t
}

func encodeDoc(d entity.DocTags) docPayload {
	return docPayload{
		Since:      versionsToStrings(d.Since),
		Removed:    versionsToStrings(d.Removed),
		Deprecated: d.Deprecated,
		Links:      d.Links,
		See:        d.See,
		Params:     d.Params,
		Returns:    d.Returns,
		Vars:       d.Vars,
		Templates:  d.Templates,
	}
}

func decodeDoc(p docPayload) entity.DocTags {
	return entity.DocTags{
		Since:      stringsToVersions(p.Since),
		Removed:    stringsToVersions(p.Removed),
		Deprecated: p.Deprecated,
		Links:      p.Links,
		See:        p.See,
		Params:     p.Params,
		Returns:    p.Returns,
		Vars:       p.Vars,
		Templates:  p.Templates,
	}
}

func versionsToStrings(vs []version.Version) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func stringsToVersions(ss []string) []version.Version {
	if len(ss) == 0 {
		return nil
	}
	out := make([]version.Version, len(ss))
	for i, s := range ss {
		out[i] = version.Version(s)
	}
	return out
}
