package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/decl"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
	"github.com/jward/stubcat/internal/version"
)

// Build turns a snapshot into a frozen reference catalog. Every entity is
// core and carries no version constraints: the snapshot describes exactly
// one interpreter version.
func Build(ctx context.Context, snap *Snapshot, resolver *availability.Resolver, current version.Version) (*catalog.Catalog, *graph.Result, error) {
	cat := catalog.New(resolver, current)
	var members []*entity.Entity
	path := "reflection:" + snap.Version

	add := func(e *entity.Entity) error {
		e.Core = true
		e.SourcePath = path
		if _, err := cat.Add(e); err != nil {
			return fmt.Errorf("reference: build: %w", err)
		}
		return nil
	}

	for _, fn := range snap.Functions {
		e, err := entity.New(entity.KindFunction, fn.Name, fn.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("reference: build: %w", err)
		}
		fillFunction(e, fn)
		if err := add(e); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range snap.Constants {
		e, err := entity.New(entity.KindConstant, c.Name, c.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("reference: build: %w", err)
		}
		e.Value = c.Value
		e.Types.FromSignature = decl.SplitTypes(c.Type)
		if err := add(e); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range snap.Classes {
		kind, ok := entity.ParseKind(c.Kind)
		if !ok || !kind.IsContainer() {
			return nil, nil, fmt.Errorf("reference: build: class %q has kind %q", c.Name, c.Kind)
		}
		e, err := entity.New(kind, c.Name, c.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("reference: build: %w", err)
		}
		e.ParentName = c.Parent
		e.InterfaceNames = c.Interfaces
		e.IsFinal = c.Final
		e.IsAbstract = c.Abstract
		e.IsReadonly = c.Readonly
		if err := add(e); err != nil {
			return nil, nil, err
		}
		ms, err := classMembers(e, c)
		if err != nil {
			return nil, nil, err
		}
		for _, m := range ms {
			m.Core = true
			m.SourcePath = path
			m.OwnerHash = e.Hash
		}
		members = append(members, ms...)
	}

	res, err := graph.New(cat).Run(ctx, members)
	if err != nil {
		return nil, nil, fmt.Errorf("reference: build: %w", err)
	}
	cat.Freeze()
	return cat, res, nil
}

func classMembers(owner *entity.Entity, c Class) ([]*entity.Entity, error) {
	var out []*entity.Entity
	newMember := func(kind entity.Kind, name string) (*entity.Entity, error) {
		m, err := entity.NewMember(kind, owner.ID, name)
		if err != nil {
			return nil, fmt.Errorf("reference: build %s: %w", owner.ID, err)
		}
		out = append(out, m)
		return m, nil
	}

	for _, fn := range c.Methods {
		m, err := newMember(entity.KindMethod, fn.Name)
		if err != nil {
			return nil, err
		}
		fillFunction(m, fn)
		m.Visibility = visibility(fn.Visibility)
		m.IsStatic = fn.Static
		m.IsFinal = fn.Final
		m.IsAbstract = fn.Abstract
	}
	for _, p := range c.Properties {
		m, err := newMember(entity.KindProperty, p.Name)
		if err != nil {
			return nil, err
		}
		m.Visibility = visibility(p.Visibility)
		m.IsStatic = p.Static
		m.IsReadonly = p.Readonly
		m.Types.FromSignature = decl.SplitTypes(p.Type)
	}
	for _, k := range c.Constants {
		m, err := newMember(entity.KindConstant, k.Name)
		if err != nil {
			return nil, err
		}
		m.Visibility = visibility(k.Visibility)
		m.IsFinal = k.Final
		m.Value = k.Value
		m.Types.FromSignature = decl.SplitTypes(k.Type)
	}
	for _, k := range c.Cases {
		m, err := newMember(entity.KindEnumCase, k.Name)
		if err != nil {
			return nil, err
		}
		m.Value = k.Value
	}
	return out, nil
}

func fillFunction(e *entity.Entity, fn Function) {
	e.IsDeprecated = fn.Deprecated
	e.Types.FromSignature = decl.SplitTypes(fn.ReturnType)
	for i, p := range fn.Parameters {
		param := &entity.Parameter{
			Name:          strings.TrimPrefix(p.Name, "$"),
			Index:         i,
			IsOptional:    p.Optional || p.Variadic,
			IsVariadic:    p.Variadic,
			IsByReference: p.ByRef,
			DefaultValue:  p.Default,
			IsDeprecated:  p.Deprecated,
		}
		param.Types.FromSignature = decl.SplitTypes(p.Type)
		e.Parameters = append(e.Parameters, param)
	}
}

func visibility(s string) entity.Visibility {
	switch strings.ToLower(s) {
	case "protected":
		return entity.VisibilityProtected
	case "private":
		return entity.VisibilityPrivate
	}
	return entity.VisibilityPublic
}
