package decl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/phpdoc"
)

// Fragment holds the entities extracted from one file. Members are not yet
// attached to their owners; that happens in the enrichment pass once every
// fragment is available.
type Fragment struct {
	Path     string
	Core     bool
	Entities []*entity.Entity
	Members  []*entity.Entity
	// Errors holds structural failures. The offending declarations are
	// absent from Entities and Members.
	Errors []error
	// Malformed holds attribute decode failures. Those declarations are
	// kept without the attribute's data.
	Malformed []error
}

// Len returns the number of entities in the fragment.
func (f *Fragment) Len() int { return len(f.Entities) + len(f.Members) }

// Convert builds the entities for the nodes of one file.
func Convert(path string, nodes []Node, core bool) *Fragment {
	f := &Fragment{Path: path, Core: core}
	built := make([]*entity.Entity, len(nodes))

	for i := range nodes {
		n := &nodes[i]
		var (
			e   *entity.Entity
			err error
		)
		if n.Kind.TopLevel() {
			e, err = entity.New(n.Kind, n.Name, n.Namespace)
		} else {
			e, err = entity.NewMember(n.Kind, n.OwnerName, n.Name)
		}
		if err != nil {
			var se *entity.StructuralError
			if errors.As(err, &se) {
				se.Path, se.Line = path, n.Line
			}
			f.Errors = append(f.Errors, err)
			continue
		}

		e.SourcePath = path
		e.Line = n.Line
		e.Core = core
		var owner *Node
		if n.Owner >= 0 && n.Owner < len(nodes) {
			owner = &nodes[n.Owner]
			if o := built[n.Owner]; o != nil {
				e.OwnerHash = o.Hash
			}
		}
		if err := fill(e, n, owner); err != nil {
			f.Malformed = append(f.Malformed, fmt.Errorf("decl: %s:%d: %s: %w", path, n.Line, e.ID, err))
		}

		built[i] = e
		if n.Kind.TopLevel() {
			f.Entities = append(f.Entities, e)
		} else {
			f.Members = append(f.Members, e)
		}
	}
	return f
}

// fill copies everything but identity from n into e. A malformed attribute
// is returned as an error after the rest of e is filled.
func fill(e *entity.Entity, n *Node, owner *Node) error {
	doc, docErr := phpdoc.Parse(n.Doc)
	e.Doc = doc.Tags
	e.HasInheritDoc = doc.InheritDoc
	e.DocParseError = docErr
	e.IsDeprecated = doc.Deprecated || hasDeprecatedAttribute(n.Attributes)

	applyModifiers(e, n, owner)

	switch n.Kind {
	case entity.KindClass:
		if len(n.Extends) > 0 {
			e.ParentName = n.Extends[0]
		}
		e.InterfaceNames = n.Implements
	case entity.KindInterface:
		e.InterfaceNames = append(append([]string(nil), n.Extends...), n.Implements...)
	case entity.KindEnum:
		e.InterfaceNames = n.Implements
	}

	e.Value = n.Value
	e.Types.FromSignature = SplitTypes(n.Type)
	if n.Kind.IsCallable() {
		e.Types.FromDoc = doc.Tags.Returns
	} else {
		e.Types.FromDoc = doc.Tags.Vars
	}

	var errs []string
	if err := typeAware(n.Attributes, &e.Types); err != nil {
		errs = append(errs, err.Error())
	}
	r, err := availableRange(n.Attributes)
	if err != nil {
		errs = append(errs, err.Error())
	}
	e.Range = r

	for i, p := range n.Params {
		param, err := convertParam(i, p, doc.Tags.Params)
		if err != nil {
			errs = append(errs, fmt.Sprintf("parameter $%s: %v", p.Name, err))
		}
		e.Parameters = append(e.Parameters, param)
	}
	if len(errs) > 0 {
		return fmt.Errorf("attributes: %s", strings.Join(errs, "; "))
	}
	return nil
}

func applyModifiers(e *entity.Entity, n *Node, owner *Node) {
	if !n.Kind.TopLevel() {
		e.Visibility = entity.VisibilityPublic
	}
	for _, m := range n.Modifiers {
		switch strings.ToLower(m) {
		case "public":
			e.Visibility = entity.VisibilityPublic
		case "protected":
			e.Visibility = entity.VisibilityProtected
		case "private":
			e.Visibility = entity.VisibilityPrivate
		case "static":
			e.IsStatic = true
		case "final":
			e.IsFinal = true
		case "abstract":
			e.IsAbstract = true
		case "readonly":
			e.IsReadonly = true
		}
	}
	switch {
	case n.Kind == entity.KindEnum:
		e.IsFinal = true
	case n.Kind == entity.KindInterface:
		e.IsAbstract = true
	case owner != nil && owner.Kind == entity.KindInterface && n.Kind == entity.KindMethod:
		e.IsAbstract = true
	case owner != nil && owner.Kind == entity.KindClass && n.Kind == entity.KindProperty && owner.HasModifier("readonly"):
		e.IsReadonly = true
	}
}

func convertParam(i int, p Param, tags []entity.ParamTag) (*entity.Parameter, error) {
	param := &entity.Parameter{
		Name:          strings.TrimPrefix(p.Name, "$"),
		Index:         i,
		IsOptional:    p.HasDefault || p.Variadic,
		IsVariadic:    p.Variadic,
		IsByReference: p.ByRef,
		DefaultValue:  p.Default,
		IsDeprecated:  hasDeprecatedAttribute(p.Attributes),
	}
	param.Types.FromSignature = SplitTypes(p.Type)
	for _, t := range tags {
		if t.Name == param.Name {
			param.Types.FromDoc = t.Types
			break
		}
	}
	if err := typeAware(p.Attributes, &param.Types); err != nil {
		return param, err
	}
	r, err := availableRange(p.Attributes)
	if err != nil {
		return param, err
	}
	param.Range = r
	return param, nil
}

// SplitTypes splits a declared type into its union members. A nullable
// "?T" becomes T and null.
func SplitTypes(t string) []string {
	t = strings.TrimSpace(t)
	if t == "" {
		return nil
	}
	if strings.HasPrefix(t, "?") {
		return append(phpdoc.SplitUnion(t[1:]), "null")
	}
	return phpdoc.SplitUnion(t)
}
