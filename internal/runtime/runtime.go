// Package runtime evaluates user supplied Risor expressions against catalog
// entities. Expressions see the entity's fields as globals and must produce
// a boolean, e.g.
//
//	kind == "method" && static && !deprecated
//
// Longer predicates can live in .risor files loaded from disk or an fs.FS,
// and may import helper modules from the same location.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

// Runtime holds the shared configuration for predicate evaluation.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	resolver   *availability.Resolver
	current    version.Version
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads predicate scripts and their imports from fsys instead
// of from disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger routes the scripts' log.info/warn/error calls to logger.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithAvailability exposes the versions, since and until globals, computed
// by resolver, and the current global.
func WithAvailability(resolver *availability.Resolver, current version.Version) RuntimeOption {
	return func(r *Runtime) {
		r.resolver = resolver
		r.current = current
	}
}

// NewRuntime creates a Runtime that resolves relative script paths against
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Predicate is a compiled filter expression.
type Predicate struct {
	rt     *Runtime
	source string
	label  string
}

// Compile wraps an inline expression.
func (r *Runtime) Compile(expr string) (*Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("runtime: empty predicate")
	}
	return &Predicate{rt: r, source: expr, label: "<inline>"}, nil
}

// LoadPredicate reads a predicate script. The value of its last expression
// is the verdict.
func (r *Runtime) LoadPredicate(path string) (*Predicate, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("runtime: script %s is empty", path)
	}
	return &Predicate{rt: r, source: src, label: path}, nil
}

// String returns the predicate source.
func (p *Predicate) String() string { return p.source }

// Match evaluates the predicate for e.
func (p *Predicate) Match(ctx context.Context, e *entity.Entity) (bool, error) {
	if e == nil {
		return false, nil
	}
	globals := p.rt.buildGlobals(e)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := p.rt.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, p.source, opts...)
	if err != nil {
		return false, fmt.Errorf("runtime: predicate %s on %s: %w", p.label, e.ID, err)
	}
	b, ok := result.(*object.Bool)
	if !ok {
		typ := "nil"
		if result != nil {
			typ = string(result.Type())
		}
		return false, fmt.Errorf("runtime: predicate %s returned %s, want bool", p.label, typ)
	}
	return b.Value(), nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals exposes e to a predicate.
func (r *Runtime) buildGlobals(e *entity.Entity) map[string]any {
	owner, ownerKind := "", ""
	if e.Owner != nil {
		owner, ownerKind = e.Owner.ID, e.Owner.Kind.String()
	} else if e.OwnerID != "" {
		owner = e.OwnerID
	}

	globals := map[string]any{
		"id":                 object.NewString(e.ID),
		"name":               object.NewString(e.Name),
		"kind":               object.NewString(e.Kind.String()),
		"namespace":          object.NewString(e.Namespace),
		"owner":              object.NewString(owner),
		"owner_kind":         object.NewString(ownerKind),
		"visibility":         object.NewString(string(e.Visibility)),
		"static":             object.NewBool(e.IsStatic),
		"final":              object.NewBool(e.IsFinal),
		"abstract":           object.NewBool(e.IsAbstract),
		"readonly":           object.NewBool(e.IsReadonly),
		"deprecated":         object.NewBool(e.IsDeprecated),
		"core":               object.NewBool(e.Core),
		"duplicate_conflict": object.NewBool(e.DuplicateConflict),
		"source":             object.NewString(e.SourcePath),
		"line":               object.NewInt(int64(e.Line)),
		"params":             object.NewInt(int64(len(e.Parameters))),
		"has_member":         makeHasMemberFn(e),
		"log":                mustProxy(&logObject{logger: r.logger, entity: e.ID}),
	}

	versions := []object.Object{}
	since, until := "", ""
	if r.resolver != nil {
		for _, v := range r.resolver.Versions(e) {
			versions = append(versions, object.NewString(v.String()))
		}
		if lo, ok := r.resolver.LowerBound(e); ok {
			since = lo.String()
		}
		if hi, ok := r.resolver.UpperBound(e); ok {
			until = hi.String()
		}
	}
	globals["versions"] = object.NewList(versions)
	globals["since"] = object.NewString(since)
	globals["until"] = object.NewString(until)
	globals["current"] = object.NewString(r.current.String())
	return globals
}

// makeHasMemberFn builds has_member(name) and has_member(name, kind). Kind
// defaults to method.
func makeHasMemberFn(e *entity.Entity) *object.Builtin {
	return object.NewBuiltin("has_member", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsError("has_member", 1, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("has_member: expected string name, got %s", args[0].Type())
		}
		kind := entity.KindMethod
		if len(args) == 2 {
			kindStr, ok := args[1].(*object.String)
			if !ok {
				return object.Errorf("has_member: expected string kind, got %s", args[1].Type())
			}
			k, ok := entity.ParseKind(kindStr.Value())
			if !ok || k.TopLevel() {
				return object.Errorf("has_member: unknown member kind %q", kindStr.Value())
			}
			kind = k
		}
		return object.NewBool(len(e.MembersNamed(kind, name.Value())) > 0)
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
	entity string
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "entity", l.entity)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "entity", l.entity)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "entity", l.entity)
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
