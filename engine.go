package stubcat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jward/stubcat/internal/availability"
	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/config"
	"github.com/jward/stubcat/internal/decl"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/graph"
	"github.com/jward/stubcat/internal/runtime"
	"github.com/jward/stubcat/internal/store"
	"github.com/jward/stubcat/internal/version"
)

var tracer = otel.Tracer("stubcat")

// ErrNotBuilt is returned by operations that need a frozen catalog before
// Build has succeeded.
var ErrNotBuilt = errors.New("stubcat: catalog not built")

// Engine orchestrates the stubcat pipeline: file discovery, change
// detection, extraction into per-file fragments, the enrichment pass and
// query access to the frozen catalog.
type Engine struct {
	store    store.DataStore
	source   decl.Source
	core     *decl.CoreMatcher
	seq      *version.Sequence
	current  version.Version
	resolver *availability.Resolver
	logger   *slog.Logger
	muted    config.MuteTable

	// Predicate scripts and their imports come from scriptsFS when set,
	// otherwise from scriptsDir.
	scriptsDir string
	scriptsFS  fs.FS

	workers     int
	useParallel bool

	cat *catalog.Catalog
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSequence sets the release history. The default is
// version.KnownReleases.
func WithSequence(seq *version.Sequence) Option {
	return func(e *Engine) { e.seq = seq }
}

// WithCurrentVersion selects which variant of a duplicated declaration is
// under test. The default is the newest release of the sequence.
func WithCurrentVersion(v version.Version) Option {
	return func(e *Engine) { e.current = v }
}

// WithCorePaths marks files with one of the given path segments as the
// core surface. Without it every file is core.
func WithCorePaths(segments ...string) Option {
	return func(e *Engine) { e.core = decl.NewCoreMatcher(segments...) }
}

// WithWorkers caps the extraction worker pool. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// parses files on a worker pool and a single writer commits their batches to
// SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) { e.useParallel = parallel }
}

// WithMutedProblems records accepted problems on matching entities during
// Build and on the reference catalog during Compare.
func WithMutedProblems(t config.MuteTable) Option {
	return func(e *Engine) { e.muted = t }
}

// WithSource replaces the tree-sitter PHP declaration source.
func WithSource(s decl.Source) Option {
	return func(e *Engine) { e.source = s }
}

// WithScriptsDir sets the directory predicate scripts are loaded from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) { e.scriptsDir = dir }
}

// WithScriptsFS loads predicate scripts from fsys, e.g. the embedded stock
// predicates. It takes precedence over WithScriptsDir.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.scriptsFS = fsys }
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		source:      decl.NewPHPSource(),
		core:        decl.NewCoreMatcher(),
		logger:      slog.Default(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == nil {
		e.seq = version.Default()
	}
	if e.current == "" {
		e.current = e.seq.Max()
	}
	if !e.seq.Contains(e.current) {
		return nil, fmt.Errorf("stubcat: current version %s is not in the release sequence", e.current)
	}
	e.resolver = availability.New(e.seq)

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stubcat: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("stubcat: migrate: %w", err)
	}
	e.store = s
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying persistence for direct access.
func (e *Engine) Store() store.DataStore {
	return e.store
}

// Current returns the version under test.
func (e *Engine) Current() version.Version { return e.current }

// Sequence returns the release history.
func (e *Engine) Sequence() *version.Sequence { return e.seq }

// Catalog returns the catalog produced by the last successful Build, or nil.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// IndexResult summarizes one indexing run.
type IndexResult struct {
	Indexed int
	Skipped int
	Pruned  []string

	// Structural holds declarations that could not be built. Their files
	// were still indexed without them.
	Structural []error
	// Malformed holds declarations indexed without an attribute that
	// could not be decoded.
	Malformed []error
}

// IndexFiles indexes the given PHP files. Unchanged files (same content
// hash and core classification) are skipped; changed files have their
// stored entities replaced. Errors on individual files are logged and
// collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (*IndexResult, error) {
	ctx, span := tracer.Start(ctx, "stubcat.Engine.IndexFiles")
	defer span.End()

	res := &IndexResult{}
	var (
		items []workItem
		errs  []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("stubcat: index: %w", err)
		}
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			res.Skipped++
			continue
		}
		items = append(items, item)
	}

	var results []extracted
	var err error
	if e.useParallel {
		results, err = e.extractParallel(ctx, items)
	} else {
		results, err = e.extractSerial(ctx, items)
	}
	if err != nil {
		return res, fmt.Errorf("stubcat: index: %w", err)
	}

	// Single writer: batches are committed in input order.
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", r.item.path, r.err))
			continue
		}
		if err := e.store.CommitBatch(r.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", r.item.path, err))
			continue
		}
		res.Indexed++
		res.Structural = append(res.Structural, r.structural...)
		res.Malformed = append(res.Malformed, r.malformed...)
	}

	span.SetAttributes(
		attribute.Int("files.indexed", res.Indexed),
		attribute.Int("files.skipped", res.Skipped),
		attribute.Int("declarations.structural_errors", len(res.Structural)),
		attribute.Int("declarations.malformed_attributes", len(res.Malformed)),
	)
	if len(errs) > 0 {
		span.SetStatus(codes.Error, "indexing failed")
		return res, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return res, nil
}

// prepareFile reads path and reports whether it can be skipped.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	if !isDeclarationFile(path) {
		return workItem{}, true, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	core := e.core.Match(path)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if store.Unchanged(existing, src, core) {
		return workItem{}, true, nil
	}
	return workItem{path: path, src: src, hash: store.ContentHash(src), core: core}, false, nil
}

// extractFile parses one file into a batch. Declarations that fail to
// build are logged and returned; the rest of the file is kept.
func (e *Engine) extractFile(ctx context.Context, item workItem) extracted {
	out := extracted{item: item}
	nodes, err := e.source.Parse(ctx, item.path, item.src)
	if err != nil {
		out.err = fmt.Errorf("parse: %w", err)
		return out
	}
	frag := decl.Convert(item.path, nodes, item.core)
	for _, err := range frag.Errors {
		e.logger.Warn("declaration skipped", "file", item.path, "error", err)
	}
	for _, err := range frag.Malformed {
		e.logger.Warn("malformed attribute", "file", item.path, "error", err)
	}
	out.structural, out.malformed = frag.Errors, frag.Malformed

	out.batch, out.err = store.NewBatch(item.path, item.hash, item.core, frag.Entities, frag.Members, len(frag.Errors))
	return out
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

func isDeclarationFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".php")
}

// IndexDirectory walks root, indexes every .php file and drops stored files
// under root that no longer exist. Hidden directories, node_modules and
// vendor are skipped.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexResult, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("stubcat: index directory: %w", err)
	}
	paths, err := walkListFiles(root)
	if err != nil {
		return nil, err
	}
	res, err := e.IndexFiles(ctx, paths)
	if err != nil {
		return res, err
	}

	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	stored, err := e.store.Files()
	if err != nil {
		return res, fmt.Errorf("stubcat: list files: %w", err)
	}
	prefix := root + string(filepath.Separator)
	for _, f := range stored {
		if !strings.HasPrefix(f.Path, prefix) {
			keep[f.Path] = true
		}
	}
	res.Pruned, err = e.store.PruneFiles(keep)
	if err != nil {
		return res, fmt.Errorf("stubcat: prune: %w", err)
	}
	if len(res.Pruned) > 0 {
		e.logger.Info("pruned deleted files", "count", len(res.Pruned))
	}
	return res, nil
}

// walkListFiles returns the declaration files under root in walk order.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if isDeclarationFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// BuildResult summarizes the enrichment pass.
type BuildResult struct {
	Files      int
	Entities   int
	Members    int
	Attached   int
	Links      int
	Duplicated int
	Conflicts  int
	Muted      int
	Unresolved []graph.Unresolved
	Cycles     []*graph.CycleError
}

// Err joins the structural problems found while building: inheritance
// cycles. Unresolved names are reported but are not errors.
func (r *BuildResult) Err() error {
	errs := make([]error, 0, len(r.Cycles))
	for _, c := range r.Cycles {
		errs = append(errs, c)
	}
	return errors.Join(errs...)
}

// Build loads every stored fragment, adds the entities to a new catalog,
// runs the enrichment pass once all fragments are in, applies muted
// problems and freezes the catalog.
func (e *Engine) Build(ctx context.Context) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "stubcat.Engine.Build")
	defer span.End()

	frags, err := e.store.LoadFragments()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stubcat: build: %w", err)
	}

	cat := catalog.New(e.resolver, e.current)
	res := &BuildResult{Files: len(frags)}
	var members []*entity.Entity
	for _, f := range frags {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("stubcat: build: %w", err)
		}
		for _, ent := range f.Entities {
			if _, err := cat.Add(ent); err != nil {
				return nil, fmt.Errorf("stubcat: build: %s: %w", f.File.Path, err)
			}
			res.Entities++
		}
		members = append(members, f.Members...)
	}
	res.Members = len(members)

	g, err := graph.New(cat, graph.WithLogger(e.logger)).Run(ctx, members)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stubcat: build: %w", err)
	}
	res.Attached, res.Links = g.Attached, g.Links
	res.Unresolved, res.Cycles = g.Unresolved, g.Cycles
	for _, c := range g.Cycles {
		e.logger.Warn("inheritance cycle", "error", c)
	}

	res.Muted = e.muted.Apply(cat.All())
	res.Duplicated = g.Duplicated
	for _, k := range entity.TopLevelKinds {
		cont := cat.Container(k)
		res.Duplicated += len(cont.Duplicated())
		for _, ent := range cont.All() {
			if ent.DuplicateConflict {
				res.Conflicts++
			}
			for _, m := range ent.Members {
				if m.DuplicateConflict {
					res.Conflicts++
				}
			}
		}
	}

	cat.Freeze()
	e.cat = cat
	if err := e.store.SetMeta("built_version", e.current.String()); err != nil {
		return nil, fmt.Errorf("stubcat: build: %w", err)
	}

	span.SetAttributes(
		attribute.String("version.current", e.current.String()),
		attribute.Int("files", res.Files),
		attribute.Int("entities", res.Entities),
		attribute.Int("members", res.Members),
		attribute.Int("duplicates.conflicts", res.Conflicts),
		attribute.Int("graph.cycles", len(res.Cycles)),
	)
	e.logger.Info("catalog built",
		"version", e.current.String(),
		"files", res.Files,
		"entities", res.Entities,
		"members", res.Members,
		"conflicts", res.Conflicts)
	return res, nil
}

// newRuntime returns a predicate runtime bound to the engine's scripts and
// release history.
func (e *Engine) newRuntime() *runtime.Runtime {
	opts := []runtime.RuntimeOption{
		runtime.WithLogger(e.logger),
		runtime.WithAvailability(e.resolver, e.current),
	}
	if e.scriptsFS != nil {
		opts = append(opts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	return runtime.NewRuntime(e.scriptsDir, opts...)
}

func (e *Engine) numWorkers(items int) int {
	n := e.workers
	if n <= 0 {
		n = goruntime.GOMAXPROCS(0)
	}
	return max(1, min(n, items))
}
