package stubcat

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jward/stubcat/internal/compare"
	"github.com/jward/stubcat/internal/reference"
	"github.com/jward/stubcat/internal/runtime"
)

type compareConfig struct {
	where     string
	whereFile string
	coreOnly  bool
	links     compare.LinkChecker
}

// CompareOption configures one Compare call.
type CompareOption func(*compareConfig)

// WithWhere limits the comparison to entities for which the Risor
// expression is true.
func WithWhere(expr string) CompareOption {
	return func(c *compareConfig) { c.where = expr }
}

// WithWhereFile is WithWhere with the expression loaded from a script file,
// resolved against the scripts directory.
func WithWhereFile(path string) CompareOption {
	return func(c *compareConfig) { c.whereFile = path }
}

// WithCoreOnly skips declarations outside the core surface.
func WithCoreOnly() CompareOption {
	return func(c *compareConfig) { c.coreOnly = true }
}

// WithLinks checks the @link and @see URLs of compared declarations.
func WithLinks(l compare.LinkChecker) CompareOption {
	return func(c *compareConfig) { c.links = l }
}

// Compare checks the built catalog against the reference snapshot and
// returns one verdict per compared top-level entity.
func (e *Engine) Compare(ctx context.Context, snap *reference.Snapshot, opts ...CompareOption) (*compare.Report, error) {
	if e.cat == nil {
		return nil, ErrNotBuilt
	}
	ctx, span := tracer.Start(ctx, "stubcat.Engine.Compare")
	defer span.End()

	var cfg compareConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ref, res, err := reference.Build(ctx, snap, e.resolver, e.current)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stubcat: compare: %w", err)
	}
	for _, err := range res.Errs() {
		e.logger.Debug("reference graph", "error", err)
	}
	e.muted.Apply(ref.All())

	strategy, predErr, err := e.strategy(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("stubcat: compare: %w", err)
	}
	copts := []compare.Option{compare.WithStrategy(strategy), compare.WithLogger(e.logger)}
	if cfg.links != nil {
		copts = append(copts, compare.WithLinkChecker(cfg.links))
	}
	cmp, err := compare.New(e.cat, ref, copts...)
	if err != nil {
		return nil, fmt.Errorf("stubcat: compare: %w", err)
	}
	report, err := cmp.Compare(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stubcat: compare: %w", err)
	}
	if err := predErr(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stubcat: compare: %w", err)
	}

	failures := len(report.Failures())
	span.SetAttributes(
		attribute.String("version.current", e.current.String()),
		attribute.String("version.reference", snap.Version),
		attribute.Int("verdicts", len(report.Verdicts)),
		attribute.Int("verdicts.failed", failures),
	)
	e.logger.Info("comparison finished",
		"version", e.current.String(),
		"verdicts", len(report.Verdicts),
		"failed", failures)
	return report, nil
}

// strategy composes the comparison filter. The returned func reports the
// first predicate evaluation error, since strategies cannot fail.
func (e *Engine) strategy(ctx context.Context, cfg compareConfig) (compare.Strategy, func() error, error) {
	parts := []compare.Strategy{compare.DefaultStrategy}
	if cfg.coreOnly {
		parts = append(parts, compare.CoreOnly)
	}
	noErr := func() error { return nil }
	if cfg.where == "" && cfg.whereFile == "" {
		return compare.All(parts...), noErr, nil
	}

	rt := e.newRuntime()
	var (
		pred *runtime.Predicate
		err  error
	)
	if cfg.whereFile != "" {
		pred, err = rt.LoadPredicate(cfg.whereFile)
	} else {
		pred, err = rt.Compile(cfg.where)
	}
	if err != nil {
		return nil, nil, err
	}

	var (
		mu    sync.Mutex
		first error
	)
	parts = append(parts, compare.Where(func(p compare.Pair) bool {
		ok, err := pred.Match(ctx, p.Subject())
		if err != nil {
			mu.Lock()
			if first == nil {
				first = err
			}
			mu.Unlock()
			return false
		}
		return ok
	}))
	return compare.All(parts...), func() error {
		mu.Lock()
		defer mu.Unlock()
		return first
	}, nil
}

// LoadSnapshot reads a reflection snapshot. With a non-empty cachePath the
// snapshot is reused from, or refreshed into, a msgpack cache; a failed
// refresh is logged by the caller and does not discard the snapshot.
func LoadSnapshot(path, cachePath string) (*Snapshot, error) {
	return reference.LoadCached(path, cachePath)
}
