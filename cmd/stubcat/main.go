package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/stubcat"
	"github.com/jward/stubcat/internal/config"
	"github.com/jward/stubcat/scripts"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagCurrent string
	flagVerbose bool

	flagScriptsDir string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// stdout receives command results; tests replace it.
var stdout io.Writer = os.Stdout

var (
	cfg    *config.Config
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stubcat",
	Short:         "Multi-version PHP declaration catalog and checker",
	Long:          "Stubcat indexes PHP declaration stubs covering many interpreter releases into a SQLite database and checks them against a reflection snapshot of one release.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if flagVerbose {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagCurrent != "" {
			cfg.CurrentVersion = flagCurrent
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("--current: %w", err)
			}
		}
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath, "configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .stubcat/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagCurrent, "current", "", "version under test (overrides current_version)")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory Risor scripts and their imports are loaded from")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(duplicatesCmd)
	rootCmd.AddCommand(matchCmd)
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a stubs directory",
	Long:  "Parses .php files with tree-sitter, stores their declarations in the SQLite database and builds the catalog.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError("index", fmt.Errorf("removing database for --force: %w", err))
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	engine, err := openEngine(repoRoot, dbPath)
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	indexed, built, err := indexAndBuild(ctx, engine, targetDir)
	if err != nil {
		return outputError("index", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return outputResult(CLIResult{Command: "index", Results: newCLIIndexSummary(indexed, built)})
}

// indexAndBuild refreshes the index for dir and builds the catalog.
func indexAndBuild(ctx context.Context, engine *stubcat.Engine, dir string) (*stubcat.IndexResult, *stubcat.BuildResult, error) {
	indexed, err := engine.IndexDirectory(ctx, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("indexing: %w", err)
	}
	built, err := engine.Build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("building catalog: %w", err)
	}
	for _, u := range built.Unresolved {
		logger.Debug("unresolved name", "error", u)
	}
	return indexed, built, nil
}

// openEngine creates an Engine configured from cfg. Relative paths in the
// configuration are taken from repoRoot.
func openEngine(repoRoot, dbPath string) (*stubcat.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	seq, err := cfg.Sequence()
	if err != nil {
		return nil, err
	}
	opts := []stubcat.Option{
		stubcat.WithLogger(logger),
		stubcat.WithSequence(seq),
		stubcat.WithCurrentVersion(cfg.Current()),
		stubcat.WithWorkers(cfg.Workers),
	}
	// Script source: --scripts-dir overrides the embedded predicates.
	if flagScriptsDir != "" {
		opts = append(opts, stubcat.WithScriptsDir(flagScriptsDir))
	} else {
		opts = append(opts, stubcat.WithScriptsFS(scripts.FS))
	}
	if len(cfg.CorePaths) > 0 {
		opts = append(opts, stubcat.WithCorePaths(cfg.CorePaths...))
	}
	if cfg.MutedProblems != "" {
		muted, err := config.LoadMuted(inRepo(repoRoot, cfg.MutedProblems))
		if err != nil {
			return nil, err
		}
		opts = append(opts, stubcat.WithMutedProblems(muted))
	}
	engine, err := stubcat.New(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// openBuilt opens the database of the current repository and builds the
// catalog from what is already indexed.
func openBuilt(ctx context.Context) (*stubcat.Engine, error) {
	cwd, err := resolveTargetDir(nil)
	if err != nil {
		return nil, err
	}
	repoRoot := findRepoRoot(cwd)
	engine, err := openEngine(repoRoot, resolveDBPath(repoRoot))
	if err != nil {
		return nil, err
	}
	if _, err := engine.Build(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	return engine, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from --db, the configuration or
// the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		return inRepo(repoRoot, flagDB)
	}
	if cfg != nil && cfg.Database != "" {
		return inRepo(repoRoot, cfg.Database)
	}
	return filepath.Join(repoRoot, config.DefaultDatabase)
}

func inRepo(repoRoot, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}
