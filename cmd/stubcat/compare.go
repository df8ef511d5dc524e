package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/stubcat"
	"github.com/jward/stubcat/internal/links"
)

var (
	flagReference string
	flagCache     string
	flagWhere     string
	flagWhereFile string
	flagCoreOnly  bool
	flagLinks     bool
	flagNoCache   bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [path]",
	Short: "Check the stubs against a reflection snapshot",
	Long:  "Refreshes the index for path, builds the catalog and compares every declaration available in the current version against the reference snapshot. Exits non-zero when any verdict fails.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&flagReference, "reference", "", "reflection snapshot (default: reference from the configuration)")
	compareCmd.Flags().StringVar(&flagCache, "cache", "", "msgpack snapshot cache (default: .stubcat/reference-<current>.msgpack)")
	compareCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "always decode the snapshot itself")
	compareCmd.Flags().StringVar(&flagWhere, "where", "", "Risor expression selecting what to compare")
	compareCmd.Flags().StringVar(&flagWhereFile, "where-file", "", "Risor script selecting what to compare")
	compareCmd.Flags().BoolVar(&flagCoreOnly, "core-only", false, "compare only the core surface")
	compareCmd.Flags().BoolVar(&flagLinks, "links", false, "check @link URLs (default: check_links from the configuration)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("compare", err)
	}
	repoRoot := findRepoRoot(targetDir)

	refPath := flagReference
	if refPath == "" {
		refPath = cfg.Reference
	}
	if refPath == "" {
		return outputError("compare", fmt.Errorf("no reference snapshot: set --reference or reference in %s", flagConfig))
	}
	refPath = inRepo(repoRoot, refPath)

	dbPath := resolveDBPath(repoRoot)
	cachePath := ""
	if !flagNoCache {
		cachePath = flagCache
		if cachePath == "" {
			cachePath = filepath.Join(filepath.Dir(dbPath), "reference-"+cfg.CurrentVersion+".msgpack")
		}
	}
	snap, err := stubcat.LoadSnapshot(refPath, cachePath)
	if snap == nil {
		return outputError("compare", err)
	}
	if err != nil {
		logger.Warn("snapshot cache not refreshed", "cache", cachePath, "error", err)
	}

	engine, err := openEngine(repoRoot, dbPath)
	if err != nil {
		return outputError("compare", err)
	}
	defer engine.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, _, err := indexAndBuild(ctx, engine, targetDir); err != nil {
		return outputError("compare", err)
	}

	report, err := engine.Compare(ctx, snap, compareOptions(cmd)...)
	if err != nil {
		return outputError("compare", err)
	}
	if err := outputResult(CLIResult{Command: "compare", Results: newCLIReport(report)}); err != nil {
		return err
	}
	if failed := len(report.Failures()); failed > 0 {
		errorHandled = true
		return fmt.Errorf("%d of %d verdicts failed", failed, len(report.Verdicts))
	}
	return nil
}

func compareOptions(cmd *cobra.Command) []stubcat.CompareOption {
	var opts []stubcat.CompareOption
	if flagWhere != "" {
		opts = append(opts, stubcat.WithWhere(flagWhere))
	}
	if flagWhereFile != "" {
		opts = append(opts, stubcat.WithWhereFile(flagWhereFile))
	}
	if flagCoreOnly {
		opts = append(opts, stubcat.WithCoreOnly())
	}
	checkLinks := cfg.CheckLinks
	if cmd.Flags().Changed("links") {
		checkLinks = flagLinks
	}
	if checkLinks {
		opts = append(opts, stubcat.WithLinks(links.New(
			links.WithTimeout(cfg.LinkTimeout),
			links.WithLogger(logger),
		)))
	}
	return opts
}
