package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/stubcat"
	"github.com/jward/stubcat/internal/catalog"
	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

var (
	flagFile    string
	flagAt      string
	flagAny     bool
	flagDupKind string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <kind> <id>",
	Short: "Show one declaration and the versions it is available in",
	Long:  "Looks up a top-level declaration by kind (function, class, interface, enum, constant, or type for any of class, interface and enum) and namespace-qualified id.",
	Args:  cobra.ExactArgs(2),
	RunE:  runLookup,
}

var versionsCmd = &cobra.Command{
	Use:   "versions <kind> <id>",
	Short: "List every declaration of an id with its availability window",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersions,
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List ids declared more than once",
	Args:  cobra.NoArgs,
	RunE:  runDuplicates,
}

var matchCmd = &cobra.Command{
	Use:   "match <expr>",
	Short: "List declarations for which a Risor expression is true",
	Args:  cobra.ExactArgs(1),
	RunE:  runMatch,
}

func init() {
	lookupCmd.Flags().StringVar(&flagFile, "file", "", "prefer the variant declared in this file")
	lookupCmd.Flags().StringVar(&flagAt, "at", "", "version to resolve in (default: current)")
	lookupCmd.Flags().BoolVar(&flagAny, "any", false, "ignore availability")
	duplicatesCmd.Flags().StringVar(&flagDupKind, "kind", "", "only this top-level kind")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runLookup(cmd *cobra.Command, args []string) error {
	opts := stubcat.LookupOptions{SourceFile: flagFile, AnyVersion: flagAny}
	if flagAt != "" {
		v, err := version.Parse(flagAt)
		if err != nil {
			return outputError("lookup", fmt.Errorf("--at: %w", err))
		}
		opts.AtVersion = v
	}

	engine, err := openBuilt(commandContext(cmd))
	if err != nil {
		return outputError("lookup", err)
	}
	defer engine.Close()
	q, err := engine.Query()
	if err != nil {
		return outputError("lookup", err)
	}

	var e *stubcat.Entity
	if args[0] == "type" {
		e, err = q.LookupType(args[1], opts)
	} else {
		kind, ok := entity.ParseKind(args[0])
		if !ok {
			return outputError("lookup", fmt.Errorf("unknown kind %q", args[0]))
		}
		e, err = q.Lookup(kind, args[1], opts)
	}
	var amb *catalog.AmbiguousLookupError
	if errors.As(err, &amb) {
		return outputError("lookup", fmt.Errorf("%w; narrow with --file or --at", err))
	}
	if err != nil {
		return outputError("lookup", err)
	}
	if e == nil {
		return outputError("lookup", fmt.Errorf("%s %s not found", args[0], args[1]))
	}
	return outputResult(CLIResult{Command: "lookup", Results: newCLIEntity(e, q.Versions(e))})
}

func runVersions(cmd *cobra.Command, args []string) error {
	kind, ok := entity.ParseKind(args[0])
	if !ok {
		return outputError("versions", fmt.Errorf("unknown kind %q", args[0]))
	}
	engine, err := openBuilt(commandContext(cmd))
	if err != nil {
		return outputError("versions", err)
	}
	defer engine.Close()
	q, err := engine.Query()
	if err != nil {
		return outputError("versions", err)
	}

	variants, err := q.Variants(kind, args[1])
	if err != nil {
		return outputError("versions", err)
	}
	if len(variants) == 0 {
		return outputError("versions", fmt.Errorf("%s %s not found", args[0], args[1]))
	}
	g := stubcat.DuplicateGroup{Kind: kind, ID: args[1], Variants: variants}
	return outputResult(CLIResult{Command: "versions", Results: []CLIDuplicate{newCLIDuplicate(g)}})
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	var kind entity.Kind
	if flagDupKind != "" {
		k, ok := entity.ParseKind(flagDupKind)
		if !ok || !k.TopLevel() {
			return outputError("duplicates", fmt.Errorf("--kind: %q is not a top-level kind", flagDupKind))
		}
		kind = k
	}

	engine, err := openBuilt(commandContext(cmd))
	if err != nil {
		return outputError("duplicates", err)
	}
	defer engine.Close()
	q, err := engine.Query()
	if err != nil {
		return outputError("duplicates", err)
	}

	groups := q.Duplicates(kind)
	out := make([]CLIDuplicate, 0, len(groups))
	for _, g := range groups {
		out = append(out, newCLIDuplicate(g))
	}
	total := len(out)
	return outputResult(CLIResult{Command: "duplicates", Results: out, TotalCount: &total})
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	engine, err := openBuilt(ctx)
	if err != nil {
		return outputError("match", err)
	}
	defer engine.Close()
	q, err := engine.Query()
	if err != nil {
		return outputError("match", err)
	}

	matched, err := q.Match(ctx, args[0])
	if err != nil {
		return outputError("match", err)
	}
	out := make([]CLIEntity, 0, len(matched))
	for _, e := range matched {
		out = append(out, newCLIEntity(e, q.Versions(e)))
	}
	total := len(out)
	return outputResult(CLIResult{Command: "match", Results: out, TotalCount: &total})
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
