package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var validFormats = []string{"json", "text"}

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResultText writes result as human-readable text.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIIndexSummary:
		formatIndexText(w, v)
	case CLIReport:
		formatReportText(w, v)
	case CLIEntity:
		formatEntityText(w, v)
	case []CLIEntity:
		formatEntitiesText(w, v)
	case []CLIDuplicate:
		formatDuplicatesText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if result.TotalCount != nil {
		fmt.Fprintf(w, "\n%d result(s)\n", *result.TotalCount)
	}
	return nil
}

func formatIndexText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Files: %d indexed, %d unchanged, %d pruned\n", s.Indexed, s.Skipped, len(s.Pruned))
	fmt.Fprintf(w, "Catalog: %d files, %d entities, %d members\n", s.Files, s.Entities, s.Members)
	fmt.Fprintf(w, "Duplicates: %d ids, %d conflicting declarations\n", s.Duplicated, s.Conflicts)
	if s.Unresolved > 0 {
		fmt.Fprintf(w, "Unresolved names: %d\n", s.Unresolved)
	}
	for _, e := range s.Structural {
		fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("skipped"), e)
	}
	for _, e := range s.Malformed {
		fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("malformed"), e)
	}
	for _, c := range s.Cycles {
		fmt.Fprintf(w, "%s %s\n", failColor.Sprint("cycle"), c)
	}
}

func formatReportText(w io.Writer, r CLIReport) {
	for _, v := range r.Verdicts {
		if v.Passed {
			fmt.Fprintf(w, "%s %s %s\n", passColor.Sprint("PASS"), v.Kind, v.ID)
			continue
		}
		fmt.Fprintf(w, "%s %s %s", failColor.Sprint("FAIL"), v.Kind, v.ID)
		if v.File != "" {
			fmt.Fprintf(w, " (%s:%d)", v.File, v.Line)
		}
		fmt.Fprintln(w)
		for _, p := range v.Problems {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
	fmt.Fprintf(w, "\n%s: %d passed, %d failed\n", r.Version, r.Total-r.Failed, r.Failed)
}

func formatEntityText(w io.Writer, e CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", e.ID)
	fmt.Fprintf(tw, "KIND\t%s\n", e.Kind)
	fmt.Fprintf(tw, "FILE\t%s:%d\n", e.File, e.Line)
	fmt.Fprintf(tw, "VERSIONS\t%s\n", strings.Join(e.Versions, " "))
	if len(e.Modifiers) > 0 {
		fmt.Fprintf(tw, "MODIFIERS\t%s\n", strings.Join(e.Modifiers, " "))
	}
	if e.Parent != "" {
		fmt.Fprintf(tw, "EXTENDS\t%s\n", e.Parent)
	}
	if len(e.Interfaces) > 0 {
		fmt.Fprintf(tw, "IMPLEMENTS\t%s\n", strings.Join(e.Interfaces, ", "))
	}
	if len(e.Parameters) > 0 {
		fmt.Fprintf(tw, "PARAMETERS\t%s\n", strings.Join(e.Parameters, ", "))
	}
	if len(e.Types) > 0 {
		fmt.Fprintf(tw, "TYPE\t%s\n", strings.Join(e.Types, "|"))
	}
	if e.Value != "" {
		fmt.Fprintf(tw, "VALUE\t%s\n", e.Value)
	}
	if e.Conflict {
		fmt.Fprintf(tw, "CONFLICT\t%s\n", failColor.Sprint("overlapping duplicate"))
	}
	for _, m := range e.Members {
		fmt.Fprintf(tw, "MEMBER\t%s %s\n", m.Kind, m.Name)
	}
	tw.Flush()
}

func formatEntitiesText(w io.Writer, es []CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tVERSIONS\tFILE\tLINE")
	for _, e := range es {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.Kind, e.ID, versionSpan(e.Versions), e.File, e.Line)
	}
	tw.Flush()
}

func formatDuplicatesText(w io.Writer, groups []CLIDuplicate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tKEY\tVERSIONS\tFILE\tLINE\tCONFLICT")
	for _, g := range groups {
		for _, v := range g.Variants {
			conflict := ""
			if v.Conflict {
				conflict = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", g.Kind, v.Key, versionSpan(v.Versions), v.File, v.Line, conflict)
		}
	}
	tw.Flush()
}

// versionSpan abbreviates a contiguous version run as "first-last".
func versionSpan(vs []string) string {
	switch len(vs) {
	case 0:
		return "none"
	case 1:
		return vs[0]
	}
	return vs[0] + "-" + vs[len(vs)-1]
}
