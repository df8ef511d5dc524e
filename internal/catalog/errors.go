package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/stubcat/internal/version"
)

// ErrFrozen is returned by mutations attempted after Freeze.
var ErrFrozen = errors.New("catalog: frozen")

// AmbiguousLookupError reports a lookup that still matched several
// declarations after version and source-path narrowing.
type AmbiguousLookupError struct {
	ID         string
	Version    version.Version
	SourcePath string
	Candidates []string
}

func (e *AmbiguousLookupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog: ambiguous lookup of %q", e.ID)
	if e.Version != "" {
		fmt.Fprintf(&b, " at %s", e.Version)
	}
	if e.SourcePath != "" {
		fmt.Fprintf(&b, " in %s", e.SourcePath)
	}
	fmt.Fprintf(&b, ": %d candidates [%s]", len(e.Candidates), strings.Join(e.Candidates, ", "))
	return b.String()
}
