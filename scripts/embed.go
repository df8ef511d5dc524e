// Package scripts embeds the stock Risor predicates shipped with stubcat.
// Each top-level .risor file is a predicate usable with --where-file;
// helpers.risor is a module the predicates import.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
