// Package stubcat indexes hand-written PHP declaration stubs that cover
// many interpreter releases and checks them against the reflection
// snapshot of one release.
//
// # Pipeline
//
//  1. Index: each .php file is parsed with tree-sitter and converted into
//     entities. Files are processed on a worker pool; a single writer
//     commits one batch per file to SQLite. Unchanged files are skipped by
//     content hash.
//
//  2. Build: every stored fragment is added to a catalog. Ids declared
//     more than once are kept side by side; overlapping availability marks
//     them as conflicting. Once all fragments are in, members are attached
//     to their owners and parents and interfaces are linked.
//
//  3. Compare: the catalog is checked against a reference catalog built
//     from the snapshot, yielding one verdict per compared declaration.
//
// # Usage
//
//	e, err := stubcat.New(".stubcat/index.db", stubcat.WithCurrentVersion("8.1"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_, err = e.IndexDirectory(ctx, "stubs")
//	_, err = e.Build(ctx)
//
//	snap, err := stubcat.LoadSnapshot("reflection-8.1.json", "")
//	report, err := e.Compare(ctx, snap, stubcat.WithCoreOnly())
//
// # Filtering
//
// [WithWhere] and [QueryBuilder.Match] accept Risor expressions evaluated
// against each entity, such as
//
//	kind == "function" && "8.0" in versions && !deprecated
package stubcat
