package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the hex SHA-256 of a file's bytes. Re-indexing skips
// files whose stored hash matches.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// Unchanged reports whether the stored file f still matches src and the
// core classification.
func Unchanged(f *File, src []byte, core bool) bool {
	return f != nil && f.Hash == ContentHash(src) && f.Core == core
}
