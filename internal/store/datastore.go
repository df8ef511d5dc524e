package store

// DataStore is the persistence the indexing pipeline needs. Extraction
// workers never see it: they fill Batches, and a single writer commits
// them.
type DataStore interface {
	FileByPath(path string) (*File, error)
	Files() ([]*File, error)
	CommitBatch(batch *Batch) error
	PruneFiles(keep map[string]bool) ([]string, error)
	LoadFragments() ([]*Fragment, error)
	SetMeta(key, value string) error
	Meta(key string) (string, error)
	Close() error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
