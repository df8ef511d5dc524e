package store

import (
	"time"

	"github.com/jward/stubcat/internal/entity"
)

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Hash        string
	Core        bool
	EntityCount int
	ErrorCount  int
	LastIndexed time.Time
}

// Record is one stored entity row. Payload holds the encoded entity.
type Record struct {
	ID        int64
	FileID    int64
	Hash      string
	Kind      string
	FQID      string
	Name      string
	OwnerHash string
	Line      int
	Payload   []byte
}

// Fragment is the decoded content of one file, in extraction order.
type Fragment struct {
	File     *File
	Entities []*entity.Entity
	Members  []*entity.Entity
}
