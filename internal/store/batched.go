package store

import (
	"time"

	"github.com/jward/stubcat/internal/entity"
)

// Batch buffers the encoded entities of one file so extraction workers can
// run without touching the database. Batches are committed one at a time
// by a single writer.
type Batch struct {
	File    File
	Records []Record
}

// NewBatch encodes the entities and members extracted from one file.
// errCount is the number of declarations that failed to build.
func NewBatch(path, hash string, core bool, entities, members []*entity.Entity, errCount int) (*Batch, error) {
	b := &Batch{
		File: File{
			Path:        path,
			Hash:        hash,
			Core:        core,
			ErrorCount:  errCount,
			LastIndexed: time.Now().UTC().Truncate(time.Second),
		},
	}
	for _, group := range [][]*entity.Entity{entities, members} {
		for _, e := range group {
			r, err := EncodeEntity(e)
			if err != nil {
				return nil, err
			}
			b.Records = append(b.Records, r)
		}
	}
	b.File.EntityCount = len(b.Records)
	return b, nil
}
