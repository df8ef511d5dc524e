package store

import "fmt"

// CommitBatch replaces everything stored for the batch's file within a
// single transaction. The file row is upserted by path, its previous
// entities are deleted, and the batch records are inserted in order.
func (s *Store) CommitBatch(batch *Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	f := &batch.File
	_, err = tx.Exec(`
		INSERT INTO files (path, hash, core, entity_count, error_count, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		  hash = excluded.hash,
		  core = excluded.core,
		  entity_count = excluded.entity_count,
		  error_count = excluded.error_count,
		  last_indexed = excluded.last_indexed`,
		f.Path, f.Hash, f.Core, f.EntityCount, f.ErrorCount, f.LastIndexed,
	)
	if err != nil {
		return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
	}
	if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&f.ID); err != nil {
		return fmt.Errorf("commit batch: file id %q: %w", f.Path, err)
	}

	if _, err := tx.Exec("DELETE FROM entities WHERE file_id = ?", f.ID); err != nil {
		return fmt.Errorf("commit batch: clear %q: %w", f.Path, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entities (file_id, hash, kind, fqid, name, owner_hash, line, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("commit batch: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range batch.Records {
		r := &batch.Records[i]
		r.FileID = f.ID
		res, err := stmt.Exec(r.FileID, r.Hash, r.Kind, r.FQID, r.Name, r.OwnerHash, r.Line, r.Payload)
		if err != nil {
			return fmt.Errorf("commit batch: entity %q: %w", r.FQID, err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("commit batch: last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

// RecordsByFQID returns the stored rows for an id across all files, in
// insertion order.
func (s *Store) RecordsByFQID(fqid string) ([]Record, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, hash, kind, fqid, name, owner_hash, line, payload FROM entities WHERE fqid = ? ORDER BY id", fqid,
	)
	if err != nil {
		return nil, fmt.Errorf("records by fqid: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var owner *string
		if err := rows.Scan(&r.ID, &r.FileID, &r.Hash, &r.Kind, &r.FQID, &r.Name, &owner, &r.Line, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if owner != nil {
			r.OwnerHash = *owner
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadFragments decodes every stored file, ordered by path, with entities
// in the order they were extracted.
func (s *Store) LoadFragments() ([]*Fragment, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Fragment, len(files))
	out := make([]*Fragment, 0, len(files))
	for _, f := range files {
		frag := &Fragment{File: f}
		byID[f.ID] = frag
		out = append(out, frag)
	}

	rows, err := s.db.Query("SELECT file_id, hash, payload FROM entities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.FileID, &r.Hash, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		frag, ok := byID[r.FileID]
		if !ok {
			continue
		}
		e, err := DecodeEntity(r)
		if err != nil {
			return nil, fmt.Errorf("load fragments: %s: %w", frag.File.Path, err)
		}
		if e.Kind.TopLevel() {
			frag.Entities = append(frag.Entities, e)
		} else {
			frag.Members = append(frag.Members, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}
	return out, nil
}
