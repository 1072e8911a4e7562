package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertDocumentParams describes one remote file as seen during sync.
type UpsertDocumentParams struct {
	Path        string
	Fingerprint string
	MediaType   string
	PageCount   int
	ByteSize    int64
}

const documentColumns = `id, path, fingerprint, media_type, page_count, byte_size, active, updated_at`

const upsertDocumentSQL = `
	INSERT INTO documents (id, path, fingerprint, media_type, page_count, byte_size, active, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE, now())
	ON CONFLICT (path) DO UPDATE SET
		fingerprint = EXCLUDED.fingerprint,
		media_type  = EXCLUDED.media_type,
		page_count  = EXCLUDED.page_count,
		byte_size   = EXCLUDED.byte_size,
		active      = TRUE,
		updated_at  = now()
	RETURNING ` + documentColumns

// UpsertDocument inserts a catalog entry or refreshes an existing one keyed
// by path. The entry always comes back active.
func (s *Store) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) (Document, error) {
	row := s.db.QueryRow(ctx, upsertDocumentSQL,
		uuid.New(), arg.Path, arg.Fingerprint, arg.MediaType, arg.PageCount, arg.ByteSize)

	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("upsert document %q: %w", arg.Path, err)
	}

	s.logger.Debug("upserted document", "path", doc.Path, "id", doc.ID)
	return doc, nil
}

// GetDocumentByPath looks a document up by its remote-relative path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE path = $1`

	doc, err := scanDocument(s.db.QueryRow(ctx, q, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("document %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %q: %w", path, err)
	}
	return doc, nil
}

// GetDocument looks a document up by ID.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all catalog entries, active first, then by path.
// When activeOnly is set, deactivated entries are skipped.
func (s *Store) ListDocuments(ctx context.Context, activeOnly bool) ([]Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY active DESC, path`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// SetDocumentActive flips the active flag. Deactivated documents keep their
// chunks but never surface in search.
func (s *Store) SetDocumentActive(ctx context.Context, id uuid.UUID, active bool) error {
	const q = `UPDATE documents SET active = $2, updated_at = now() WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, id, active)
	if err != nil {
		return fmt.Errorf("set document %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("set document active", "id", id, "active", active)
	return nil
}

// DeleteDocument removes a catalog entry and, via cascade, its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Path, &d.Fingerprint, &d.MediaType,
		&d.PageCount, &d.ByteSize, &d.Active, &d.UpdatedAt)
	return d, err
}
