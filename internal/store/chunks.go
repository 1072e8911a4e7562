package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// NewChunk is one passage ready for insertion.
type NewChunk struct {
	Ordinal   int
	Text      string
	Location  json.RawMessage
	Embedding []float32
}

// ReplaceChunks swaps a document's chunk set in a single transaction.
// Readers never observe a partially indexed document.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []NewChunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace chunks for %s: begin: %w", documentID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceChunksTx(ctx, tx, documentID, chunks); err != nil {
		return fmt.Errorf("replace chunks for %s: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replace chunks for %s: commit: %w", documentID, err)
	}

	s.logger.Debug("replaced chunks", "document_id", documentID, "count", len(chunks))
	return nil
}

// ReplaceDocument upserts the catalog entry and swaps its chunk set in one
// transaction. The new fingerprint commits together with the new chunks, so
// a failure leaves the document's previous version fully intact and a later
// sync still sees it as stale.
func (s *Store) ReplaceDocument(ctx context.Context, arg UpsertDocumentParams, chunks []NewChunk) (Document, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("replace document %q: begin: %w", arg.Path, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, upsertDocumentSQL,
		uuid.New(), arg.Path, arg.Fingerprint, arg.MediaType, arg.PageCount, arg.ByteSize)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("replace document %q: upsert: %w", arg.Path, err)
	}

	if err := replaceChunksTx(ctx, tx, doc.ID, chunks); err != nil {
		return Document{}, fmt.Errorf("replace document %q: %w", arg.Path, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, fmt.Errorf("replace document %q: commit: %w", arg.Path, err)
	}

	s.logger.Debug("replaced document", "path", doc.Path, "id", doc.ID, "chunks", len(chunks))
	return doc, nil
}

func replaceChunksTx(ctx context.Context, tx pgx.Tx, documentID uuid.UUID, chunks []NewChunk) error {
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		loc := c.Location
		if loc == nil {
			loc = json.RawMessage(`{}`)
		}
		rows = append(rows, []any{documentID, c.Ordinal, c.Text, loc, pgvector.NewVector(c.Embedding)})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"chunks"},
		[]string{"document_id", "ordinal", "text", "location", "embedding"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// CountChunks returns the number of chunks indexed for a document.
func (s *Store) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", documentID, err)
	}
	return n, nil
}

// SearchHit is one chunk returned by vector search, with its provenance.
type SearchHit struct {
	ChunkID      int64
	DocumentID   uuid.UUID
	DocumentPath string
	Ordinal      int
	Text         string
	Location     json.RawMessage
	Similarity   float64
}

// SearchChunksParams controls a vector search.
type SearchChunksParams struct {
	Embedding []float32
	// ConversationID, when set, restricts results to documents attached to
	// that conversation with the enabled flag on.
	ConversationID *uuid.UUID
	Limit          int
}

// SearchChunks returns the chunks nearest the query embedding by cosine
// similarity, best first. Only active documents participate. Ties are broken
// by ordinal then document ID so equal corpora yield identical rankings.
func (s *Store) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchHit, error) {
	if arg.Limit <= 0 {
		return nil, fmt.Errorf("search chunks: limit must be positive, got %d", arg.Limit)
	}

	vec := pgvector.NewVector(arg.Embedding)

	var (
		q    string
		args []any
	)
	if arg.ConversationID != nil {
		q = `
			SELECT c.id, c.document_id, d.path, c.ordinal, c.text, c.location,
			       1 - (c.embedding <=> $1) AS similarity
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			JOIN conversation_documents cd ON cd.document_id = d.id
			WHERE d.active AND cd.enabled AND cd.conversation_id = $2
			ORDER BY c.embedding <=> $1, c.ordinal, c.document_id
			LIMIT $3`
		args = []any{vec, *arg.ConversationID, arg.Limit}
	} else {
		q = `
			SELECT c.id, c.document_id, d.path, c.ordinal, c.text, c.location,
			       1 - (c.embedding <=> $1) AS similarity
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE d.active
			ORDER BY c.embedding <=> $1, c.ordinal, c.document_id
			LIMIT $2`
		args = []any{vec, arg.Limit}
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.DocumentPath,
			&h.Ordinal, &h.Text, &h.Location, &h.Similarity); err != nil {
			return nil, fmt.Errorf("search chunks: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return hits, nil
}
