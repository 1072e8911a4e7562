// Package store is the PostgreSQL catalog: documents, their chunks with
// pgvector embeddings, conversations, messages, and per-conversation
// document selection.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// DB is the subset of pgxpool.Pool the store depends on. Defined here so
// tests can substitute a transaction or a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Document is a catalog entry for one remote file.
type Document struct {
	ID          uuid.UUID
	Path        string
	Fingerprint string
	MediaType   string
	PageCount   int
	ByteSize    int64
	Active      bool
	UpdatedAt   time.Time
}

// Chunk is one indexed passage of a document.
type Chunk struct {
	ID         int64
	DocumentID uuid.UUID
	Ordinal    int
	Text       string
	Location   json.RawMessage
	Embedding  []float32
}

// KB modes control whether retrieval runs for a conversation.
const (
	KBModeAuto = "auto"
	KBModeOn   = "on"
	KBModeOff  = "off"
)

// Conversation is a dialog with its knowledge-base mode.
type Conversation struct {
	ID        uuid.UUID
	Title     string
	KBMode    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64
	ConversationID uuid.UUID
	Seq            int
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Attachment links a document to a conversation.
type Attachment struct {
	Document   Document
	Enabled    bool
	AttachedAt time.Time
}

// Store runs catalog queries against a PostgreSQL database with pgvector.
// Safe for concurrent use.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}
