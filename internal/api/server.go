// Package api exposes the knowledge base over a JSON HTTP API: admin sync,
// retrieval, and conversation management.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kabinet-ai/kabinet/internal/kb"
	"github.com/kabinet-ai/kabinet/internal/store"
)

// HTTP server timeouts, applied by NewHTTPServer. Sync can run for a while,
// so the write timeout is generous.
const (
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 5 * time.Minute
	IdleTimeout       = 2 * time.Minute
)

// Syncer runs a corpus synchronization.
type Syncer interface {
	Sync(ctx context.Context) (*kb.SyncReport, error)
}

// Retriever answers retrieval queries.
type Retriever interface {
	Retrieve(ctx context.Context, req kb.Request) (*kb.Result, error)
}

// Catalog defines the storage operations the handlers need.
type Catalog interface {
	ListDocuments(ctx context.Context, activeOnly bool) ([]store.Document, error)
	CreateConversation(ctx context.Context, title string) (store.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (store.Conversation, error)
	ListConversations(ctx context.Context) ([]store.Conversation, error)
	SetKBMode(ctx context.Context, id uuid.UUID, mode string) error
	AttachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error
	DetachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error
	SetAttachmentEnabled(ctx context.Context, conversationID, documentID uuid.UUID, enabled bool) error
	ListAttachments(ctx context.Context, conversationID uuid.UUID) ([]store.Attachment, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Syncer     Syncer    // Required
	Retriever  Retriever // Required
	Catalog    Catalog   // Required
	AdminToken string    // Empty disables admin routes
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Syncer == nil || cfg.Retriever == nil || cfg.Catalog == nil {
		return nil, errors.New("syncer, retriever, and catalog are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &syncHandler{syncer: cfg.Syncer, logger: logger}
	rh := &retrieveHandler{retriever: cfg.Retriever, logger: logger}
	ch := &conversationHandler{catalog: cfg.Catalog, logger: logger}
	dh := &documentHandler{catalog: cfg.Catalog, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sync", adminAuth(cfg.AdminToken, sh.sync))

	mux.HandleFunc("POST /api/v1/retrieve", rh.retrieve)

	mux.HandleFunc("GET /api/v1/documents", dh.list)

	mux.HandleFunc("POST /api/v1/conversations", ch.create)
	mux.HandleFunc("GET /api/v1/conversations", ch.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}", ch.get)
	mux.HandleFunc("PATCH /api/v1/conversations/{id}", ch.update)
	mux.HandleFunc("GET /api/v1/conversations/{id}/documents", ch.listDocuments)
	mux.HandleFunc("POST /api/v1/conversations/{id}/documents", ch.attachDocument)
	mux.HandleFunc("PATCH /api/v1/conversations/{id}/documents/{docID}", ch.updateDocument)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}/documents/{docID}", ch.detachDocument)

	// Middleware stack, outermost first: Recovery → Logging → Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// NewHTTPServer wraps the handler in an http.Server with sane timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
}

// health is a simple health check endpoint for container probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
