package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kabinet-ai/kabinet/internal/store"
)

type documentHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

type documentResponse struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	MediaType string    `json:"media_type"`
	PageCount int       `json:"page_count,omitempty"`
	ByteSize  int64     `json:"byte_size"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDocumentResponse(d store.Document) documentResponse {
	return documentResponse{
		ID:        d.ID.String(),
		Path:      d.Path,
		MediaType: d.MediaType,
		PageCount: d.PageCount,
		ByteSize:  d.ByteSize,
		Active:    d.Active,
		UpdatedAt: d.UpdatedAt,
	}
}

// list returns the document catalog. ?active=true narrows to active entries.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	docs, err := h.catalog.ListDocuments(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list documents")
		return
	}

	resp := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": resp})
}
