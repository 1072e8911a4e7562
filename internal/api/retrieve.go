package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kabinet-ai/kabinet/internal/kb"
	"github.com/kabinet-ai/kabinet/internal/store"
)

type retrieveHandler struct {
	retriever Retriever
	logger    *slog.Logger
}

type retrieveRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
}

type snippetResponse struct {
	Text         string  `json:"text"`
	DocumentPath string  `json:"document_path"`
	Citation     string  `json:"citation"`
	Similarity   float64 `json:"similarity"`
}

type retrieveResponse struct {
	Snippets     []snippetResponse `json:"snippets"`
	TokensUsed   int               `json:"tokens_used"`
	UsedFallback bool              `json:"used_fallback"`
	Prompt       string            `json:"prompt"`
}

func (h *retrieveHandler) retrieve(w http.ResponseWriter, r *http.Request) {
	var body retrieveRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	req := kb.Request{
		Query:     body.Query,
		TopK:      body.TopK,
		MaxTokens: body.MaxTokens,
	}
	if body.ConversationID != "" {
		id, err := uuid.Parse(body.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "conversation_id is not a valid UUID")
			return
		}
		req.ConversationID = &id
	}

	res, err := h.retriever.Retrieve(r.Context(), req)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("retrieval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "retrieve_failed", "retrieval failed")
		return
	}

	resp := retrieveResponse{
		Snippets:     make([]snippetResponse, 0, len(res.Snippets)),
		TokensUsed:   res.TokensUsed,
		UsedFallback: res.UsedFallback,
		Prompt:       kb.BuildPrompt(res, body.Query),
	}
	for _, s := range res.Snippets {
		resp.Snippets = append(resp.Snippets, snippetResponse{
			Text:         s.Text,
			DocumentPath: s.DocumentPath,
			Citation:     s.Citation(),
			Similarity:   s.Similarity,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
