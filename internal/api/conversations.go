package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kabinet-ai/kabinet/internal/store"
)

type conversationHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

type conversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	KBMode    string    `json:"kb_mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConversationResponse(c store.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID.String(),
		Title:     c.Title,
		KBMode:    c.KBMode,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// pathUUID parses a path parameter as a UUID, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", name+" is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	conv, err := h.catalog.CreateConversation(r.Context(), body.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	convs, err := h.catalog.ListConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations")
		return
	}

	resp := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		resp = append(resp, toConversationResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": resp})
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.catalog.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get conversation")
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (h *conversationHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		KBMode string `json:"kb_mode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	switch body.KBMode {
	case store.KBModeAuto, store.KBModeOn, store.KBModeOff:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "kb_mode must be auto, on, or off")
		return
	}

	err := h.catalog.SetKBMode(r.Context(), id, body.KBMode)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to set kb mode", "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "failed to update conversation")
		return
	}

	conv, err := h.catalog.GetConversation(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to reload conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "failed to update conversation")
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

type attachmentResponse struct {
	Document   documentResponse `json:"document"`
	Enabled    bool             `json:"enabled"`
	AttachedAt time.Time        `json:"attached_at"`
}

func (h *conversationHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	atts, err := h.catalog.ListAttachments(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list attachments", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list attached documents")
		return
	}

	resp := make([]attachmentResponse, 0, len(atts))
	for _, a := range atts {
		resp = append(resp, attachmentResponse{
			Document:   toDocumentResponse(a.Document),
			Enabled:    a.Enabled,
			AttachedAt: a.AttachedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": resp})
}

func (h *conversationHandler) attachDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		DocumentID string `json:"document_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	docID, err := uuid.Parse(body.DocumentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "document_id is not a valid UUID")
		return
	}

	if err := h.catalog.AttachDocument(r.Context(), id, docID); err != nil {
		h.logger.Error("failed to attach document", "error", err)
		writeError(w, http.StatusInternalServerError, "attach_failed", "failed to attach document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathUUID(w, r, "docID")
	if !ok {
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "enabled is required")
		return
	}

	err := h.catalog.SetAttachmentEnabled(r.Context(), id, docID, *body.Enabled)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "attachment not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update attachment", "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "failed to update attachment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) detachDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathUUID(w, r, "docID")
	if !ok {
		return
	}

	err := h.catalog.DetachDocument(r.Context(), id, docID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "attachment not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to detach document", "error", err)
		writeError(w, http.StatusInternalServerError, "detach_failed", "failed to detach document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
