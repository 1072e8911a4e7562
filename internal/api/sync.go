package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kabinet-ai/kabinet/internal/kb"
)

type syncHandler struct {
	syncer Syncer
	logger *slog.Logger
}

type syncResponse struct {
	Indexed     int           `json:"indexed"`
	Unchanged   int           `json:"unchanged"`
	Reactivated int           `json:"reactivated"`
	Deactivated int           `json:"deactivated"`
	Failures    []syncFailure `json:"failures,omitempty"`
	DurationMs  int64         `json:"duration_ms"`
}

type syncFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// sync runs a full corpus synchronization and reports the outcome. A second
// request while one is running gets 409.
func (h *syncHandler) sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.Sync(r.Context())
	if errors.Is(err, kb.ErrSyncInProgress) {
		writeError(w, http.StatusConflict, "sync_in_progress", "a sync is already running")
		return
	}
	if err != nil {
		h.logger.Error("sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync_failed", "synchronization failed")
		return
	}

	resp := syncResponse{
		Indexed:     report.Indexed,
		Unchanged:   report.Unchanged,
		Reactivated: report.Reactivated,
		Deactivated: report.Deactivated,
		DurationMs:  report.Duration.Milliseconds(),
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, syncFailure{Path: f.Path, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}
