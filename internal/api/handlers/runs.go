package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// RunHandler handles code execution endpoints.
type RunHandler struct {
	runner Runner
	store  storage.BreakdownStore
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner Runner, store storage.BreakdownStore) *RunHandler {
	return &RunHandler{runner: runner, store: store}
}

// Run executes a submission once, without tests.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if sub.Code == "" || sub.Language == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "code and language are required")
		return
	}

	exec, err := h.runner.Run(r.Context(), sub)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// RunWithTests executes a submission against the test cases stored on a
// breakdown.
func (h *RunHandler) RunWithTests(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid breakdown id")
		return
	}

	var sub domain.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if sub.Code == "" || sub.Language == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "code and language are required")
		return
	}

	breakdown, err := h.store.GetBreakdown(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(breakdown.Tests) == 0 {
		writeError(w, http.StatusConflict, "NO_TESTS",
			"breakdown has no test cases yet; they may still be generating")
		return
	}

	run, err := h.runner.RunWithTests(r.Context(), sub, breakdown.Tests)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
