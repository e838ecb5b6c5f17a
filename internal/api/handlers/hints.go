package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// HintHandler handles progressive hint endpoints.
type HintHandler struct {
	helper Helper
	store  storage.Store
	logger *slog.Logger
}

// NewHintHandler creates a new hint handler.
func NewHintHandler(helper Helper, store storage.Store, logger *slog.Logger) *HintHandler {
	return &HintHandler{helper: helper, store: store, logger: logger}
}

// hintRequestBody is the client-supplied part of a hint request. Help
// count and previous hints come from the server-side session, never from
// the client.
type hintRequestBody struct {
	Question        string `json:"question"`
	StudentCode     string `json:"student_code,omitempty"`
	KnownLanguage   string `json:"known_language,omitempty"`
	TargetLanguage  string `json:"target_language,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
}

// hintResponse augments the hint with session state so clients can show
// escalation progress.
type hintResponse struct {
	domain.Hint
	SessionID uuid.UUID `json:"session_id"`
	HelpCount int       `json:"help_count"`
}

// RequestHint produces a hint for one task of a stored breakdown,
// escalating with each request for the same task.
func (h *HintHandler) RequestHint(w http.ResponseWriter, r *http.Request) {
	breakdownID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid breakdown id")
		return
	}
	taskID, err := strconv.Atoi(r.PathValue("task_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id")
		return
	}

	var body hintRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	breakdown, err := h.store.GetBreakdown(r.Context(), breakdownID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var task *domain.Task
	for _, t := range breakdown.AllTasks() {
		if t.ID == taskID {
			task = &t
			break
		}
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND",
			"breakdown has no task "+strconv.Itoa(taskID))
		return
	}

	sess, err := h.store.GetOrCreateHintSession(r.Context(), breakdownID, taskID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	hint, err := h.helper.ProvideHint(r.Context(), domain.HintRequest{
		SessionID:       sess.ID,
		TaskDescription: task.Description,
		Concepts:        task.Concepts,
		StudentCode:     body.StudentCode,
		Question:        body.Question,
		PreviousHints:   sess.Hints,
		HelpCount:       sess.HelpCount,
		KnownLanguage:   body.KnownLanguage,
		TargetLanguage:  body.TargetLanguage,
		ExperienceLevel: body.ExperienceLevel,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if updated, err := h.store.RecordHint(r.Context(), sess.ID, hint.Hint); err != nil {
		// The hint was produced; losing the record only weakens
		// escalation, so log and respond anyway.
		h.logger.Error("failed to record hint", "session_id", sess.ID, "error", err)
	} else {
		sess = updated
	}

	writeJSON(w, http.StatusOK, hintResponse{
		Hint:      *hint,
		SessionID: sess.ID,
		HelpCount: sess.HelpCount,
	})
}
