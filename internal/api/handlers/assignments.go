package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/queue"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// AssignmentHandler handles breakdown endpoints.
type AssignmentHandler struct {
	parser    Parser
	store     storage.BreakdownStore
	publisher TestGenPublisher
	logger    *slog.Logger
}

// NewAssignmentHandler creates a new assignment handler. publisher may be
// nil, in which case test generation already happened inline.
func NewAssignmentHandler(parser Parser, store storage.BreakdownStore, publisher TestGenPublisher, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{parser: parser, store: store, publisher: publisher, logger: logger}
}

// Create parses an assignment into a breakdown, stores it, and either
// returns it with inline-generated tests or queues test generation.
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var assignment domain.Assignment
	if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	breakdown, err := h.parser.ParseAssignment(r.Context(), assignment)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.store.SaveBreakdown(r.Context(), breakdown); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if h.publisher != nil {
		job := &queue.TestGenJob{
			BreakdownID:     breakdown.ID,
			AssignmentText:  assignment.AssignmentText,
			TargetLanguage:  assignment.TargetLanguage,
			ExperienceLevel: assignment.ExperienceLevel,
		}
		// Queue failures degrade to a breakdown without tests, not a 500.
		if err := h.publisher.PublishTestGenJob(r.Context(), job); err != nil {
			h.logger.Error("failed to queue test generation",
				"breakdown_id", breakdown.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, breakdown)
}

// Get returns a stored breakdown.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid breakdown id")
		return
	}

	breakdown, err := h.store.GetBreakdown(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// List returns stored breakdowns, newest first.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)

	breakdowns, err := h.store.ListBreakdowns(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if breakdowns == nil {
		breakdowns = []*domain.TaskBreakdown{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"breakdowns": breakdowns,
		"limit":      limit,
		"offset":     offset,
	})
}

// Delete removes a stored breakdown.
func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid breakdown id")
		return
	}

	if err := h.store.DeleteBreakdown(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i >= 0 {
			return i
		}
	}
	return defaultValue
}
