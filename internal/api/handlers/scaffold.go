package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// ScaffoldHandler handles starter-code and file-scaffold endpoints.
type ScaffoldHandler struct {
	codegen Codegen
	store   storage.BreakdownStore
}

// NewScaffoldHandler creates a new scaffold handler.
func NewScaffoldHandler(codegen Codegen, store storage.BreakdownStore) *ScaffoldHandler {
	return &ScaffoldHandler{codegen: codegen, store: store}
}

// StarterCode generates a starter snippet for a single task.
func (h *ScaffoldHandler) StarterCode(w http.ResponseWriter, r *http.Request) {
	var req domain.ScaffoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.TaskDescription == "" || req.ProgrammingLanguage == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST",
			"task_description and programming_language are required")
		return
	}

	starter, err := h.codegen.GenerateStarterCode(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, starter)
}

// scaffoldFileRequest selects one file of a stored breakdown to scaffold.
type scaffoldFileRequest struct {
	Filename            string `json:"filename"`
	ProgrammingLanguage string `json:"programming_language"`
	ExperienceLevel     string `json:"experience_level,omitempty"`
}

// ScaffoldFile generates the whole-file scaffold for one file of a
// stored breakdown.
func (h *ScaffoldHandler) ScaffoldFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid breakdown id")
		return
	}

	var req scaffoldFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Filename == "" || req.ProgrammingLanguage == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST",
			"filename and programming_language are required")
		return
	}

	breakdown, err := h.store.GetBreakdown(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var entry *domain.FileEntry
	for i := range breakdown.Files {
		if breakdown.Files[i].Filename == req.Filename {
			entry = &breakdown.Files[i]
			break
		}
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND",
			"breakdown has no file named "+req.Filename)
		return
	}

	scaffold, err := h.codegen.GenerateFileScaffold(r.Context(), domain.FileScaffoldRequest{
		Filename:            entry.Filename,
		ProgrammingLanguage: req.ProgrammingLanguage,
		Tasks:               entry.Tasks,
		Classes:             entry.Classes,
		Template:            breakdown.Template,
		ExperienceLevel:     req.ExperienceLevel,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scaffold)
}
