package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"previewsync/internal/fileset"
	"previewsync/internal/gateway/repository/baseline"
)

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %v", err)
	}
	return nil
}

// HandleFiles returns the current file-set snapshot (or the document buffer
// in document mode).
func (h *EngineHandler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	if s.Store().Mode() == fileset.ModeDocument {
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":     fileset.ModeDocument,
			"document": s.Store().Document(),
		})
		return
	}
	files := s.Store().Files()
	if files == nil {
		files = []fileset.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":  fileset.ModeFiles,
		"files": files,
	})
}

type writeFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// HandleWriteFile applies a code-panel edit to one file. The write lands in
// the store immediately; the sandbox push rides the slow code-edit debounce
// window so active typing coalesces into one round-trip.
func (h *EngineHandler) HandleWriteFile(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	var req writeFileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.mgr.Open(documentID, fileset.ModeFiles)
	if err := s.ApplyUserEdit(req.Path, req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChanges recomputes the modified-file state against the saved
// baseline for the save-button and diff-view affordances.
func (h *EngineHandler) HandleChanges(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	res := s.Changes(r.Context())

	paths := make([]string, 0, len(res.ModifiedPaths))
	for p := range res.ModifiedPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	writeJSON(w, http.StatusOK, map[string]any{
		"hasChanges":    res.HasChanges,
		"modifiedPaths": paths,
	})
}

// HandleCheckpoint persists the current file set as the new saved baseline
// and archives an immutable snapshot of it.
func (h *EngineHandler) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	files := s.Store().Files()
	if files == nil {
		files = []fileset.File{}
	}
	checkpointID := uuid.NewString()

	if err := h.baselines.Put(r.Context(), baseline.Baseline{
		DocumentID:   documentID,
		CheckpointID: checkpointID,
		Files:        files,
		SavedAt:      time.Now().UTC(),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("save baseline: %v", err))
		return
	}

	warning := ""
	if h.archive != nil {
		if err := h.archive.Put(r.Context(), documentID, checkpointID, files); err != nil {
			// The baseline is saved; a missing archive copy degrades history,
			// not correctness.
			warning = fmt.Sprintf("snapshot archive failed: %v", err)
			log.Printf("checkpoint[%s]: %s", documentID, warning)
		}
	}

	resp := map[string]any{"checkpointId": checkpointID}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCheckpoints lists archived checkpoint ids for the document.
func (h *EngineHandler) HandleCheckpoints(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	if h.archive == nil {
		writeJSON(w, http.StatusOK, map[string]any{"checkpoints": []string{}})
		return
	}
	ids, err := h.archive.List(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": ids})
}

// HandleTeardown releases the session on navigation away from the document.
func (h *EngineHandler) HandleTeardown(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	h.mgr.Teardown(r.Context(), documentID)
	w.WriteHeader(http.StatusNoContent)
}
