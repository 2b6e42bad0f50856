package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"previewsync/internal/patch"
)

// HandleVisualEditEnable kicks off the dedicated-sandbox lifecycle and
// returns immediately; progress is visible through the bridge.
func (h *EngineHandler) HandleVisualEditEnable(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	go s.Reconciler().EnableVisualEdit(context.Background())
	w.WriteHeader(http.StatusAccepted)
}

// HandleVisualEditDisable tears the dedicated sandbox down and points the
// preview back at the deployed target.
func (h *EngineHandler) HandleVisualEditDisable(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	go s.Reconciler().DisableVisualEdit(context.Background())
	w.WriteHeader(http.StatusAccepted)
}

type attributeEditRequest struct {
	Element     patch.SelectedElement `json:"element"`
	ClassName   *string               `json:"className,omitempty"`
	InlineStyle *string               `json:"inlineStyle,omitempty"`
}

// HandleAttributeEdit applies a class or inline-style change to the selected
// element's opening tag.
func (h *EngineHandler) HandleAttributeEdit(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	var req attributeEditRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Element.FilePath) == "" {
		writeError(w, http.StatusBadRequest, "element.filePath is required")
		return
	}
	if req.ClassName == nil && req.InlineStyle == nil {
		writeError(w, http.StatusBadRequest, "className or inlineStyle is required")
		return
	}
	newClass, newStyle := "", ""
	if req.ClassName != nil {
		newClass = *req.ClassName
	}
	if req.InlineStyle != nil {
		newStyle = *req.InlineStyle
	}
	if err := s.ApplyAttributeEdit(req.Element, newClass, newStyle); err != nil {
		if errors.Is(err, patch.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"patched": false,
				"warning": "element tag not found; files untouched",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patched": true})
}
