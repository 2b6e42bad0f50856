package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"previewsync/internal/fileset"
	"previewsync/internal/session"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	// Mode is "files" (default) for application generation or "document" for
	// prose generation.
	Mode string `json:"mode,omitempty"`
	// DocID is the entity id reported by the terminal event in document mode.
	DocID string `json:"docId,omitempty"`
}

// HandleGenerate starts a generation session and relays the raw protocol
// stream to the caller while the engine consumes it. A second request for a
// document already generating is rejected with 409; the running session is
// untouched.
func (h *EngineHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "generation backend is not configured")
		return
	}
	mode := fileset.ModeFiles
	if strings.EqualFold(strings.TrimSpace(req.Mode), string(fileset.ModeDocument)) {
		mode = fileset.ModeDocument
	}

	s := h.mgr.Open(documentID, mode)
	ctx, err := s.BeginGeneration(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrGenerationInFlight) {
			writeError(w, http.StatusConflict, "a generation is already running for this document; stop it or wait for it to finish")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	// The producer writes protocol blocks into the pipe; the session consumes
	// them and the tee relays the identical bytes to the caller.
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		if mode == fileset.ModeDocument {
			h.generator.GenerateDocument(ctx, req.Prompt, req.DocID, pw)
			return
		}
		h.generator.GenerateFiles(ctx, req.Prompt, pw)
	}()

	body := io.TeeReader(pr, flushWriter{w: w, f: flusher})
	if err := s.Run(ctx, body, h.status); err != nil {
		log.Printf("generate[%s]: %v", documentID, err)
	}
}

// HandleCancel is the user "stop" action: abort the request, drop pending
// debounce payloads, keep partial results.
func (h *EngineHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for document")
		return
	}
	s.CancelGeneration()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// HandleStatus reports whether a generation is in flight for the document.
func (h *EngineHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	s, ok := h.mgr.Get(documentID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"isGenerating": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isGenerating": s.IsGenerating(),
		"status":       s.Status(),
		"sourceUrl":    s.SourceURL(),
		"docId":        s.ResultDocID(),
	})
}

type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
