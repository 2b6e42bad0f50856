package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"previewsync/internal/gateway/repository/baseline"
	"previewsync/internal/gateway/repository/snapshot"
	"previewsync/internal/llm"
	"previewsync/internal/session"
)

// EngineHandler exposes the synchronization engine over HTTP: generation
// streams, file-set reads, change detection, checkpoints, visual edit, and
// the preview bridge websocket.
type EngineHandler struct {
	mgr       *session.Manager
	generator *llm.Generator
	baselines *baseline.Store
	archive   snapshot.Archive
	// status polls the generation backend when a stream dies mid-flight.
	// Nil disables the polling fallback.
	status session.StatusFunc
}

func NewEngineHandler(mgr *session.Manager, generator *llm.Generator, baselines *baseline.Store, archive snapshot.Archive) *EngineHandler {
	return &EngineHandler{
		mgr:       mgr,
		generator: generator,
		baselines: baselines,
		archive:   archive,
	}
}

// SetStatusFunc wires the generation-status endpoint used by the disconnect
// watchdog.
func (h *EngineHandler) SetStatusFunc(fn session.StatusFunc) {
	if h != nil {
		h.status = fn
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
