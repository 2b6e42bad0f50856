package server

import (
	"net/http"

	"previewsync/internal/gateway/handler"
	"previewsync/internal/gateway/middleware"
)

func NewMux(engine *handler.EngineHandler) http.Handler {
	mux := http.NewServeMux()

	// Generation
	mux.HandleFunc("POST /api/documents/{id}/generate", engine.HandleGenerate)
	mux.HandleFunc("POST /api/documents/{id}/cancel", engine.HandleCancel)
	mux.HandleFunc("GET /api/documents/{id}/status", engine.HandleStatus)

	// File set and change detection
	mux.HandleFunc("GET /api/documents/{id}/files", engine.HandleFiles)
	mux.HandleFunc("PUT /api/documents/{id}/files", engine.HandleWriteFile)
	mux.HandleFunc("GET /api/documents/{id}/changes", engine.HandleChanges)
	mux.HandleFunc("POST /api/documents/{id}/checkpoint", engine.HandleCheckpoint)
	mux.HandleFunc("GET /api/documents/{id}/checkpoints", engine.HandleCheckpoints)
	mux.HandleFunc("DELETE /api/documents/{id}", engine.HandleTeardown)

	// Visual edit
	mux.HandleFunc("POST /api/documents/{id}/visual-edit/enable", engine.HandleVisualEditEnable)
	mux.HandleFunc("POST /api/documents/{id}/visual-edit/disable", engine.HandleVisualEditDisable)
	mux.HandleFunc("POST /api/documents/{id}/visual-edit", engine.HandleAttributeEdit)

	// Preview bridge
	mux.HandleFunc("GET /api/bridge/{id}", engine.HandleBridgeWS)

	// Middleware
	return middleware.CORS(mux)
}
