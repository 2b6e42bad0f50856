package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"previewsync/internal/fileset"
	"previewsync/internal/gateway/repository/baseline"
	"previewsync/internal/session"
)

func newTestHandler(t *testing.T) (*EngineHandler, *session.Manager) {
	t.Helper()
	baselines := baseline.New(filepath.Join(t.TempDir(), "baselines.json"))
	mgr := session.NewManager(nil, baselines)
	return NewEngineHandler(mgr, nil, baselines, nil), mgr
}

func doRequest(h http.HandlerFunc, method, docID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/documents/"+docID, strings.NewReader(body))
	req.SetPathValue("id", docID)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleFilesNoSession(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h.HandleFiles, http.MethodGet, "missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleGenerateRequiresPrompt(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h.HandleGenerate, http.MethodPost, "doc-1", `{"prompt":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleGenerateWithoutBackend(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h.HandleGenerate, http.MethodPost, "doc-1", `{"prompt":"build it"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCheckpointThenChanges(t *testing.T) {
	h, mgr := newTestHandler(t)
	s := mgr.Open("doc-1", fileset.ModeFiles)
	if err := s.Store().Replace("src/App.jsx", "export default function App() {}"); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// No baseline yet: everything counts as changed.
	rec := doRequest(h.HandleChanges, http.MethodGet, "doc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("changes status = %d, want 200", rec.Code)
	}
	var changes struct {
		HasChanges    bool     `json:"hasChanges"`
		ModifiedPaths []string `json:"modifiedPaths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &changes); err != nil {
		t.Fatalf("decode changes: %v", err)
	}
	if !changes.HasChanges {
		t.Fatalf("HasChanges = false before any checkpoint, want true")
	}

	rec = doRequest(h.HandleCheckpoint, http.MethodPost, "doc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("checkpoint status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var cp struct {
		CheckpointID string `json:"checkpointId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cp); err != nil {
		t.Fatalf("decode checkpoint: %v", err)
	}
	if cp.CheckpointID == "" {
		t.Fatalf("checkpointId is empty")
	}

	rec = doRequest(h.HandleChanges, http.MethodGet, "doc-1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &changes); err != nil {
		t.Fatalf("decode changes: %v", err)
	}
	if changes.HasChanges {
		t.Fatalf("HasChanges = true right after checkpoint, want false (paths=%v)", changes.ModifiedPaths)
	}
}

func TestHandleWriteFile(t *testing.T) {
	h, mgr := newTestHandler(t)

	rec := doRequest(h.HandleWriteFile, http.MethodPut, "doc-1", `{"path":"src/App.jsx","content":"v1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	s, ok := mgr.Get("doc-1")
	if !ok {
		t.Fatalf("no session created by write")
	}
	if got, _ := s.Store().Get("src/App.jsx"); got != "v1" {
		t.Fatalf("content = %q, want %q", got, "v1")
	}

	rec = doRequest(h.HandleWriteFile, http.MethodPut, "doc-1", `{"path":"","content":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty-path status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(h.HandleWriteFile, http.MethodPut, "doc-1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed-body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAttributeEditMiss(t *testing.T) {
	h, mgr := newTestHandler(t)
	s := mgr.Open("doc-1", fileset.ModeFiles)
	if err := s.Store().Replace("src/App.jsx", "<div>hello</div>"); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	body := `{"element":{"filePath":"src/App.jsx","tagName":"button"},"className":"btn"}`
	rec := doRequest(h.HandleAttributeEdit, http.MethodPost, "doc-1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Patched bool   `json:"patched"`
		Warning string `json:"warning"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Patched {
		t.Fatalf("Patched = true for a missing tag, want false")
	}
	if out.Warning == "" {
		t.Fatalf("expected a warning for a missing tag")
	}
	if got, _ := s.Store().Get("src/App.jsx"); got != "<div>hello</div>" {
		t.Fatalf("file mutated on a miss: %q", got)
	}
}

func TestHandleTeardown(t *testing.T) {
	h, mgr := newTestHandler(t)
	mgr.Open("doc-1", fileset.ModeFiles)
	rec := doRequest(h.HandleTeardown, http.MethodDelete, "doc-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := mgr.Get("doc-1"); ok {
		t.Fatalf("session still present after teardown")
	}
}
