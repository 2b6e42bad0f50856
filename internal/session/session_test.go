package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"previewsync/internal/fileset"
	"previewsync/internal/patch"
	"previewsync/internal/preview"
)

type staticBaseline struct {
	files []fileset.File
	ok    bool
}

func (b staticBaseline) Baseline(context.Context, string) ([]fileset.File, bool) {
	return b.files, b.ok
}

func newTestSession(t *testing.T, mode fileset.Mode) *Session {
	t.Helper()
	m := NewManager(nil, staticBaseline{})
	s := m.Open("doc-1", mode)
	if s == nil {
		t.Fatalf("Open returned nil session")
	}
	return s
}

func TestMutualExclusionPerDocument(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)

	ctx, err := s.BeginGeneration(context.Background())
	if err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}
	if _, err := s.BeginGeneration(context.Background()); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("second BeginGeneration error = %v, want ErrGenerationInFlight", err)
	}
	// The rejection must not disturb the running session.
	if !s.IsGenerating() {
		t.Fatalf("IsGenerating() = false after rejected second request")
	}
	if ctx.Err() != nil {
		t.Fatalf("running context canceled by rejected request: %v", ctx.Err())
	}

	s.EndGeneration()
	if _, err := s.BeginGeneration(context.Background()); err != nil {
		t.Fatalf("BeginGeneration() after end error = %v", err)
	}
}

func TestConsumeAppliesEventsInOrder(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)
	raw := strings.Join([]string{
		`{"status":{"message":"scaffolding"}}`,
		`{"text":{"path":"src/App.tsx","content":"v1"}}`,
		`{"text":{"path":"src/App.tsx","content":"v2"}}`,
		`{"sourceUrl":"https://app.test/p/1?cb=1"}`,
		`{"completed":true,"docId":"doc-xyz"}`,
	}, "\n\n")

	if err := s.Consume(context.Background(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	if got, _ := s.Store().Get("src/App.tsx"); got != "v2" {
		t.Fatalf("file content = %q, want %q (replace semantics)", got, "v2")
	}
	if got := s.Status(); got != "scaffolding" {
		t.Fatalf("Status() = %q", got)
	}
	if got := s.SourceURL(); got != "https://app.test/p/1?cb=1" {
		t.Fatalf("SourceURL() = %q", got)
	}
	if target := s.Reconciler().Target(); target.Kind != preview.TargetDeployed {
		t.Fatalf("target = %+v, want deployed", target)
	}
}

func TestConsumeDocumentModeAppends(t *testing.T) {
	s := newTestSession(t, fileset.ModeDocument)
	raw := `{"text":{"content":"Hello "}}` + "\n\n" +
		`{"text":{"content":"world"}}` + "\n\n" +
		`{"completed":true}`

	if err := s.Consume(context.Background(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got := s.Store().Document(); got != "Hello world" {
		t.Fatalf("Document() = %q, want %q", got, "Hello world")
	}
}

func TestApplyUserEditLastWriteWins(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)

	raw := `{"text":{"path":"src/App.tsx","content":"generated"}}` + "\n\n" + `{"completed":true}`
	if err := s.Consume(context.Background(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	if err := s.ApplyUserEdit("src/App.tsx", "edited"); err != nil {
		t.Fatalf("ApplyUserEdit() error = %v", err)
	}
	if got, _ := s.Store().Get("src/App.tsx"); got != "edited" {
		t.Fatalf("content = %q, want user edit to win", got)
	}

	if err := s.ApplyUserEdit("  ", "content"); err == nil {
		t.Fatalf("ApplyUserEdit with empty path succeeded, want error")
	}
}

func TestBridgeAttachBeforeDocumentGenerate(t *testing.T) {
	m := NewManager(nil, staticBaseline{})

	// The bridge attaches first, before any generation has declared the
	// document type; the session's mode must stay undecided.
	if s := m.Open("doc-1", ""); s.Store().Mode() != "" {
		t.Fatalf("mode = %q after observer open, want undecided", s.Store().Mode())
	}

	s := m.Open("doc-1", fileset.ModeDocument)
	if got := s.Store().Mode(); got != fileset.ModeDocument {
		t.Fatalf("mode = %q after document generate, want %q", got, fileset.ModeDocument)
	}

	raw := `{"text":{"content":"Hello "}}` + "\n\n" +
		`{"text":{"content":"world"}}` + "\n\n" +
		`{"completed":true}`
	if err := s.Consume(context.Background(), strings.NewReader(raw)); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got := s.Store().Document(); got != "Hello world" {
		t.Fatalf("Document() = %q, want %q", got, "Hello world")
	}
}

func TestConsumeSurfacesGenerationError(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)
	raw := `{"text":{"path":"a.txt","content":"partial"}}` + "\n\n" + `{"error":"model overloaded"}`

	err := s.Consume(context.Background(), strings.NewReader(raw))
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("Consume() error = %v, want generation failure", err)
	}
	// Partial results are kept, not rolled back.
	if got, ok := s.Store().Get("a.txt"); !ok || got != "partial" {
		t.Fatalf("partial content = %q, %v; want kept", got, ok)
	}
}

func TestRunFallsBackToStatusPolling(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)
	if _, err := s.BeginGeneration(context.Background()); err != nil {
		t.Fatalf("BeginGeneration() error = %v", err)
	}

	calls := 0
	status := func(context.Context, string) (bool, error) {
		calls++
		return calls < 2, nil
	}

	// errReader yields a transport error mid-stream.
	body := errReader{data: `{"status":{"message":"working"}}` + "\n\n"}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), &body, status) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil after polling settles", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("Run() did not settle via polling")
	}
	if s.IsGenerating() {
		t.Fatalf("IsGenerating() = true after Run returned")
	}
	if calls == 0 {
		t.Fatalf("status endpoint was never polled")
	}
}

// errReader serves its data then fails with a non-EOF error.
type errReader struct {
	data string
	off  int
}

func (r *errReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func TestApplyTextUpdatePatchesAndDedups(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)
	if err := s.Store().Replace("src/App.tsx", "<h1>Welcome</h1>"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	u := preview.TextUpdate{FilePath: "src/App.tsx", TextContent: "Hi", OriginalText: "Welcome"}
	path, err := s.ApplyTextUpdate(u)
	if err != nil {
		t.Fatalf("ApplyTextUpdate() error = %v", err)
	}
	if path != "src/App.tsx" {
		t.Fatalf("patched path = %q", path)
	}
	if got, _ := s.Store().Get("src/App.tsx"); got != "<h1>Hi</h1>" {
		t.Fatalf("content = %q", got)
	}

	// The identical update inside the window is dropped silently.
	path, err = s.ApplyTextUpdate(u)
	if err != nil {
		t.Fatalf("duplicate ApplyTextUpdate() error = %v", err)
	}
	if path != "" {
		t.Fatalf("duplicate update patched %q, want de-dup drop", path)
	}
}

func TestApplyTextUpdateNotFoundLeavesFilesIntact(t *testing.T) {
	s := newTestSession(t, fileset.ModeFiles)
	_ = s.Store().Replace("src/App.tsx", "<h1>Hello</h1>")

	_, err := s.ApplyTextUpdate(preview.TextUpdate{
		FilePath:     "src/App.tsx",
		TextContent:  "x",
		OriginalText: "absent text",
	})
	if !errors.Is(err, patch.ErrNotFound) {
		t.Fatalf("err = %v, want patch.ErrNotFound", err)
	}
	if got, _ := s.Store().Get("src/App.tsx"); got != "<h1>Hello</h1>" {
		t.Fatalf("content changed on not-found: %q", got)
	}
}

func TestChangesUsesBaselineSource(t *testing.T) {
	m := NewManager(nil, staticBaseline{files: []fileset.File{{Path: "a.txt", Content: "old"}}, ok: true})
	s := m.Open("doc-2", fileset.ModeFiles)
	_ = s.Store().Replace("a.txt", "new")

	res := s.Changes(context.Background())
	if !res.HasChanges {
		t.Fatalf("HasChanges = false")
	}
	if _, ok := res.ModifiedPaths["a.txt"]; !ok {
		t.Fatalf("ModifiedPaths = %v", res.ModifiedPaths)
	}

	// No baseline at all: has changes, nothing to highlight.
	m2 := NewManager(nil, staticBaseline{})
	s2 := m2.Open("doc-3", fileset.ModeFiles)
	_ = s2.Store().Replace("a.txt", "new")
	res2 := s2.Changes(context.Background())
	if !res2.HasChanges || len(res2.ModifiedPaths) != 0 {
		t.Fatalf("no-baseline result = %+v", res2)
	}
}

func TestManagerOpenIsIdempotentAndTeardownCloses(t *testing.T) {
	m := NewManager(nil, staticBaseline{})
	a := m.Open("doc-1", fileset.ModeFiles)
	b := m.Open("doc-1", fileset.ModeDocument)
	if a != b {
		t.Fatalf("Open created a second session for the same document")
	}
	if a.Store().Mode() != fileset.ModeFiles {
		t.Fatalf("mode changed mid-session")
	}

	m.Teardown(context.Background(), "doc-1")
	if _, ok := m.Get("doc-1"); ok {
		t.Fatalf("session survived teardown")
	}
}
