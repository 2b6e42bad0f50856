package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"previewsync/internal/fileset"
	"previewsync/internal/patch"
	"previewsync/internal/preview"
	"previewsync/internal/stream"
)

// ErrGenerationInFlight rejects a second generation request for a document
// that is already generating. Concurrent requests are rejected, never queued
// or merged.
var ErrGenerationInFlight = errors.New("session: generation already in flight for document")

// textUpdateDedupWindow drops duplicate inline text updates keyed by
// (filePath, textContent).
//
// TODO(visual-edit): this mirrors the observed upstream behavior; verify
// whether duplicate VISUAL_EDIT_TEXT_UPDATE events still arrive from the
// preview runtime and remove the window if they no longer do.
const textUpdateDedupWindow = 500 * time.Millisecond

type dedupKey struct {
	filePath    string
	textContent string
}

// BaselineSource yields the saved baseline for change detection. ok is false
// when no checkpoint exists yet.
type BaselineSource interface {
	Baseline(ctx context.Context, documentID string) (files []fileset.File, ok bool)
}

// Session is the engine state for one open document: the canonical file set,
// its preview reconciler, the in-flight generation flag, and the visual-edit
// scratch state. It is created on navigation into a document and torn down on
// navigation out; nothing about it lives in process-wide globals.
type Session struct {
	DocumentID    string
	ChatSessionID string

	store      *fileset.Store
	reconciler *preview.Reconciler
	patcher    *patch.Patcher
	baseline   BaselineSource

	mu        sync.Mutex
	inFlight  bool
	cancel    context.CancelFunc
	status    string
	sourceURL string
	docID     string
	lastEvent time.Time
	selected  *patch.SelectedElement
	dedup     map[dedupKey]time.Time
}

func newSession(documentID string, mode fileset.Mode, sandbox preview.SandboxControl, baseline BaselineSource) *Session {
	s := &Session{
		DocumentID:    documentID,
		ChatSessionID: uuid.NewString(),
		store:         fileset.NewStore(mode),
		patcher:       patch.New(),
		baseline:      baseline,
		dedup:         make(map[dedupKey]time.Time),
	}
	s.reconciler = preview.NewReconciler(preview.Config{
		DocumentID: documentID,
		Sandbox:    sandbox,
	})
	return s
}

func (s *Session) Store() *fileset.Store { return s.store }

func (s *Session) Reconciler() *preview.Reconciler { return s.reconciler }

// BeginGeneration marks the session in flight and returns a cancelable
// context for the stream. It fails synchronously when a generation is already
// running; the running session's state is never altered by the rejection.
func (s *Session) BeginGeneration(parent context.Context) (context.Context, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil, ErrGenerationInFlight
	}
	ctx, cancel := context.WithCancel(parent)
	s.inFlight = true
	s.cancel = cancel
	s.lastEvent = time.Now()
	return ctx, nil
}

// EndGeneration clears the in-flight flag.
func (s *Session) EndGeneration() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.cancel = nil
}

// CancelGeneration is the cooperative stop: it aborts the in-flight request,
// clears pending debounce timers, and resets the flags. Partial results stay
// in the file set; nothing is rolled back.
func (s *Session) CancelGeneration() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.inFlight = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.reconciler.CancelPending()
}

func (s *Session) IsGenerating() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Status returns the latest human-readable progress message.
func (s *Session) Status() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SourceURL returns the deployed preview URL once the stream announced one.
func (s *Session) SourceURL() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceURL
}

// ResultDocID returns the entity id reported by the terminal completion
// event, empty until one arrives.
func (s *Session) ResultDocID() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docID
}

// Consume decodes the generation stream and applies events to the file set in
// strict arrival order. It returns nil on a terminal completion (or EOF), a
// generation error for a terminal error event, and the transport error
// otherwise; the caller decides whether to fall back to status polling.
func (s *Session) Consume(ctx context.Context, body io.Reader) error {
	dec := stream.NewDecoder(body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("session: stream read: %w", err)
		}

		s.mu.Lock()
		s.lastEvent = time.Now()
		s.mu.Unlock()

		switch ev.Type {
		case stream.EventKeepalive:
		case stream.EventStatus:
			s.mu.Lock()
			s.status = ev.Message
			s.mu.Unlock()
		case stream.EventChat:
			// Narration for the chat surface; the relay forwards the raw
			// block, nothing reaches the file set.
		case stream.EventFileChunk:
			s.applyChunk(ev)
		case stream.EventSourceURL:
			s.mu.Lock()
			s.sourceURL = ev.URL
			s.mu.Unlock()
			s.reconciler.SetDeployedURL(ev.URL)
		case stream.EventComplete:
			s.mu.Lock()
			s.docID = ev.DocID
			s.mu.Unlock()
			return nil
		case stream.EventError:
			return fmt.Errorf("session: generation failed: %s", ev.Err)
		}
	}
}

func (s *Session) applyChunk(ev stream.Event) {
	if s.store.Mode() == fileset.ModeDocument {
		s.store.AppendText(ev.Content)
		return
	}
	if err := s.store.Replace(ev.Path, ev.Content); err != nil {
		log.Printf("session[%s]: dropping chunk: %v", s.DocumentID, err)
		return
	}
	s.reconciler.PushCodeUpdate(fileset.File{Path: ev.Path, Content: ev.Content})
}

// ApplyUserEdit applies a code-panel edit to one file and schedules a push on
// the slow code-edit window. User edits and stream chunks share last-write-wins
// semantics per path; there is no merge of concurrent writes.
func (s *Session) ApplyUserEdit(path, content string) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if err := s.store.Replace(path, content); err != nil {
		return err
	}
	s.reconciler.PushCodeEdit(s.store.Files())
	return nil
}

// Changes recomputes the modified-file state against the saved baseline.
func (s *Session) Changes(ctx context.Context) fileset.ComparisonResult {
	var saved []fileset.File
	if s.baseline != nil {
		if files, ok := s.baseline.Baseline(ctx, s.DocumentID); ok {
			if files == nil {
				files = []fileset.File{}
			}
			saved = files
		}
	}
	return fileset.Compare(s.store.Files(), saved)
}

// SetSelected records the element the user picked inside the preview; it
// replaces any previous selection.
func (s *Session) SetSelected(el *patch.SelectedElement) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = el
}

func (s *Session) Selected() *patch.SelectedElement {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ClearSelected discards the selection when the edit panel closes.
func (s *Session) ClearSelected() { s.SetSelected(nil) }

// ApplyTextUpdate patches an inline text edit back into the file set and
// schedules a visual-edit push. Duplicate updates inside the de-dup window
// are dropped with patchedPath == "". A patch miss leaves every file
// byte-identical and returns patch.ErrNotFound.
func (s *Session) ApplyTextUpdate(u preview.TextUpdate) (patchedPath string, err error) {
	if s == nil {
		return "", fmt.Errorf("session is nil")
	}
	if strings.TrimSpace(u.OriginalText) == "" {
		return "", fmt.Errorf("session: text update missing original text")
	}

	key := dedupKey{filePath: u.FilePath, textContent: u.TextContent}
	now := time.Now()
	s.mu.Lock()
	if at, ok := s.dedup[key]; ok && now.Sub(at) < textUpdateDedupWindow {
		s.mu.Unlock()
		return "", nil
	}
	s.dedup[key] = now
	for k, at := range s.dedup {
		if now.Sub(at) >= textUpdateDedupWindow {
			delete(s.dedup, k)
		}
	}
	s.mu.Unlock()

	snapshot := s.store.Files()
	patched, path, perr := s.patcher.PatchSet(snapshot, u.FilePath, u.OriginalText, u.TextContent)
	if perr != nil {
		return "", perr
	}
	s.store.SetFiles(patched)
	s.reconciler.PushVisualEdit(patched)
	return path, nil
}

// ApplyAttributeEdit applies independent class/style edits for the selected
// element and schedules a visual-edit push. Empty values are skipped.
func (s *Session) ApplyAttributeEdit(el patch.SelectedElement, newClass, newStyle string) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	content, ok := s.store.Get(el.FilePath)
	if !ok {
		return fmt.Errorf("session: no such file %q", el.FilePath)
	}

	changed := false
	if newClass != "" {
		if patched, ok := patch.ApplyClass(content, el, newClass); ok {
			content = patched
			changed = true
		}
	}
	if newStyle != "" {
		if patched, ok := patch.ApplyStyle(content, el, newStyle); ok {
			content = patched
			changed = true
		}
	}
	if !changed {
		return patch.ErrNotFound
	}
	if err := s.store.Replace(el.FilePath, content); err != nil {
		return err
	}
	s.reconciler.PushVisualEdit(s.store.Files())
	return nil
}

// Close tears the session down on navigation away from the document.
func (s *Session) Close(ctx context.Context) {
	if s == nil {
		return
	}
	s.CancelGeneration()
	s.reconciler.Close(ctx)
}
