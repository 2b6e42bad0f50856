package fileset

import (
	"fmt"
	"strings"
	"sync"
)

// File is one entry of a generated file set.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Mode selects how incoming content chunks accumulate. The zero value means
// the mode has not been settled yet; the first generation for the session
// settles it, and a settled mode never changes mid-stream.
type Mode string

const (
	// ModeFiles is the multi-file replace mode used for application and
	// prototype generation: a chunk for a path replaces that path's content.
	ModeFiles Mode = "files"
	// ModeDocument is the single-document append mode used for prose
	// generation: chunks concatenate onto one running buffer.
	ModeDocument Mode = "document"
)

// Store is the canonical path→content mapping for one editing session.
// Insertion order of paths is preserved for tree rendering only; it carries no
// correctness guarantee.
type Store struct {
	mu     sync.RWMutex
	mode   Mode
	order  []string
	byPath map[string]string
	doc    strings.Builder
}

// NewStore creates a store. An empty mode is allowed and means undecided:
// observers (the bridge, the file read API) may open a session before any
// generation has declared the document type.
func NewStore(mode Mode) *Store {
	return &Store{
		mode:   mode,
		byPath: make(map[string]string),
	}
}

func (s *Store) Mode() Mode {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// EnsureMode settles an undecided mode and returns the effective one. A
// settled mode is never changed; an empty argument leaves the mode undecided.
func (s *Store) EnsureMode(mode Mode) Mode {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == "" && mode != "" {
		s.mode = mode
	}
	return s.mode
}

// Replace stores content for path, overwriting any previous content. The
// backend re-emits a file's full current content on each update, so this is
// last-write-wins, never an append.
func (s *Store) Replace(path, content string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPath[path]; !ok {
		s.order = append(s.order, path)
	}
	s.byPath[path] = content
	return nil
}

// Remove drops path from the set. Removing an absent path is a no-op.
func (s *Store) Remove(path string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPath[path]; !ok {
		return
	}
	delete(s.byPath, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AppendText concatenates a chunk onto the document buffer in arrival order.
// Only meaningful in ModeDocument.
func (s *Store) AppendText(chunk string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.WriteString(chunk)
}

// Document returns the accumulated document buffer.
func (s *Store) Document() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.String()
}

func (s *Store) Get(path string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.byPath[path]
	return content, ok
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPath)
}

// Files returns a snapshot copy in insertion order. Mutating the returned
// slice never affects the store.
func (s *Store) Files() []File {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]File, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, File{Path: path, Content: s.byPath[path]})
	}
	return out
}

// SetFiles atomically replaces the whole set with the given snapshot. Callers
// that transform a snapshot (the visual-edit patcher) hand ownership of the
// result back through here so readers never observe a partial mutation.
func (s *Store) SetFiles(files []File) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.byPath = make(map[string]string, len(files))
	for _, f := range files {
		path := strings.TrimSpace(f.Path)
		if path == "" {
			continue
		}
		if _, ok := s.byPath[path]; !ok {
			s.order = append(s.order, path)
		}
		s.byPath[path] = f.Content
	}
}
