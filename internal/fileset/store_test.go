package fileset

import "testing"

func TestReplaceSemantics(t *testing.T) {
	s := NewStore(ModeFiles)
	if err := s.Replace("src/App.tsx", "v1"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := s.Replace("src/App.tsx", "v2"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, ok := s.Get("src/App.tsx")
	if !ok {
		t.Fatalf("Get() missing path after replace")
	}
	if got != "v2" {
		t.Fatalf("Get() = %q, want %q (replace, not append)", got, "v2")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestAppendSemantics(t *testing.T) {
	s := NewStore(ModeDocument)
	s.AppendText("Hello ")
	s.AppendText("world")
	if got := s.Document(); got != "Hello world" {
		t.Fatalf("Document() = %q, want %q", got, "Hello world")
	}
}

func TestFilesPreservesInsertionOrder(t *testing.T) {
	s := NewStore(ModeFiles)
	for _, p := range []string{"b.txt", "a.txt", "c.txt"} {
		if err := s.Replace(p, p); err != nil {
			t.Fatalf("Replace(%q) error = %v", p, err)
		}
	}
	// Re-writing an existing path must not move it.
	if err := s.Replace("b.txt", "b2"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	files := s.Files()
	wantOrder := []string{"b.txt", "a.txt", "c.txt"}
	if len(files) != len(wantOrder) {
		t.Fatalf("Files() len = %d, want %d", len(files), len(wantOrder))
	}
	for i, p := range wantOrder {
		if files[i].Path != p {
			t.Fatalf("Files()[%d].Path = %q, want %q", i, files[i].Path, p)
		}
	}
}

func TestFilesReturnsSnapshotCopy(t *testing.T) {
	s := NewStore(ModeFiles)
	_ = s.Replace("a.txt", "original")
	snap := s.Files()
	snap[0].Content = "mutated"
	if got, _ := s.Get("a.txt"); got != "original" {
		t.Fatalf("store content = %q after snapshot mutation, want %q", got, "original")
	}
}

func TestSetFilesReplacesWholeSet(t *testing.T) {
	s := NewStore(ModeFiles)
	_ = s.Replace("old.txt", "x")
	s.SetFiles([]File{{Path: "new.txt", Content: "y"}})

	if _, ok := s.Get("old.txt"); ok {
		t.Fatalf("old path survived SetFiles")
	}
	if got, ok := s.Get("new.txt"); !ok || got != "y" {
		t.Fatalf("Get(new.txt) = %q, %v", got, ok)
	}
}

func TestEnsureModeSettlesOnce(t *testing.T) {
	s := NewStore("")
	if got := s.Mode(); got != "" {
		t.Fatalf("Mode() = %q for a fresh store, want undecided", got)
	}
	if got := s.EnsureMode(""); got != "" {
		t.Fatalf("EnsureMode(\"\") = %q, want still undecided", got)
	}
	if got := s.EnsureMode(ModeDocument); got != ModeDocument {
		t.Fatalf("EnsureMode(document) = %q", got)
	}
	// A settled mode never changes.
	if got := s.EnsureMode(ModeFiles); got != ModeDocument {
		t.Fatalf("EnsureMode(files) = %q, want %q kept", got, ModeDocument)
	}
}

func TestReplaceRejectsEmptyPath(t *testing.T) {
	s := NewStore(ModeFiles)
	if err := s.Replace("  ", "content"); err == nil {
		t.Fatalf("Replace with empty path succeeded, want error")
	}
}
