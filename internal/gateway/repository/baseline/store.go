package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"previewsync/internal/fileset"
)

// Baseline is the last persisted file set for a document, used as the
// comparison point for change detection.
type Baseline struct {
	DocumentID   string         `json:"documentId"`
	CheckpointID string         `json:"checkpointId"`
	Files        []fileset.File `json:"files"`
	SavedAt      time.Time      `json:"savedAt"`
}

// Store keeps saved baselines in Postgres when a DSN is configured and in a
// local JSON file otherwise. The Postgres path carries an LRU cache because
// change detection reads the baseline on every recompute.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Baseline

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Baseline]
}

func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Baseline),
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Baseline](512)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// NewFromEnv prefers Postgres via BASELINE_PG_DSN and falls back to the file
// store at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("BASELINE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		log.Printf("baseline: postgres unavailable, using file store: %v", err)
		return New(path)
	}
	return s
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the saved baseline for documentID.
func (s *Store) Get(ctx context.Context, documentID string) (Baseline, bool) {
	if s == nil {
		return Baseline{}, false
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return Baseline{}, false
	}
	if s.db != nil {
		return s.getDB(ctx, documentID)
	}
	return s.getFile(documentID)
}

// Put persists b as the new baseline for its document.
func (s *Store) Put(ctx context.Context, b Baseline) error {
	if s == nil {
		return errors.New("store is nil")
	}
	b.DocumentID = strings.TrimSpace(b.DocumentID)
	if b.DocumentID == "" {
		return errors.New("document id is required")
	}
	if b.Files == nil {
		b.Files = []fileset.File{}
	}
	if b.SavedAt.IsZero() {
		b.SavedAt = time.Now().UTC()
	}
	if s.db != nil {
		if err := s.putDB(ctx, b); err != nil {
			return err
		}
		if s.cache != nil {
			s.cache.Remove(b.DocumentID)
		}
		return nil
	}
	return s.putFile(b)
}

// Baseline implements session.BaselineSource.
func (s *Store) Baseline(ctx context.Context, documentID string) ([]fileset.File, bool) {
	b, ok := s.Get(ctx, documentID)
	if !ok {
		return nil, false
	}
	return b.Files, true
}

//
// Postgres backend
//

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS preview_baselines (
				document_id   TEXT PRIMARY KEY,
				checkpoint_id TEXT NOT NULL,
				files         JSONB NOT NULL,
				saved_at      TIMESTAMPTZ NOT NULL
			)`)
	})
	return s.schemaErr
}

func (s *Store) getDB(ctx context.Context, documentID string) (Baseline, bool) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(documentID); ok {
			return cached, true
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		log.Printf("baseline: schema: %v", err)
		return Baseline{}, false
	}

	var b Baseline
	var rawFiles []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, checkpoint_id, files, saved_at FROM preview_baselines WHERE document_id = $1`,
		documentID,
	).Scan(&b.DocumentID, &b.CheckpointID, &rawFiles, &b.SavedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("baseline: get %s: %v", documentID, err)
		}
		return Baseline{}, false
	}
	if err := json.Unmarshal(rawFiles, &b.Files); err != nil {
		log.Printf("baseline: decode files for %s: %v", documentID, err)
		return Baseline{}, false
	}
	if b.Files == nil {
		b.Files = []fileset.File{}
	}
	if s.cache != nil {
		s.cache.Add(documentID, b)
	}
	return b, true
}

func (s *Store) putDB(ctx context.Context, b Baseline) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	rawFiles, err := json.Marshal(b.Files)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preview_baselines (document_id, checkpoint_id, files, saved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO UPDATE SET
			checkpoint_id = EXCLUDED.checkpoint_id,
			files         = EXCLUDED.files,
			saved_at      = EXCLUDED.saved_at`,
		b.DocumentID, b.CheckpointID, rawFiles, b.SavedAt)
	return err
}

//
// File backend
//

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var byID map[string]Baseline
		if err := json.Unmarshal(raw, &byID); err != nil {
			log.Printf("baseline: ignoring corrupt store file %s: %v", s.path, err)
			return
		}
		s.mu.Lock()
		s.byID = byID
		s.mu.Unlock()
	})
}

func (s *Store) getFile(documentID string) (Baseline, bool) {
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[documentID]
	return b, ok
}

func (s *Store) putFile(b Baseline) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byID[b.DocumentID] = b
	raw, err := json.MarshalIndent(s.byID, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o644)
}
