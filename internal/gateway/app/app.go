package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"previewsync/internal/gateway/config"
	"previewsync/internal/gateway/handler"
	"previewsync/internal/gateway/repository/baseline"
	"previewsync/internal/gateway/repository/snapshot"
	"previewsync/internal/gateway/server"
	"previewsync/internal/llm"
	"previewsync/internal/preview"
	"previewsync/internal/session"
)

type App struct {
	server *server.Server
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	baselines, err := newBaselineStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open baseline store: %w", err)
	}

	var archive snapshot.Archive
	if cfg.Snapshot.Enabled {
		archive, err = snapshot.NewS3Store(snapshot.S3Config{
			Endpoint:  cfg.Snapshot.Endpoint,
			Region:    cfg.Snapshot.Region,
			AccessKey: cfg.Snapshot.AccessKey,
			SecretKey: cfg.Snapshot.SecretKey,
			Bucket:    cfg.Snapshot.Bucket,
			UseSSL:    cfg.Snapshot.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot archive: %w", err)
		}
	}

	var sandbox preview.SandboxControl
	if cfg.Sandbox.BaseURL != "" {
		sandbox = preview.NewSandboxClient(cfg.Sandbox.BaseURL)
	}

	var generator *llm.Generator
	if cfg.LLM.APIKey != "" {
		generator, err = llm.NewGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to init generator: %w", err)
		}
	} else {
		log.Println("GEMINI_API_KEY not set; generation endpoints disabled")
	}

	mgr := session.NewManager(sandbox, baselines)
	engine := handler.NewEngineHandler(mgr, generator, baselines, archive)
	if cfg.Resilience.StatusURL != "" {
		engine.SetStatusFunc(newStatusFunc(cfg.Resilience.StatusURL))
	}

	// Routing & Server
	mux := server.NewMux(engine)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
	}, nil
}

// newStatusFunc polls an upstream generation-status endpoint of the form
// {base}/{documentID} returning {"isGenerating": bool}.
func newStatusFunc(baseURL string) session.StatusFunc {
	hc := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(baseURL, "/")
	return func(ctx context.Context, documentID string) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+url.PathEscape(documentID), nil)
		if err != nil {
			return false, err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Errorf("status endpoint returned %s", resp.Status)
		}
		var out struct {
			IsGenerating bool `json:"isGenerating"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false, err
		}
		return out.IsGenerating, nil
	}
}

func newBaselineStore(cfg *config.Config) (*baseline.Store, error) {
	if cfg.Baseline.DSN != "" {
		return baseline.NewPostgres(cfg.Baseline.DSN)
	}
	return baseline.New(cfg.Baseline.Path), nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
