package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"previewsync/internal/fileset"
)

// SandboxControl is the dev-sandbox control surface: an ephemeral,
// hot-reload-capable environment that exists only while visual-edit mode is
// active.
type SandboxControl interface {
	Start(ctx context.Context, documentID string) (url string, err error)
	Stop(ctx context.Context, documentID string) error
	UpdateFiles(ctx context.Context, documentID string, files []fileset.File) error
}

// SandboxClient talks to the sandbox control endpoint over HTTP.
type SandboxClient struct {
	baseURL string
	hc      *http.Client
}

func NewSandboxClient(baseURL string) *SandboxClient {
	return &SandboxClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SandboxClient) Start(ctx context.Context, documentID string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("sandbox: no control endpoint configured")
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/sandboxes/"+documentID+"/start", nil, &out); err != nil {
		return "", fmt.Errorf("sandbox start: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("sandbox start: empty url in response")
	}
	return out.URL, nil
}

func (c *SandboxClient) Stop(ctx context.Context, documentID string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("sandbox: no control endpoint configured")
	}
	if err := c.post(ctx, "/sandboxes/"+documentID+"/stop", nil, nil); err != nil {
		return fmt.Errorf("sandbox stop: %w", err)
	}
	return nil
}

func (c *SandboxClient) UpdateFiles(ctx context.Context, documentID string, files []fileset.File) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("sandbox: no control endpoint configured")
	}
	body := struct {
		Files []fileset.File `json:"files"`
	}{Files: files}
	if err := c.post(ctx, "/sandboxes/"+documentID+"/files", body, nil); err != nil {
		return fmt.Errorf("sandbox update files: %w", err)
	}
	return nil
}

func (c *SandboxClient) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
