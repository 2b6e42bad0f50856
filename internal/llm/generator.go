package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	genai "google.golang.org/genai"
)

// Generator turns a user prompt into the blank-line-delimited generation
// protocol, backed by Gemini. The engine consumes the produced stream exactly
// as it would a remote backend's.
type Generator struct {
	cli   *genai.Client
	model string
}

func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &Generator{cli: cli, model: model}, nil
}

const filesPrompt = `You are generating a small multi-file web application.
Respond with a single JSON object of the shape
{"files":[{"path":"...","content":"..."}]}.
Paths are relative, contents are complete files.`

type filesPayload struct {
	Files []struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"files"`
}

// GenerateFiles streams protocol blocks for an application-generation session
// into w: status updates while the model works, one full-content text block
// per produced file, then a completion block. Failures become an error block;
// the writer always receives a terminal event.
func (g *Generator) GenerateFiles(ctx context.Context, prompt string, w io.Writer) {
	if g == nil || g.cli == nil {
		writeBlock(w, map[string]any{"error": "generator is not configured"})
		return
	}
	writeBlock(w, map[string]any{"status": map[string]string{"message": "Generating application"}})

	full := filesPrompt + "\n\n[REQUEST]\n" + prompt
	var buf strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	) {
		if err != nil {
			writeBlock(w, map[string]any{"error": err.Error()})
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			buf.WriteString(part.Text)
		}
		writeBlock(w, map[string]any{"keepalive": true})
	}

	var payload filesPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &payload); err != nil {
		writeBlock(w, map[string]any{"error": fmt.Sprintf("model returned invalid file payload: %v", err)})
		return
	}
	for _, f := range payload.Files {
		if strings.TrimSpace(f.Path) == "" {
			continue
		}
		writeBlock(w, map[string]any{"text": map[string]string{"path": f.Path, "content": f.Content}})
	}
	writeBlock(w, map[string]any{"status": map[string]string{"message": "Generation complete"}})
	writeBlock(w, map[string]any{"completed": true})
}

// GenerateDocument streams protocol blocks for a prose session: each model
// delta becomes an append-semantics text block, followed by a completion block
// carrying docID.
func (g *Generator) GenerateDocument(ctx context.Context, prompt, docID string, w io.Writer) {
	if g == nil || g.cli == nil {
		writeBlock(w, map[string]any{"error": "generator is not configured"})
		return
	}
	writeBlock(w, map[string]any{"status": map[string]string{"message": "Writing document"}})

	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	) {
		if err != nil {
			writeBlock(w, map[string]any{"error": err.Error()})
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			writeBlock(w, map[string]any{"text": map[string]string{"content": part.Text}})
		}
	}
	writeBlock(w, map[string]any{"completed": true, "docId": docID})
}

// writeBlock emits one protocol block followed by the blank-line frame.
func writeBlock(w io.Writer, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("llm: marshal block: %v", err)
		return
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", raw); err != nil {
		log.Printf("llm: write block: %v", err)
	}
}
