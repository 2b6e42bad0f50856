package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

// StatusFunc asks the generation backend whether a document is still
// generating.
type StatusFunc func(ctx context.Context, documentID string) (isGenerating bool, err error)

// statusPollInterval is the watchdog poll cadence while a generation is
// believed to be in flight.
const statusPollInterval = 4 * time.Second

// Run drives one generation stream to completion. A clean stream (completion
// event or EOF) ends immediately; a transport error mid-stream is recovered
// locally by polling the status endpoint until the server reports the
// generation settled. The poll ticker exists only for the duration of the
// fallback, so a normally completing stream never leaves an orphaned timer.
func (s *Session) Run(ctx context.Context, body io.Reader, status StatusFunc) error {
	defer s.EndGeneration()

	err := s.Consume(ctx, body)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status == nil {
		return err
	}

	// Transport error: the stream died but the backend may still be working.
	// Fall back to polling; the partial file set is kept as-is.
	log.Printf("session[%s]: stream interrupted, polling status: %v", s.DocumentID, err)
	return s.pollUntilSettled(ctx, status)
}

func (s *Session) pollUntilSettled(ctx context.Context, status StatusFunc) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			generating, err := status(ctx, s.DocumentID)
			if err != nil {
				failures++
				if failures >= 3 {
					return fmt.Errorf("session: status polling failed: %w", err)
				}
				log.Printf("session[%s]: status poll failed (%d): %v", s.DocumentID, failures, err)
				continue
			}
			failures = 0
			if !generating {
				return nil
			}
		}
	}
}
