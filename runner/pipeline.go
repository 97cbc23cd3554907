// pipeline.go - Client fuer den DreamO/FLUX Pipeline-Runner
// Die Antwort von /completion ist ein NDJSON-Stream mit Fortschritt und
// dem fertigen Bild in der letzten Zeile.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoImage wird zurueckgegeben wenn der Stream ohne Bild endet
var ErrNoImage = errors.New("pipeline lieferte kein bild")

// Pipeline ist der Diffusions-Runner
type Pipeline struct {
	*Runner
}

// Generate ruft die Pipeline genau einmal auf und gibt das PNG zurueck.
// fn (optional) erhaelt Fortschrittsmeldungen.
func (p Pipeline) Generate(ctx context.Context, req PipelineRequest, fn func(Progress)) ([]byte, error) {
	resp, err := p.post(ctx, "/completion", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024) // 64MB max (1024x1024 PNG in base64)
	for scanner.Scan() {
		var chunk pipelineChunk
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			slog.Debug("skipping malformed pipeline chunk", "error", err)
			continue
		}

		if chunk.Error != "" {
			return nil, fmt.Errorf("pipeline: %s", chunk.Error)
		}
		if chunk.Total > 0 && fn != nil {
			fn(Progress{Step: chunk.Step, Total: chunk.Total})
		}
		if chunk.Done {
			if len(chunk.Image) == 0 {
				return nil, ErrNoImage
			}
			return chunk.Image, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline stream lesen fehlgeschlagen: %w", err)
	}
	return nil, ErrNoImage
}
