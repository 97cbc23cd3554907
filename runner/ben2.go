// ben2.go - Client fuer den BEN2 Hintergrund-Entfernungs-Runner
package runner

import (
	"context"
	"errors"
	"fmt"
)

// BEN2 entfernt den Hintergrund eines Bildes
type BEN2 struct {
	*Runner
}

// RemoveBackground sendet ein PNG und bekommt den freigestellten Vordergrund (RGBA PNG)
func (b BEN2) RemoveBackground(ctx context.Context, png []byte) ([]byte, error) {
	var resp BackgroundResponse
	if err := b.postJSON(ctx, "/remove_background", ImageRequest{Image: png}, &resp); err != nil {
		return nil, fmt.Errorf("hintergrund entfernen fehlgeschlagen: %w", err)
	}
	if len(resp.Image) == 0 {
		return nil, errors.New("hintergrund entfernen: leere antwort")
	}
	return resp.Image, nil
}
