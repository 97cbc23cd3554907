// face.go - Client fuer den facexlib Runner (Detektion, Ausrichtung, Parsing)
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreamo-go/dreamo/vision"
)

// Face richtet das zentralste Gesicht aus und liefert Parser-Logits
type Face struct {
	*Runner
}

// AlignFace erkennt Landmarken (nur das zentrale Gesicht) und warpt es auf
// die feste Gesichtsgroesse. found ist false wenn kein Gesicht erkannt wurde.
func (f Face) AlignFace(ctx context.Context, png []byte) (face []byte, found bool, err error) {
	var resp AlignResponse
	if err := f.postJSON(ctx, "/align", ImageRequest{Image: png}, &resp); err != nil {
		return nil, false, fmt.Errorf("gesicht ausrichten fehlgeschlagen: %w", err)
	}
	if !resp.Found {
		return nil, false, nil
	}
	if len(resp.Face) == 0 {
		return nil, false, errors.New("gesicht ausrichten: leere antwort")
	}
	return resp.Face, true, nil
}

// ParseFace fuehrt das Parsing-Netz auf einem normalisierten Tensor aus
func (f Face) ParseFace(ctx context.Context, input *vision.Tensor) (*vision.Tensor, error) {
	var resp ParseResponse
	if err := f.postJSON(ctx, "/parse", ParseRequest{Input: input}, &resp); err != nil {
		return nil, fmt.Errorf("gesicht parsen fehlgeschlagen: %w", err)
	}
	if resp.Logits == nil {
		return nil, errors.New("gesicht parsen: keine logits")
	}
	return resp.Logits, nil
}
