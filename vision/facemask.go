// MODUL: facemask
// ZWECK: Maskierung nicht-fazialer Regionen eines ausgerichteten Gesichts
// INPUT: ausgerichtetes Gesicht (ImageInput), Parser-Logits [classes, H, W]
// OUTPUT: Label-Karte und maskiertes Gesicht (Hintergrund weiss)
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: gonum.org/v1/gonum/floats
// HINWEISE: Label-IDs folgen dem BiSeNet Face-Parser (19 Klassen)

package vision

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/floats"
)

// ParserClasses ist die Anzahl der Klassen des Face-Parsers
const ParserClasses = 19

// FaceBackgroundLabels sind die Klassen, die beim Gesicht weiss werden:
// Hintergrund, Hals, Kleidung, Haare, Ohren, Ohrringe, Halskette, Brille
var FaceBackgroundLabels = []int{0, 16, 18, 7, 8, 9, 14, 15}

// ArgmaxLabels reduziert Logits im Layout [classes, h, w] per Pixel auf die Klasse
// mit dem hoechsten Wert
func ArgmaxLabels(logits []float32, classes, h, w int) ([]int, error) {
	plane := h * w
	if classes <= 0 || len(logits) != classes*plane {
		return nil, fmt.Errorf("%w: %d logits fuer %dx%dx%d", ErrTensorSize, len(logits), classes, h, w)
	}

	labels := make([]int, plane)
	scores := make([]float64, classes)
	for p := range plane {
		for c := range classes {
			scores[c] = float64(logits[c*plane+p])
		}
		labels[p] = floats.MaxIdx(scores)
	}
	return labels, nil
}

// MaskFace ersetzt alle Pixel mit einem Label aus masked durch Weiss.
// Die uebrigen Pixel behalten den Wert des ausgerichteten Gesichts.
func MaskFace(face *ImageInput, labels []int, masked []int) (*ImageInput, error) {
	if len(labels) != face.Width*face.Height {
		return nil, fmt.Errorf("label-karte %d passt nicht zu %dx%d", len(labels), face.Width, face.Height)
	}

	drop := make(map[int]bool, len(masked))
	for _, l := range masked {
		drop[l] = true
	}

	bounds := face.Image.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, face.Width, face.Height))
	for y := range face.Height {
		for x := range face.Width {
			if drop[labels[y*face.Width+x]] {
				dst.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
				continue
			}
			dst.SetRGBA(x, y, face.Image.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}

	return &ImageInput{Image: dst, Width: face.Width, Height: face.Height, Format: face.Format}, nil
}
