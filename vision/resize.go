// MODUL: resize
// ZWECK: Groessenanpassung von Referenzbildern vor der Konditionierung
// INPUT: ImageInput, Ziel-Kantenlaenge oder Ziel-Flaeche
// OUTPUT: skaliertes ImageInput
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: image.go (ResizeImage)
// HINWEISE: Flaechen-Resize rundet auf Vielfache von 16 ab (Latent-Patchgroesse)

package vision

import (
	"fmt"
	"math"
)

// SizeMultiple ist das Raster, auf das Referenzbilder abgerundet werden
const SizeMultiple = 16

// ResizeLongSide verkleinert ein Bild so, dass die laengere Seite longEdge ist.
// Bilder, die bereits klein genug sind, werden unveraendert zurueckgegeben.
func ResizeLongSide(img *ImageInput, longEdge int) (*ImageInput, error) {
	if longEdge <= 0 {
		return nil, fmt.Errorf("ungueltige Kantenlaenge: %d", longEdge)
	}
	if max(img.Width, img.Height) <= longEdge {
		return img, nil
	}

	k := float64(longEdge) / float64(max(img.Width, img.Height))
	w := max(int(float64(img.Width)*k), 1)
	h := max(int(float64(img.Height)*k), 1)
	return ResizeImage(img, w, h)
}

// AreaSize berechnet die Zielgroesse fuer ResizeToArea.
// Beide Seiten werden mit sqrt(area/(w*h)) skaliert und auf SizeMultiple
// abgerundet. Faellt eine Seite unter SizeMultiple, wird sie darauf angehoben
// und die andere Seite so gekuerzt, dass w*h <= area bleibt (area >= SizeMultiple^2).
func AreaSize(width, height, area int) (int, int) {
	k := math.Sqrt(float64(area) / (float64(width) * float64(height)))
	w := roundDown(int(float64(width) * k))
	h := roundDown(int(float64(height) * k))

	switch {
	case h < SizeMultiple:
		h = SizeMultiple
		w = roundDown(min(w, area/h))
	case w < SizeMultiple:
		w = SizeMultiple
		h = roundDown(min(h, area/w))
	}
	return w, h
}

func roundDown(n int) int { return n - n%SizeMultiple }

// ResizeToArea skaliert ein Bild (auch vergroessernd) auf hoechstens area Pixel
func ResizeToArea(img *ImageInput, area int) (*ImageInput, error) {
	if area < SizeMultiple*SizeMultiple {
		return nil, fmt.Errorf("ungueltige Flaeche: %d", area)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("ungueltige Bildgroesse: %dx%d", img.Width, img.Height)
	}

	w, h := AreaSize(img.Width, img.Height, area)
	return ResizeImage(img, w, h)
}
