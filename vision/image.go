// MODUL: image
// ZWECK: Dekodieren, Skalieren und Kodieren von Referenzbildern
// INPUT: Upload-Bytes, image.Image aus Runner-Antworten
// OUTPUT: ImageInput (RGBA mit Ursprung 0,0), PNG-Bytes
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image (draw, webp, bmp, tiff)
// HINWEISE: Transparente Bereiche werden vor der Konditionierung weiss gefuellt

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels begrenzt die deklarierte Bildgroesse vor dem Dekodieren
const MaxPixels = 8192 * 8192

var ErrImageTooLarge = errors.New("bild zu gross")

// ImageInput ist ein dekodiertes Bild in RGBA
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// LoadImageFromBytes dekodiert einen Upload; das Format wird vorher per Signatur geprueft
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s dekodieren fehlgeschlagen: %w", format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d, erlaubt sind %d pixel", ErrImageTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s dekodieren fehlgeschlagen: %w", format, err)
	}

	in := FromImage(img)
	in.Format = format
	return in, nil
}

// FromImage uebernimmt ein image.Image; Ausgaben sind immer PNG
func FromImage(img image.Image) *ImageInput {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &ImageInput{
		Image:  rgba,
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Format: FormatPNG,
	}
}

// ResizeImage skaliert auf width x height (Catmull-Rom, wie PIL BICUBIC)
func ResizeImage(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", width, height)
	}
	if width == img.Width && height == img.Height {
		return img, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Rect, img.Image, img.Image.Rect, draw.Src, nil)
	return &ImageInput{Image: dst, Width: width, Height: height, Format: img.Format}, nil
}

// Composite legt das Bild auf weissen Grund (RGBA nach RGB)
func Composite(img *ImageInput) *ImageInput {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	draw.Draw(dst, dst.Rect, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Rect, img.Image, img.Image.Rect.Min, draw.Over)
	return &ImageInput{Image: dst, Width: img.Width, Height: img.Height, Format: img.Format}
}

// EncodePNG kodiert das Bild als PNG (Vorschau im UI und Eingabe der Runner)
func EncodePNG(img *ImageInput) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return nil, fmt.Errorf("png kodieren fehlgeschlagen: %w", err)
	}
	return buf.Bytes(), nil
}
