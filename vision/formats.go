// MODUL: formats
// ZWECK: Formaterkennung fuer hochgeladene Referenzbilder und Runner-Ausgaben
// INPUT: Bild-Bytes
// OUTPUT: ImageFormat, Fehler bei nicht dekodierbaren Formaten
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine
// HINWEISE: Die Web-Oberflaeche nimmt alles an, was der Browser hochlaedt; dekodiert
//           werden JPEG, PNG, WebP, GIF, BMP und TIFF (erstes Frame)

package vision

import (
	"bytes"
	"errors"
)

// ImageFormat ist das per Signatur erkannte Containerformat
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatPNG     ImageFormat = "png"
	FormatWebP    ImageFormat = "webp"
	FormatGIF     ImageFormat = "gif"
	FormatBMP     ImageFormat = "bmp"
	FormatTIFF    ImageFormat = "tiff"
	FormatUnknown ImageFormat = "unknown"
)

var ErrUnknownFormat = errors.New("unbekanntes bildformat")

type signature struct {
	format ImageFormat
	prefix []byte
	// zusaetzliche Kennung ab offset (RIFF-Container)
	offset int
	tag    []byte
}

var signatures = []signature{
	{format: FormatPNG, prefix: []byte("\x89PNG\r\n\x1a\n")},
	{format: FormatJPEG, prefix: []byte{0xFF, 0xD8, 0xFF}},
	{format: FormatWebP, prefix: []byte("RIFF"), offset: 8, tag: []byte("WEBP")},
	{format: FormatGIF, prefix: []byte("GIF87a")},
	{format: FormatGIF, prefix: []byte("GIF89a")},
	{format: FormatBMP, prefix: []byte("BM")},
	{format: FormatTIFF, prefix: []byte("II*\x00")},
	{format: FormatTIFF, prefix: []byte("MM\x00*")},
}

func (s signature) match(data []byte) bool {
	if !bytes.HasPrefix(data, s.prefix) {
		return false
	}
	if s.tag == nil {
		return true
	}
	end := s.offset + len(s.tag)
	return len(data) >= end && bytes.Equal(data[s.offset:end], s.tag)
}

// DetectFormat erkennt das Format anhand der ersten Bytes
func DetectFormat(data []byte) ImageFormat {
	for _, s := range signatures {
		if s.match(data) {
			return s.format
		}
	}
	return FormatUnknown
}

// ValidateFormat lehnt alles ab, wofuer kein Decoder registriert ist
func ValidateFormat(format ImageFormat) error {
	for _, s := range signatures {
		if s.format == format {
			return nil
		}
	}
	return ErrUnknownFormat
}

func (f ImageFormat) String() string {
	return string(f)
}
