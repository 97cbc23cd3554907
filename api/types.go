// types.go - API-Typen des dreamo Web-Servers
// Enthaelt: StatusError, GenerateRequest/Response, Beispiel-Galerien, Health/Version
package api

import (
	"encoding/base64"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "unbekannter fehler, siehe server-log"
	}
}

// ReferenceImage ist ein Referenzbild mit Aufgabe (ip, id, style)
type ReferenceImage struct {
	// Name ist der Dateiname im Multipart-Formular
	Name string
	Data []byte
	Task string
}

// GenerateRequest beschreibt eine Generierung. Nullwerte werden vom Server
// durch die Standardwerte des Formulars ersetzt.
type GenerateRequest struct {
	// References hat hoechstens zwei Slots; ein Slot ohne Data bleibt leer
	References []ReferenceImage

	Prompt            string
	Width             int
	Height            int
	RefRes            int
	Steps             int
	Guidance          float64
	Seed              string // "-1" = zufaellig
	TrueCFG           float64
	CFGStartStep      int
	CFGEndStep        int
	NegPrompt         string
	NegGuidance       float64
	FirstStepGuidance float64
}

// GenerateResponse ist die Antwort von POST /api/generate
type GenerateResponse struct {
	// Image ist das erzeugte Bild als base64-kodiertes PNG
	Image string `json:"image"`
	// DebugImages sind die vorverarbeiteten Referenzen (base64 PNG)
	DebugImages []string `json:"debug_images"`
	// Seed als Zeichenkette, da uint64 in JavaScript nicht exakt darstellbar ist
	Seed          string        `json:"seed"`
	TotalDuration time.Duration `json:"total_duration,omitempty"`
}

// ImageBytes dekodiert das erzeugte Bild
func (r *GenerateResponse) ImageBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Image)
}

// DebugImageBytes dekodiert die Vorschau der Referenz i
func (r *GenerateResponse) DebugImageBytes(i int) ([]byte, error) {
	if i < 0 || i >= len(r.DebugImages) {
		return nil, fmt.Errorf("keine vorschau %d", i)
	}
	return base64.StdEncoding.DecodeString(r.DebugImages[i])
}

// Example ist ein Galerie-Eintrag, der das Formular vorbelegt
type Example struct {
	Images []string `json:"images"` // Pfade relativ zu /examples/
	Tasks  []string `json:"tasks"`
	Prompt string   `json:"prompt"`
	Seed   string   `json:"seed"`
}

// Galleries sind die Beispiel-Galerien in Anzeige-Reihenfolge
type Galleries = orderedmap.OrderedMap[string, []Example]

// ExamplesResponse ist die Antwort von GET /api/examples
type ExamplesResponse struct {
	Galleries *Galleries `json:"galleries"`
}

// HealthResponse ist die Antwort von GET /api/health
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse ist die Antwort von GET /api/version
type VersionResponse struct {
	Version string `json:"version"`
}
