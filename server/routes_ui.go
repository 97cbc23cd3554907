// routes_ui.go - Startseite des Web-UI (GET /)
package server

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/version"
)

//go:embed templates/*.html
var templatesFS embed.FS

// slider ist ein Schieberegler des Formulars
type slider struct {
	Name  string
	Label string
	Range dreamo.Range
	Value float64
}

type indexData struct {
	Version  string
	Tasks    []dreamo.Task
	Slots    []int
	Prompt   string
	Seed     string
	Sliders  []slider
	Advanced []slider
}

func newIndexData() indexData {
	cfg := dreamo.DefaultSamplingConfig()
	return indexData{
		Version: version.Version,
		Tasks:   dreamo.Tasks(),
		Slots:   []int{1, 2},
		Prompt:  dreamo.DefaultPrompt,
		Seed:    cfg.Seed.String(),
		Sliders: []slider{
			{api.FieldWidth, "Width", dreamo.SizeRange, float64(cfg.Width)},
			{api.FieldHeight, "Height", dreamo.SizeRange, float64(cfg.Height)},
			{api.FieldSteps, "Number of steps", dreamo.StepsRange, float64(cfg.Steps)},
			{api.FieldGuidance, "Guidance", dreamo.GuidanceRange, cfg.Guidance},
		},
		Advanced: []slider{
			{api.FieldRefRes, "resolution for ref image", dreamo.RefResRange, float64(cfg.RefRes)},
			{api.FieldNegGuidance, "Neg Guidance", dreamo.NegGuidanceRange, cfg.NegGuidance},
			{api.FieldTrueCFG, "true cfg", dreamo.TrueCFGRange, cfg.TrueCFG},
			{api.FieldCFGStartStep, "cfg start step", dreamo.CFGStepRange, float64(cfg.CFGStartStep)},
			{api.FieldCFGEndStep, "cfg end step", dreamo.CFGStepRange, float64(cfg.CFGEndStep)},
			{api.FieldFirstStepGuidance, "first step guidance", dreamo.FirstStepGuidanceRange, cfg.FirstStepGuidance},
		},
	}
}

// IndexHandler rendert das Formular mit Anleitung und Galerien
func (s *Server) IndexHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", newIndexData())
}
