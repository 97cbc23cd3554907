// routes_generate.go - POST /api/generate
// Liest das Multipart-Formular, ruft den Generator und kodiert das Ergebnis.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/logutil"
	"github.com/dreamo-go/dreamo/vision"
)

// maxImageSize begrenzt ein einzelnes Referenzbild
const maxImageSize = 32 << 20

var (
	errBadForm      = errors.New("ungueltiges formular")
	errInvalidImage = errors.New("ungueltiges referenzbild")
)

// GenerateHandler erzeugt ein Bild aus dem Formular des Web-UI
func (s *Server) GenerateHandler(c *gin.Context) {
	req, err := parseGenerateForm(c)
	if err != nil {
		writeGenerateError(c, err)
		return
	}

	ctx := c.Request.Context()
	req.Progress = func(step, total int) {
		logutil.TraceContext(ctx, "diffusion step", "step", step, "total", total)
	}

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		writeGenerateError(c, err)
		return
	}

	resp := api.GenerateResponse{
		Image:         base64.StdEncoding.EncodeToString(res.Image),
		DebugImages:   make([]string, 0, len(res.DebugImages)),
		Seed:          strconv.FormatUint(res.Seed, 10),
		TotalDuration: res.Duration,
	}
	for _, d := range res.DebugImages {
		resp.DebugImages = append(resp.DebugImages, base64.StdEncoding.EncodeToString(d))
	}
	c.JSON(http.StatusOK, resp)
}

// parseGenerateForm baut eine dreamo.Request; fehlende Felder bekommen die Standardwerte
func parseGenerateForm(c *gin.Context) (dreamo.Request, error) {
	var req dreamo.Request

	form, err := c.MultipartForm()
	if err != nil {
		return req, fmt.Errorf("%w: %v", errBadForm, err)
	}

	for name, files := range form.File {
		if !strings.HasPrefix(name, api.FieldRefImage) {
			continue
		}
		if (name != api.RefImageField(0) && name != api.RefImageField(1)) || len(files) > 1 {
			return req, dreamo.ErrTooManyReferences
		}
	}

	for i := range api.MaxReferences {
		ref, err := parseReference(c, i)
		if err != nil {
			return req, fmt.Errorf("referenz %d: %w", i+1, err)
		}
		req.References = append(req.References, ref)
	}

	req.Prompt = dreamo.DefaultPrompt
	if prompt, ok := c.GetPostForm(api.FieldPrompt); ok {
		req.Prompt = prompt
	}

	cfg := dreamo.DefaultSamplingConfig()
	p := formParser{c: c}
	cfg.Width = p.int(api.FieldWidth, cfg.Width)
	cfg.Height = p.int(api.FieldHeight, cfg.Height)
	cfg.RefRes = p.int(api.FieldRefRes, cfg.RefRes)
	cfg.Steps = p.int(api.FieldSteps, cfg.Steps)
	cfg.Guidance = p.float(api.FieldGuidance, cfg.Guidance)
	cfg.TrueCFG = p.float(api.FieldTrueCFG, cfg.TrueCFG)
	cfg.CFGStartStep = p.int(api.FieldCFGStartStep, cfg.CFGStartStep)
	cfg.CFGEndStep = p.int(api.FieldCFGEndStep, cfg.CFGEndStep)
	cfg.NegPrompt = c.PostForm(api.FieldNegPrompt)
	cfg.NegGuidance = p.float(api.FieldNegGuidance, cfg.NegGuidance)
	cfg.FirstStepGuidance = p.float(api.FieldFirstStepGuidance, cfg.FirstStepGuidance)
	if p.err != nil {
		return req, p.err
	}

	if cfg.Seed, err = dreamo.ParseSeed(c.DefaultPostForm(api.FieldSeed, dreamo.RandomSeed)); err != nil {
		return req, err
	}

	req.Config = cfg
	return req, nil
}

// parseReference liest Slot i; ohne Datei bleibt der Slot leer
func parseReference(c *gin.Context, i int) (dreamo.Reference, error) {
	fh, err := c.FormFile(api.RefImageField(i))
	if errors.Is(err, http.ErrMissingFile) {
		return dreamo.Reference{}, nil
	} else if err != nil {
		return dreamo.Reference{}, fmt.Errorf("%w: %v", errBadForm, err)
	}

	f, err := fh.Open()
	if err != nil {
		return dreamo.Reference{}, fmt.Errorf("%w: %v", errInvalidImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return dreamo.Reference{}, fmt.Errorf("%w: %v", errInvalidImage, err)
	}
	if len(data) > maxImageSize {
		return dreamo.Reference{}, fmt.Errorf("%w: groesser als %d bytes", errInvalidImage, maxImageSize)
	}

	img, err := vision.LoadImageFromBytes(data)
	if err != nil {
		return dreamo.Reference{}, fmt.Errorf("%w %s: %w", errInvalidImage, fh.Filename, err)
	}

	task, err := dreamo.ParseTask(c.DefaultPostForm(api.RefTaskField(i), string(dreamo.TaskIP)))
	if err != nil {
		return dreamo.Reference{}, err
	}
	return dreamo.Reference{Image: img, Task: task}, nil
}

// formParser sammelt den ersten Parse-Fehler
type formParser struct {
	c   *gin.Context
	err error
}

func (p *formParser) int(name string, def int) int {
	s, ok := p.c.GetPostForm(name)
	if !ok || strings.TrimSpace(s) == "" || p.err != nil {
		return def
	}
	// Slider senden Zahlen gelegentlich als "1024.0"
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != float64(int(f)) {
		p.err = fmt.Errorf("%w: %s=%q ist keine ganze zahl", errBadForm, name, s)
		return def
	}
	return int(f)
}

func (p *formParser) float(name string, def float64) float64 {
	s, ok := p.c.GetPostForm(name)
	if !ok || strings.TrimSpace(s) == "" || p.err != nil {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.err = fmt.Errorf("%w: %s=%q ist keine zahl", errBadForm, name, s)
		return def
	}
	return f
}

// generateStatus bildet Fehler auf HTTP-Status ab
func generateStatus(err error) int {
	switch {
	case errors.Is(err, errBadForm),
		errors.Is(err, errInvalidImage),
		errors.Is(err, dreamo.ErrUnknownTask),
		errors.Is(err, dreamo.ErrTooManyReferences),
		errors.Is(err, dreamo.ErrInvalidConfig),
		errors.Is(err, dreamo.ErrInvalidSeed):
		return http.StatusBadRequest
	case errors.Is(err, dreamo.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dreamo.ErrServerBusy), errors.Is(err, dreamo.ErrGeneratorClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeGenerateError(c *gin.Context, err error) {
	status := generateStatus(err)
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("generation canceled by client", "request", logutil.RequestID(c.Request.Context()))
	case status >= http.StatusInternalServerError:
		slog.Error("generation failed", "request", logutil.RequestID(c.Request.Context()), "error", err)
	default:
		slog.Debug("generation rejected", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
