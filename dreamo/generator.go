// generator.go - Orchestrierung einer Generierung
// Referenzen vorverarbeiten, Bedingungen zusammenstellen, genau ein Pipeline-Aufruf.
package dreamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/runner"
	"github.com/dreamo-go/dreamo/vision"
)

// MaxReferences ist die Anzahl der Referenz-Slots
const MaxReferences = 2

var (
	ErrTooManyReferences = fmt.Errorf("hoechstens %d referenzbilder erlaubt", MaxReferences)
	ErrServerBusy        = errors.New("server ausgelastet, bitte spaeter erneut versuchen")
	ErrGeneratorClosed   = errors.New("generator wurde beendet")
)

// Pipeline fuehrt die Diffusion aus und liefert ein PNG
type Pipeline interface {
	Generate(ctx context.Context, req runner.PipelineRequest, fn func(runner.Progress)) ([]byte, error)
}

// Reference ist ein Referenz-Slot; Image nil bedeutet leer
type Reference struct {
	Image *vision.ImageInput
	Task  Task
}

// Request ist eine Generierungsanfrage
type Request struct {
	References []Reference
	Prompt     string
	Config     SamplingConfig

	// Progress wird pro Diffusionsschritt aufgerufen (optional)
	Progress func(step, total int)
}

// Result ist das Ergebnis einer Generierung
type Result struct {
	Image       []byte   // PNG
	DebugImages [][]byte // vorverarbeitete Referenzen als PNG, in Slot-Reihenfolge
	Seed        uint64
	Duration    time.Duration
}

// Components sind die geladenen Modelle, die der Generator benutzt
type Components struct {
	Background      BackgroundRemover
	BackgroundScope Scope
	Face            FaceProcessor
	FaceScope       Scope
	Pipeline        Pipeline
}

// GeneratorOption konfiguriert einen Generator
type GeneratorOption func(*Generator)

// WithMaxQueue setzt die Anzahl der wartenden Anfragen (0 = nur die laufende)
func WithMaxQueue(n uint) GeneratorOption {
	return func(g *Generator) { g.queue = make(chan struct{}, n+1) }
}

// WithSeedSource ersetzt die Zufallsquelle fuer Seed "-1"
func WithSeedSource(fn func() uint64) GeneratorOption {
	return func(g *Generator) { g.draw = fn }
}

// Generator fuehrt Generierungen nacheinander aus
type Generator struct {
	pre      *Preprocessor
	pipeline Pipeline

	// sem erlaubt genau eine laufende Generierung, queue begrenzt die Wartenden
	sem    *semaphore.Weighted
	queue  chan struct{}
	closed atomic.Bool
	draw   func() uint64
}

// NewGenerator erstellt einen Generator fuer die geladenen Modelle
func NewGenerator(c Components, opts ...GeneratorOption) *Generator {
	g := &Generator{
		pre:      NewPreprocessor(c.Background, c.BackgroundScope, c.Face, c.FaceScope),
		pipeline: c.Pipeline,
		sem:      semaphore.NewWeighted(1),
		queue:    make(chan struct{}, envconfig.MaxQueue()+1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate erzeugt ein Bild aus Prompt, Referenzen und Sampling-Konfiguration
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.closed.Load() {
		return nil, ErrGeneratorClosed
	}
	if len(req.References) > MaxReferences {
		return nil, ErrTooManyReferences
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	for i, ref := range req.References {
		if ref.Image != nil && !ref.Task.Valid() {
			return nil, fmt.Errorf("referenz %d: %w %q", i+1, ErrUnknownTask, ref.Task)
		}
	}

	select {
	case g.queue <- struct{}{}:
		defer func() { <-g.queue }()
	default:
		return nil, ErrServerBusy
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	start := time.Now()
	cfg := req.Config

	var (
		conds  []runner.RefCondition
		debugs [][]byte
	)
	for slot, ref := range req.References {
		if ref.Image == nil {
			continue
		}
		cond, err := g.pre.Preprocess(ctx, ref.Image, ref.Task, cfg.RefRes, slot)
		if err != nil {
			return nil, fmt.Errorf("referenz %d: %w", slot+1, err)
		}
		t, err := cond.Tensor(vision.DTypeBF16)
		if err != nil {
			return nil, err
		}
		conds = append(conds, runner.RefCondition{Image: t, Task: cond.Task.String(), Index: cond.Index})

		preview, err := vision.EncodePNG(cond.Image)
		if err != nil {
			return nil, err
		}
		debugs = append(debugs, preview)
	}

	seed := cfg.Seed.Resolve(g.draw)
	preq := runner.PipelineRequest{
		Prompt:                 req.Prompt,
		Width:                  cfg.Width,
		Height:                 cfg.Height,
		NumInferenceSteps:      cfg.Steps,
		GuidanceScale:          cfg.Guidance,
		RefConds:               conds,
		Seed:                   seed,
		TrueCFGScale:           cfg.TrueCFG,
		TrueCFGStartStep:       cfg.CFGStartStep,
		TrueCFGEndStep:         cfg.CFGEndStep,
		NegativePrompt:         cfg.NegPrompt,
		NegGuidanceScale:       cfg.NegGuidance,
		FirstStepGuidanceScale: cfg.FirstStepGuidanceScale(),
	}

	slog.Info("generating image", "prompt", req.Prompt, "seed", seed, "refs", len(conds),
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "steps", cfg.Steps)

	var progress func(runner.Progress)
	if req.Progress != nil {
		progress = func(p runner.Progress) { req.Progress(p.Step, p.Total) }
	}
	img, err := g.pipeline.Generate(ctx, preq, progress)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := vision.ValidateFormat(vision.DetectFormat(img)); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	res := &Result{Image: img, DebugImages: debugs, Seed: seed, Duration: time.Since(start)}
	slog.Info("image generated", "seed", seed, "duration", res.Duration)
	return res, nil
}

// Close nimmt keine neuen Anfragen mehr an und wartet auf die laufende Generierung
func (g *Generator) Close(ctx context.Context) error {
	g.closed.Store(true)
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.sem.Release(1)
	return nil
}
