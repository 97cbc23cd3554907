// loader.go - Gewichte laden und Runner starten
//
// Drei Artefakte: BEN2 (Hintergrund), facexlib (Ausrichtung + Parsing) und die
// DreamO/FLUX Pipeline. Jeder Fehler ist fatal, es wird nie mit fehlenden
// Modellen bedient.
package dreamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nlpodyssey/gopickle/pytorch"
	"golang.org/x/sync/errgroup"

	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/huggingface"
	"github.com/dreamo-go/dreamo/runner"
)

// Herkunft der Gewichte
const (
	BEN2Repo = "PramaLLC/BEN2"
	BEN2File = "BEN2_Base.pth"
	FluxRepo = "black-forest-labs/FLUX.1-dev"
	FluxDir  = "FLUX.1-dev"

	FaceDetModel = "retinaface_resnet50"
	FaceSize     = 512
)

// LoadOptions steuert Download und Start der Modelle
type LoadOptions struct {
	ModelsDir string
	Device    string

	Turbo   bool // Turbo-LoRA fuer weniger Schritte
	Int8    bool // transformer und text_encoder_2 quantisieren
	Offload bool // Hilfsmodelle auf dem Host halten

	VerifyCheckpoints bool

	RunnerCommand string
	BEN2URL       string
	FaceURL       string
	PipelineURL   string
	LoadTimeout   time.Duration

	// Progress meldet den Fortschritt des FLUX-Snapshots (optional)
	Progress func(downloaded, total int64)
}

// DefaultLoadOptions liest die Umgebung; Turbo ist an
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		ModelsDir:         envconfig.Models(),
		Device:            envconfig.Device(),
		Turbo:             true,
		VerifyCheckpoints: envconfig.VerifyCheckpoints(),
		RunnerCommand:     envconfig.Runner(),
		BEN2URL:           envconfig.BEN2URL(),
		FaceURL:           envconfig.FaceURL(),
		PipelineURL:       envconfig.PipelineURL(),
		LoadTimeout:       envconfig.LoadTimeout(),
	}
}

// Weights sind die lokalen Pfade der heruntergeladenen Gewichte
type Weights struct {
	BEN2 string
	Flux string
}

// Loader laedt die Gewichte vom Hub und startet die Runner
type Loader struct {
	hub  *huggingface.Client
	opts LoadOptions
}

func NewLoader(hub *huggingface.Client, opts LoadOptions) *Loader {
	if hub == nil {
		hub = huggingface.NewClient()
	}
	return &Loader{hub: hub, opts: opts}
}

// Download stellt sicher, dass alle Gewichte lokal vorliegen
func (l *Loader) Download(ctx context.Context) (*Weights, error) {
	if err := os.MkdirAll(l.opts.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("modell-verzeichnis erstellen: %w", err)
	}

	var w Weights
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := l.hub.DownloadFileWithContext(gctx, BEN2Repo, BEN2File, "main", l.opts.ModelsDir)
		if err != nil {
			return err
		}
		w.BEN2 = path
		return nil
	})
	g.Go(func() error {
		opts := []huggingface.DownloadOption{huggingface.WithResume(true)}
		if l.opts.Progress != nil {
			opts = append(opts, huggingface.WithDownloadProgress(l.opts.Progress))
		}
		res, err := l.hub.SnapshotDownloadWithContext(gctx, FluxRepo, filepath.Join(l.opts.ModelsDir, FluxDir), opts...)
		if err != nil {
			return err
		}
		slog.Info("snapshot ready", "model", FluxRepo, "files", len(res.Files), "dir", res.LocalDir, "duration", res.DownloadTime)
		w.Flux = res.LocalDir
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gewichte laden: %w", err)
	}

	if l.opts.VerifyCheckpoints {
		if err := verifyCheckpoint(w.BEN2); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// verifyCheckpoint prueft, dass die Datei ein lesbarer PyTorch-Checkpoint ist
func verifyCheckpoint(path string) error {
	start := time.Now()
	if _, err := pytorch.Load(path); err != nil {
		return fmt.Errorf("checkpoint %s unlesbar: %w", filepath.Base(path), err)
	}
	slog.Debug("checkpoint verified", "path", path, "duration", time.Since(start))
	return nil
}

// Models sind die gestarteten Runner
type Models struct {
	BEN2     runner.BEN2
	Face     runner.Face
	Pipeline runner.Pipeline

	BEN2Placement *runner.Placement
	FacePlacement *runner.Placement

	runners []*runner.Runner
}

// Components verbindet die Modelle mit dem Generator
func (m *Models) Components() Components {
	return Components{
		Background:      m.BEN2,
		BackgroundScope: m.BEN2Placement,
		Face:            m.Face,
		FaceScope:       m.FacePlacement,
		Pipeline:        m.Pipeline,
	}
}

// Close beendet alle Runner
func (m *Models) Close() error {
	var errs []error
	for _, r := range m.runners {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Load laedt die Gewichte, startet die drei Runner und setzt die Startplatzierung
func (l *Loader) Load(ctx context.Context) (*Models, error) {
	start := time.Now()
	w, err := l.Download(ctx)
	if err != nil {
		return nil, err
	}

	configs := l.runnerConfigs(w)
	started := make([]*runner.Runner, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		g.Go(func() error {
			r, err := runner.Start(gctx, cfg)
			if err != nil {
				return fmt.Errorf("%s runner: %w", cfg.Name, err)
			}
			started[i] = r
			return nil
		})
	}

	m := &Models{runners: started}
	if err := g.Wait(); err != nil {
		m.Close()
		return nil, err
	}

	m.BEN2 = runner.BEN2{Runner: started[0]}
	m.Face = runner.Face{Runner: started[1]}
	m.Pipeline = runner.Pipeline{Runner: started[2]}
	m.BEN2Placement = runner.NewPlacement("ben2", started[0], l.opts.Device, l.opts.Offload)
	m.FacePlacement = runner.NewPlacement("face", started[1], l.opts.Device, l.opts.Offload)

	for _, p := range []*runner.Placement{m.BEN2Placement, m.FacePlacement} {
		if err := p.Init(ctx); err != nil {
			m.Close()
			return nil, err
		}
	}

	slog.Info("models loaded", "device", l.opts.Device, "offload", l.opts.Offload,
		"int8", l.opts.Int8, "turbo", l.opts.Turbo, "duration", time.Since(start))
	return m, nil
}

// runnerConfigs baut die Argumente der drei Runner (ben2, face, pipeline)
func (l *Loader) runnerConfigs(w *Weights) []runner.Config {
	pipelineArgs := []string{"pipeline", "--model", w.Flux, "--device", l.opts.Device}
	if l.opts.Turbo {
		pipelineArgs = append(pipelineArgs, "--turbo")
	}
	if l.opts.Int8 {
		pipelineArgs = append(pipelineArgs, "--int8")
	}
	if l.opts.Offload {
		pipelineArgs = append(pipelineArgs, "--offload")
	}

	return []runner.Config{
		{
			Name:        "ben2",
			URL:         l.opts.BEN2URL,
			Command:     l.opts.RunnerCommand,
			Args:        []string{"ben2", "--checkpoint", w.BEN2},
			LoadTimeout: l.opts.LoadTimeout,
		},
		{
			Name:    "face",
			URL:     l.opts.FaceURL,
			Command: l.opts.RunnerCommand,
			Args: []string{
				"face", "--det-model", FaceDetModel,
				"--face-size", strconv.Itoa(FaceSize), "--crop-ratio", "1,1",
			},
			LoadTimeout: l.opts.LoadTimeout,
		},
		{
			Name:        "pipeline",
			URL:         l.opts.PipelineURL,
			Command:     l.opts.RunnerCommand,
			Args:        pipelineArgs,
			LoadTimeout: l.opts.LoadTimeout,
		},
	}
}
