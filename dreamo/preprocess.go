// preprocess.go - Vorverarbeitung der Referenzbilder je Aufgabe
//
// id:    lange Kante <= 1024, Gesicht ausrichten (512x512), Nicht-Gesicht weiss
// ip:    Hintergrund entfernen, auf Weiss komponieren, Flaechen-Resize
// style: nur Flaechen-Resize
package dreamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreamo-go/dreamo/logutil"
	"github.com/dreamo-go/dreamo/vision"
)

// ErrNoFaceDetected wird fuer id-Referenzen ohne erkennbares Gesicht zurueckgegeben
var ErrNoFaceDetected = errors.New("kein gesicht im referenzbild gefunden")

// BackgroundRemover liefert den Vordergrund eines PNG mit Alpha-Kanal
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, png []byte) ([]byte, error)
}

// FaceProcessor erkennt, richtet aus und segmentiert Gesichter
type FaceProcessor interface {
	AlignFace(ctx context.Context, png []byte) (face []byte, found bool, err error)
	ParseFace(ctx context.Context, input *vision.Tensor) (*vision.Tensor, error)
}

// Scope reserviert ein Modell fuer die Dauer eines Schritts (siehe runner.Placement)
type Scope interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type noScope struct{}

func (noScope) Acquire(context.Context) (func(), error) { return func() {}, nil }

// Condition ist eine vorverarbeitete Referenz
type Condition struct {
	Task  Task
	Index int // 1-basiert, Slot-Position + 1
	Image *vision.ImageInput
}

// Tensor kodiert das Bild als [1, 3, H, W] im Bereich [-1, 1]
func (c *Condition) Tensor(dtype vision.DType) (*vision.Tensor, error) {
	return vision.EncodeTensor(vision.ToSignedTensor(c.Image), c.Image.BatchShape(), dtype)
}

// Preprocessor bereitet Referenzbilder fuer die Pipeline vor
type Preprocessor struct {
	background      BackgroundRemover
	backgroundScope Scope
	face            FaceProcessor
	faceScope       Scope
}

// NewPreprocessor erstellt einen Preprocessor; nil-Scopes bedeuten keine Platzierung
func NewPreprocessor(bg BackgroundRemover, bgScope Scope, face FaceProcessor, faceScope Scope) *Preprocessor {
	if bgScope == nil {
		bgScope = noScope{}
	}
	if faceScope == nil {
		faceScope = noScope{}
	}
	return &Preprocessor{background: bg, backgroundScope: bgScope, face: face, faceScope: faceScope}
}

// Preprocess wendet die Aufgaben-Vorverarbeitung auf ein Referenzbild an.
// slot ist die 0-basierte Position im Formular.
func (p *Preprocessor) Preprocess(ctx context.Context, img *vision.ImageInput, task Task, refRes, slot int) (*Condition, error) {
	start := time.Now()

	// Transparenz wird fuer alle Aufgaben weiss gefuellt
	img = vision.Composite(img)

	var (
		out *vision.ImageInput
		err error
	)
	switch task {
	case TaskID:
		out, err = p.prepareFace(ctx, img)
	case TaskIP:
		out, err = p.prepareSubject(ctx, img, refRes)
	case TaskStyle:
		out, err = vision.ResizeToArea(img, refRes*refRes)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTask, task)
	}
	if err != nil {
		return nil, err
	}

	logutil.TraceContext(ctx, "reference preprocessed", "slot", slot, "task", task,
		"in", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"out", fmt.Sprintf("%dx%d", out.Width, out.Height),
		"duration", time.Since(start))

	return &Condition{Task: task, Index: slot + 1, Image: out}, nil
}

func (p *Preprocessor) prepareSubject(ctx context.Context, img *vision.ImageInput, refRes int) (*vision.ImageInput, error) {
	if p.background == nil {
		return nil, errors.New("hintergrund-entfernung nicht geladen")
	}

	release, err := p.backgroundScope.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := vision.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	fg, err := p.background.RemoveBackground(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("hintergrund entfernen: %w", err)
	}
	subject, err := vision.LoadImageFromBytes(fg)
	if err != nil {
		return nil, fmt.Errorf("vordergrund dekodieren: %w", err)
	}

	return vision.ResizeToArea(vision.Composite(subject), refRes*refRes)
}

func (p *Preprocessor) prepareFace(ctx context.Context, img *vision.ImageInput) (*vision.ImageInput, error) {
	if p.face == nil {
		return nil, errors.New("gesichts-helfer nicht geladen")
	}

	release, err := p.faceScope.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	img, err = vision.ResizeLongSide(img, FaceLongEdge)
	if err != nil {
		return nil, err
	}
	data, err := vision.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	aligned, found, err := p.face.AlignFace(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("gesicht ausrichten: %w", err)
	}
	if !found {
		slog.Warn("no face detected in id reference", "width", img.Width, "height", img.Height)
		return nil, ErrNoFaceDetected
	}
	face, err := vision.LoadImageFromBytes(aligned)
	if err != nil {
		return nil, fmt.Errorf("gesicht dekodieren: %w", err)
	}

	input, err := vision.EncodeTensor(vision.NormalizeRGB(face, vision.ImageNetMean, vision.ImageNetStd), face.BatchShape(), vision.DTypeF16)
	if err != nil {
		return nil, err
	}
	out, err := p.face.ParseFace(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("gesicht segmentieren: %w", err)
	}
	if len(out.Shape) != 4 || out.Shape[2] != face.Height || out.Shape[3] != face.Width {
		return nil, fmt.Errorf("%w: parser-form %v fuer gesicht %dx%d", vision.ErrTensorSize, out.Shape, face.Width, face.Height)
	}

	logits, err := out.Float32()
	if err != nil {
		return nil, err
	}
	labels, err := vision.ArgmaxLabels(logits, out.Shape[1], face.Height, face.Width)
	if err != nil {
		return nil, err
	}
	return vision.MaskFace(face, labels, vision.FaceBackgroundLabels)
}
