package dreamo

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/dreamo-go/dreamo/runner"
	"github.com/dreamo-go/dreamo/vision"
)

func solidImage(w, h int, c color.RGBA) *vision.ImageInput {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			rgba.SetRGBA(x, y, c)
		}
	}
	return vision.FromImage(rgba)
}

func mustPNG(t *testing.T, img *vision.ImageInput) []byte {
	t.Helper()
	data, err := vision.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decodePNG(t *testing.T, data []byte) *vision.ImageInput {
	t.Helper()
	img, err := vision.LoadImageFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

// fakeBackground macht die linke Bildhaelfte transparent
type fakeBackground struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeBackground) RemoveBackground(_ context.Context, data []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	img, err := vision.LoadImageFromBytes(data)
	if err != nil {
		return nil, err
	}
	for y := range img.Height {
		for x := range img.Width / 2 {
			img.Image.SetRGBA(x, y, color.RGBA{})
		}
	}
	return vision.EncodePNG(img)
}

// fakeFace liefert ein graues Gesicht, dessen linke Haelfte als Hintergrund klassifiziert wird
type fakeFace struct {
	size      int
	noFace    bool
	alignSize image.Point
	input     *vision.Tensor
}

func (f *fakeFace) AlignFace(_ context.Context, data []byte) ([]byte, bool, error) {
	img, err := vision.LoadImageFromBytes(data)
	if err != nil {
		return nil, false, err
	}
	f.alignSize = image.Pt(img.Width, img.Height)
	if f.noFace {
		return nil, false, nil
	}
	face, err := vision.EncodePNG(solidImage(f.size, f.size, color.RGBA{128, 128, 128, 255}))
	return face, true, err
}

func (f *fakeFace) ParseFace(_ context.Context, input *vision.Tensor) (*vision.Tensor, error) {
	f.input = input
	n := f.size
	logits := make([]float32, vision.ParserClasses*n*n)
	for y := range n {
		for x := range n {
			class := 1 // Haut
			if x < n/2 {
				class = 0 // Hintergrund
			}
			logits[class*n*n+y*n+x] = 10
		}
	}
	return vision.EncodeTensor(logits, []int{1, vision.ParserClasses, n, n}, vision.DTypeF16)
}

// fakePipeline zeichnet die Anfrage auf und liefert ein kleines PNG
type fakePipeline struct {
	mu      sync.Mutex
	reqs    []runner.PipelineRequest
	out     []byte
	err     error
	entered chan struct{}
	block   chan struct{}
}

func (f *fakePipeline) Generate(ctx context.Context, req runner.PipelineRequest, fn func(runner.Progress)) ([]byte, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if fn != nil {
		for i := 1; i <= req.NumInferenceSteps; i++ {
			fn(runner.Progress{Step: i, Total: req.NumInferenceSteps})
		}
	}
	if f.out != nil {
		return f.out, nil
	}
	return vision.EncodePNG(solidImage(req.Width/64, req.Height/64, color.RGBA{10, 20, 30, 255}))
}

func (f *fakePipeline) requests() []runner.PipelineRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.PipelineRequest(nil), f.reqs...)
}

// countingScope zaehlt Acquire und Release
type countingScope struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (s *countingScope) Acquire(context.Context) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released++
	}, nil
}

func (s *countingScope) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}
