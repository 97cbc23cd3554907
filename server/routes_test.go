package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/logutil"
)

// fakeGenerator zeichnet die letzte Anfrage auf
type fakeGenerator struct {
	mu        sync.Mutex
	req       dreamo.Request
	requestID string
	result    *dreamo.Result
	err       error
}

func (f *fakeGenerator) Generate(ctx context.Context, req dreamo.Request) (*dreamo.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req = req
	f.requestID = logutil.RequestID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &dreamo.Result{Image: []byte("png"), DebugImages: [][]byte{[]byte("dbg")}, Seed: req.Config.Seed.Resolve(func() uint64 { return 99 })}, nil
}

func testHandler(t *testing.T, gen Generator, examplesDir string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if examplesDir == "" {
		examplesDir = t.TempDir()
	}
	h, err := New(gen, examplesDir).GenerateRoutes()
	require.NoError(t, err)
	return h
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// hugePNG deklariert 100000x100000 Pixel im IHDR-Chunk, enthaelt aber nur 4x4
func hugePNG(t *testing.T) []byte {
	data := bytes.Clone(pngBytes(t, 4, 4))
	binary.BigEndian.PutUint32(data[16:20], 100000)
	binary.BigEndian.PutUint32(data[20:24], 100000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// multipartRequest baut ein Formular; files bildet Feldnamen auf Dateiinhalt ab
func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		fw.Write(data)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGenerateHandler(t *testing.T) {
	gen := &fakeGenerator{}
	h := testHandler(t, gen, "")

	req := multipartRequest(t, map[string]string{
		"ref_task1":           "id",
		"prompt":              "portrait, Chibi",
		"width":               "768",
		"height":              "1024.0",
		"num_steps":           "20",
		"guidance":            "3",
		"seed":                "5443415087540486371",
		"ref_res":             "768",
		"neg_prompt":          "blurry",
		"neg_guidance":        "4",
		"true_cfg":            "1.5",
		"cfg_start_step":      "2",
		"cfg_end_step":        "10",
		"first_step_guidance": "2.5",
	}, map[string][]byte{"ref_image1": pngBytes(t, 40, 30)})
	req.Header.Set(requestIDHeader, "req-123")

	w := serve(h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	var resp api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "5443415087540486371", resp.Seed)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), resp.Image)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("dbg"))}, resp.DebugImages)

	got := gen.req
	assert.Equal(t, "req-123", gen.requestID)
	assert.Equal(t, "portrait, Chibi", got.Prompt)
	require.Len(t, got.References, 2)
	require.NotNil(t, got.References[0].Image)
	assert.Equal(t, 40, got.References[0].Image.Width)
	assert.Equal(t, dreamo.TaskID, got.References[0].Task)
	assert.Nil(t, got.References[1].Image)

	want := dreamo.SamplingConfig{
		Width: 768, Height: 1024, RefRes: 768, Steps: 20, Guidance: 3,
		Seed: dreamo.FixedSeed(5443415087540486371), TrueCFG: 1.5, CFGStartStep: 2, CFGEndStep: 10,
		NegPrompt: "blurry", NegGuidance: 4, FirstStepGuidance: 2.5,
	}
	assert.Equal(t, want, got.Config)
}

func TestGenerateHandlerDefaults(t *testing.T) {
	gen := &fakeGenerator{}
	h := testHandler(t, gen, "")

	w := serve(h, multipartRequest(t, nil, map[string][]byte{"ref_image2": pngBytes(t, 8, 8)}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "99", resp.Seed)

	got := gen.req
	assert.Equal(t, dreamo.DefaultPrompt, got.Prompt)
	assert.Equal(t, dreamo.DefaultSamplingConfig(), got.Config)
	assert.Nil(t, got.References[0].Image)
	assert.Equal(t, dreamo.TaskIP, got.References[1].Task)
	assert.NotEmpty(t, gen.requestID, "request-id wird vergeben")
}

func TestGenerateHandlerBadRequests(t *testing.T) {
	img := pngBytes(t, 8, 8)
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
	}{
		{"unbekannte aufgabe", map[string]string{"ref_task1": "face"}, map[string][]byte{"ref_image1": img}},
		{"kein bild", nil, map[string][]byte{"ref_image1": []byte("kein bild")}},
		{"bild zu gross", nil, map[string][]byte{"ref_image1": hugePNG(t)}},
		{"dritte referenz", nil, map[string][]byte{"ref_image1": img, "ref_image3": img}},
		{"width keine zahl", map[string]string{"width": "breit"}, nil},
		{"steps nicht ganzzahlig", map[string]string{"num_steps": "12.5"}, nil},
		{"seed ungueltig", map[string]string{"seed": "abc"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			w := serve(testHandler(t, gen, ""), multipartRequest(t, tt.fields, tt.files))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.Empty(t, gen.req.Prompt, "generator darf nicht aufgerufen werden")
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(testHandler(t, &fakeGenerator{}, ""), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateHandlerErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dreamo.ErrNoFaceDetected, http.StatusUnprocessableEntity},
		{fmt.Errorf("referenz 1: %w", dreamo.ErrNoFaceDetected), http.StatusUnprocessableEntity},
		{dreamo.ErrServerBusy, http.StatusServiceUnavailable},
		{dreamo.ErrGeneratorClosed, http.StatusServiceUnavailable},
		{dreamo.ErrTooManyReferences, http.StatusBadRequest},
		{fmt.Errorf("%w: width", dreamo.ErrInvalidConfig), http.StatusBadRequest},
		{errors.New("pipeline: cuda out of memory"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := serve(testHandler(t, &fakeGenerator{err: tt.err}, ""), multipartRequest(t, nil, nil))
			assert.Equal(t, tt.want, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestIndexHandler(t *testing.T) {
	w := serve(testHandler(t, &fakeGenerator{}, ""), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, want := range []string{
		"<title>DreamO</title>",
		`name="ref_task1"`,
		`name="ref_task2"`,
		`<option value="style">style</option>`,
		dreamo.DefaultPrompt,
		`name="width" min="768" max="1024" step="16" value="1024"`,
		`name="guidance" min="1" max="10" step="0.1" value="3.5"`,
		`name="seed" value="-1"`,
		"reduces the sampling steps from 25 to 12",
	} {
		assert.Contains(t, body, want)
	}
}

func TestExamplesHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), pngBytes(t, 4, 4), 0o644))
	h := testHandler(t, &fakeGenerator{}, dir)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/examples", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Reihenfolge der Galerien bleibt im JSON erhalten
	body := w.Body.String()
	order := []string{"IP task", "ID task", "Style task", "Try-On task", "Multi IP"}
	last := -1
	for _, label := range order {
		i := strings.Index(body, `"`+label)
		require.Greater(t, i, last, "galerie %q ausser reihenfolge", label)
		last = i
	}

	var resp api.ExamplesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	multi, ok := resp.Galleries.Get("Multi IP")
	require.True(t, ok)
	require.Len(t, multi, 3)
	assert.Equal(t, []string{"woman3.png", "cat.png"}, multi[1].Images)
	assert.Equal(t, "11980469406460273604", multi[1].Seed)

	w = serve(h, httptest.NewRequest(http.MethodGet, "/examples/cat.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(h, httptest.NewRequest(http.MethodGet, "/examples/fehlt.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndVersion(t *testing.T) {
	h := testHandler(t, &fakeGenerator{}, "")

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(h, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestAllowedHostsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(&fakeGenerator{}, t.TempDir())
	s.addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
	h, err := s.GenerateRoutes()
	require.NoError(t, err)

	for host, want := range map[string]int{
		"localhost:8080":   http.StatusOK,
		"127.0.0.1:8080":   http.StatusOK,
		"192.168.1.5:8080": http.StatusOK,
		"dreamo.local":     http.StatusOK,
		"evil.example.com": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Host = host
		assert.Equal(t, want, serve(h, req).Code, host)
	}

	// 0.0.0.0 (Share-Link) erlaubt jeden Host
	s.addr = &net.TCPAddr{IP: net.IPv4zero, Port: 8080}
	h, err = s.GenerateRoutes()
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Host = "evil.example.com"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestWriteShareURL(t *testing.T) {
	dir := t.TempDir()
	path, err := writeShareURL(dir, "http://gpu-box:8080")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ShareFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:8080\n", string(data))

	port, ok := listenPort(&net.TCPAddr{IP: net.IPv4zero, Port: 7860})
	assert.True(t, ok)
	assert.Equal(t, 7860, port)
}

// shutdownOrder zeichnet die Reihenfolge der Close-Aufrufe auf
type shutdownOrder struct {
	mu    sync.Mutex
	calls []string
}

func (o *shutdownOrder) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
}

type genCloser struct{ order *shutdownOrder }

func (g genCloser) Close(context.Context) error { g.order.add("generator"); return nil }

type modelsCloser struct{ order *shutdownOrder }

func (m modelsCloser) Close() error { m.order.add("runner"); return nil }

func TestShutdownWaitsForActiveRequest(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srvr := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Write([]byte("fertig"))
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srvr.Serve(ln)

	type result struct {
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/generate")
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		got <- result{body: buf.String()}
	}()
	<-entered

	order := &shutdownOrder{}
	finished := make(chan struct{})
	go func() {
		shutdown(t.Context(), srvr, genCloser{order}, modelsCloser{order})
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("shutdown darf nicht vor der laufenden anfrage fertig sein")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	res := <-got
	require.NoError(t, res.err)
	assert.Equal(t, "fertig", res.body)

	<-finished
	assert.Equal(t, []string{"generator", "runner"}, order.calls)
}
