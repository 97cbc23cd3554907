package runner

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamo-go/dreamo/vision"
)

func startFake(t *testing.T, mux *http.ServeMux) *Runner {
	t.Helper()
	srv := fakeRunner(t, 0, mux)
	r, err := Start(t.Context(), Config{Name: "test", URL: srv.URL})
	require.NoError(t, err)
	return r
}

func TestBEN2RemoveBackground(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /remove_background", func(w http.ResponseWriter, r *http.Request) {
		var req ImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(BackgroundResponse{Image: append([]byte("fg:"), req.Image...)})
	})

	out, err := BEN2{startFake(t, mux)}.RemoveBackground(t.Context(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "fg:png", string(out))
}

func TestFaceAlignAndParse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /align", func(w http.ResponseWriter, r *http.Request) {
		var req ImageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if string(req.Image) == "leer" {
			json.NewEncoder(w).Encode(AlignResponse{Found: false})
			return
		}
		json.NewEncoder(w).Encode(AlignResponse{Found: true, Face: []byte("face")})
	})
	mux.HandleFunc("POST /parse", func(w http.ResponseWriter, r *http.Request) {
		var req ParseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, vision.DTypeF16, req.Input.DType)
		logits, _ := vision.EncodeTensor([]float32{0, 1, 1, 0}, []int{1, 2, 1, 2}, vision.DTypeF16)
		json.NewEncoder(w).Encode(ParseResponse{Logits: logits})
	})
	f := Face{startFake(t, mux)}

	face, found, err := f.AlignFace(t.Context(), []byte("foto"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "face", string(face))

	_, found, err = f.AlignFace(t.Context(), []byte("leer"))
	require.NoError(t, err)
	assert.False(t, found)

	input, _ := vision.EncodeTensor([]float32{0, 0, 0}, []int{1, 3, 1, 1}, vision.DTypeF16)
	logits, err := f.ParseFace(t.Context(), input)
	require.NoError(t, err)
	values, err := logits.Float32()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 1, 0}, values)
}

func TestPipelineGenerateStreams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /completion", func(w http.ResponseWriter, r *http.Request) {
		var req PipelineRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint64(11980469406460273604), req.Seed)
		assert.Len(t, req.RefConds, 1)

		w.Header().Set("Content-Type", "application/x-ndjson")
		for step := 1; step <= req.NumInferenceSteps; step++ {
			fmt.Fprintf(w, `{"step":%d,"total":%d}`+"\n", step, req.NumInferenceSteps)
		}
		fmt.Fprintln(w, "kein json")
		json.NewEncoder(w).Encode(pipelineChunk{Done: true, Image: []byte("bild")})
	})
	p := Pipeline{startFake(t, mux)}

	ref, _ := vision.EncodeTensor([]float32{1, 1, 1}, []int{1, 3, 1, 1}, vision.DTypeBF16)
	var steps []int
	img, err := p.Generate(t.Context(), PipelineRequest{
		Prompt:            "two dogs in the jungle",
		NumInferenceSteps: 3,
		Seed:              11980469406460273604,
		RefConds:          []RefCondition{{Image: ref, Task: "ip", Index: 1}},
	}, func(pr Progress) { steps = append(steps, pr.Step) })
	require.NoError(t, err)
	assert.Equal(t, "bild", string(img))
	assert.Equal(t, []int{1, 2, 3}, steps)
}

func TestPipelineGenerateErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /completion", func(w http.ResponseWriter, r *http.Request) {
		var req PipelineRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Prompt {
		case "fehler":
			fmt.Fprintln(w, `{"error":"nan in latents"}`)
		case "ohne bild":
			fmt.Fprintln(w, `{"done":true}`)
		case "abgebrochen":
			fmt.Fprintln(w, `{"step":1,"total":12}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "kaputt")
		}
	})
	p := Pipeline{startFake(t, mux)}

	_, err := p.Generate(t.Context(), PipelineRequest{Prompt: "fehler"}, nil)
	assert.ErrorContains(t, err, "nan in latents")

	_, err = p.Generate(t.Context(), PipelineRequest{Prompt: "ohne bild"}, nil)
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = p.Generate(t.Context(), PipelineRequest{Prompt: "abgebrochen"}, nil)
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = p.Generate(t.Context(), PipelineRequest{Prompt: "x"}, nil)
	var statusErr StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "kaputt", statusErr.Message)
}
