package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewClient(base, srv.Client())
}

func TestClientGenerate(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "two dogs in the jungle", r.FormValue(FieldPrompt))
		assert.Equal(t, "6187006025405083344", r.FormValue(FieldSeed))
		assert.Equal(t, "3.5", r.FormValue(FieldGuidance))
		assert.Equal(t, "768", r.FormValue(FieldWidth))
		assert.Empty(t, r.FormValue(FieldHeight), "nullwerte werden nicht gesendet")

		// Slot 1 leer, Slot 2 belegt
		_, ok := r.MultipartForm.File[RefImageField(0)]
		assert.False(t, ok)
		files := r.MultipartForm.File[RefImageField(1)]
		require.Len(t, files, 1)
		assert.Equal(t, "dog2.png", files[0].Filename)
		f, err := files[0].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, png, data)
		assert.Equal(t, "ip", r.FormValue(RefTaskField(1)))

		json.NewEncoder(w).Encode(GenerateResponse{
			Image:       base64.StdEncoding.EncodeToString(png),
			DebugImages: []string{base64.StdEncoding.EncodeToString([]byte("vorschau"))},
			Seed:        "6187006025405083344",
		})
	})

	resp, err := c.Generate(t.Context(), &GenerateRequest{
		References: []ReferenceImage{{}, {Name: "dog2.png", Data: png, Task: "ip"}},
		Prompt:     "two dogs in the jungle",
		Width:      768,
		Guidance:   3.5,
		Seed:       "6187006025405083344",
	})
	require.NoError(t, err)
	assert.Equal(t, "6187006025405083344", resp.Seed)

	img, err := resp.ImageBytes()
	require.NoError(t, err)
	assert.Equal(t, png, img)

	preview, err := resp.DebugImageBytes(0)
	require.NoError(t, err)
	assert.Equal(t, "vorschau", string(preview))
	_, err = resp.DebugImageBytes(1)
	assert.Error(t, err)
}

func TestClientGenerateTooManyReferences(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("kein request erwartet")
	})
	ref := ReferenceImage{Data: []byte("x"), Task: "ip"}
	_, err := c.Generate(t.Context(), &GenerateRequest{References: []ReferenceImage{ref, ref, ref}})
	assert.ErrorIs(t, err, ErrTooManyReferences)
}

func TestClientStatusError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"kein gesicht im referenzbild gefunden"}`))
	})

	_, err := c.Generate(t.Context(), &GenerateRequest{Prompt: "portrait"})
	var se StatusError
	require.True(t, errors.As(err, &se), "erwartet StatusError, bekommen %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "kein gesicht im referenzbild gefunden", se.ErrorMessage)

	c = testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream kaputt"))
	})
	err = c.Heartbeat(t.Context())
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upstream kaputt", se.ErrorMessage)
}

func TestClientExamplesKeepOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/examples", r.URL.Path)
		w.Write([]byte(`{"galleries":{"Style task":[{"images":["mickey.png"],"tasks":["style"],"prompt":"p","seed":"1"}],"IP task":[]}}`))
	})

	galleries, err := c.Examples(t.Context())
	require.NoError(t, err)
	require.NotNil(t, galleries)

	var labels []string
	for pair := galleries.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}
	assert.Equal(t, []string{"Style task", "IP task"}, labels)

	style, ok := galleries.Get("Style task")
	require.True(t, ok)
	assert.Equal(t, []string{"mickey.png"}, style[0].Images)
}

func TestClientVersion(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "dreamo/")
		w.Write([]byte(`{"version":"1.2.3"}`))
	})
	v, err := c.Version(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
}

func TestStatusErrorMessage(t *testing.T) {
	tests := []struct {
		err  StatusError
		want string
	}{
		{StatusError{Status: "503 Service Unavailable", ErrorMessage: "ausgelastet"}, "503 Service Unavailable: ausgelastet"},
		{StatusError{Status: "500 Internal Server Error"}, "500 Internal Server Error"},
		{StatusError{ErrorMessage: "kaputt"}, "kaputt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}
