// hub.go - Client fuer den Hugging Face Hub
// Metadaten ueber /api/models/<repo>, Dateien ueber /<repo>/resolve/<rev>/<datei>.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/version"
)

// DefaultRevision ist der Branch, der ohne Angabe geladen wird
const DefaultRevision = "main"

// Grosse Gewichte brauchen lange, der Timeout gilt pro Request
const defaultTimeout = 30 * time.Minute

var (
	ErrModelNotFound  = errors.New("modell nicht gefunden")
	ErrFileNotFound   = errors.New("datei nicht gefunden")
	ErrUnauthorized   = errors.New("authentifizierung fehlgeschlagen (HF_TOKEN gesetzt und Lizenz akzeptiert?)")
	ErrRateLimited    = errors.New("rate limit ueberschritten")
	ErrInvalidModelID = errors.New("ungueltige modell-id")
	ErrDownloadFailed = errors.New("download fehlgeschlagen")
	ErrChecksum       = errors.New("sha256 stimmt nicht")
)

// Client spricht mit dem Hub oder einem Mirror (HF_ENDPOINT)
type Client struct {
	http     *http.Client
	endpoint string
	token    string
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithBaseURL ersetzt HF_ENDPOINT
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(url, "/") }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.http = client }
}

func WithClientTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = timeout }
}

// NewClient uebernimmt HF_TOKEN und HF_ENDPOINT aus der Umgebung
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		endpoint: strings.TrimSuffix(envconfig.HFEndpoint(), "/"),
		token:    envconfig.HFToken(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.endpoint }

// get fuehrt einen GET aus; bei Fehlerstatus ist der Body bereits geschlossen
func (c *Client) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", "dreamo/"+version.Version)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code < http.StatusBadRequest:
		return nil
	case code == http.StatusNotFound:
		return ErrFileNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDownloadFailed, code, strings.TrimSpace(string(body)))
	}
}

// GetModelInfoWithContext liefert die Dateiliste einer Revision. Groessen und
// LFS-Hashes meldet der Hub nur mit blobs=true.
func (c *Client) GetModelInfoWithContext(ctx context.Context, modelID, revision string) (*APIModelInfo, error) {
	if err := validateModelID(modelID); err != nil {
		return nil, &HuggingFaceError{Op: "info", ModelID: modelID, Err: err}
	}
	if revision == "" {
		revision = DefaultRevision
	}

	url := c.endpoint + "/api/models/" + modelID + "/revision/" + neturl.PathEscape(revision) + "?blobs=true"

	resp, err := c.get(ctx, url, http.Header{"Accept": {"application/json"}})
	if errors.Is(err, ErrFileNotFound) {
		err = ErrModelNotFound
	}
	if err != nil {
		return nil, &HuggingFaceError{Op: "info", ModelID: modelID, Err: err}
	}
	defer resp.Body.Close()

	var info APIModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &HuggingFaceError{Op: "info", ModelID: modelID, Err: fmt.Errorf("antwort dekodieren: %w", err)}
	}
	return &info, nil
}

// DownloadFileWithContext laedt eine Datei (hf_hub_download). Mit localDir landet
// sie dort, sonst im Cache; eine vorhandene Datei wird nicht erneut geladen.
func (c *Client) DownloadFileWithContext(ctx context.Context, modelID, filename, revision, localDir string) (string, error) {
	if err := validateModelID(modelID); err != nil {
		return "", &HuggingFaceError{Op: "download", ModelID: modelID, Err: err}
	}
	if filename == "" || !filepath.IsLocal(filename) {
		return "", &HuggingFaceError{Op: "download", ModelID: modelID, Err: fmt.Errorf("%w: ungueltiger dateiname %q", ErrFileNotFound, filename)}
	}
	if revision == "" {
		revision = DefaultRevision
	}

	target := filepath.Join(resolveDir(localDir, modelID, revision), filename)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	job := fetchJob{url: c.resolveURL(modelID, revision, filename), target: target}
	if err := c.fetch(ctx, job, true, nil); err != nil {
		return "", &HuggingFaceError{Op: "download", ModelID: modelID, Err: err}
	}
	return target, nil
}

func (c *Client) resolveURL(modelID, revision, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.endpoint, modelID, revision, filepath.ToSlash(filename))
}

func validateModelID(modelID string) error {
	owner, name, ok := strings.Cut(modelID, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q, erwartet 'owner/model'", ErrInvalidModelID, modelID)
	}
	return nil
}
