// Package api implementiert den Client fuer den dreamo Web-Server.
// Die Methoden von [Client] entsprechen den Routen unter /api.
// Die dreamo Kommandozeile benutzt dieses Paket fuer "dreamo generate".
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/version"
)

// Client kapselt den Zustand fuer Anfragen an einen dreamo Server.
// Neue Clients ueber [ClientFromEnvironment] oder [NewClient] erzeugen.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if err := json.Unmarshal(body, &apiError); err != nil {
		// Body als Nachricht, wenn er kein JSON ist
		apiError.ErrorMessage = string(body)
	}
	return apiError
}

// ClientFromEnvironment erstellt einen [Client] fuer DREAMO_HOST:
//
//	<scheme>://<host>:<port>
//
// Ohne Variable wird http://127.0.0.1:8080 benutzt.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func userAgent() string {
	return fmt.Sprintf("dreamo/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}

func (c *Client) do(ctx context.Context, method, path, contentType string, reqBody io.Reader, respData any) error {
	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent())

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, respData any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, respData)
}

// Heartbeat prueft ob der Server laeuft
func (c *Client) Heartbeat(ctx context.Context) error {
	var resp HealthResponse
	return c.get(ctx, "/api/health", &resp)
}

// Version gibt die Version des Servers zurueck
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.get(ctx, "/api/version", &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Examples gibt die Beispiel-Galerien des Servers zurueck
func (c *Client) Examples(ctx context.Context) (*Galleries, error) {
	var resp ExamplesResponse
	if err := c.get(ctx, "/api/examples", &resp); err != nil {
		return nil, err
	}
	return resp.Galleries, nil
}

// Generate sendet eine Generierung als Multipart-Formular
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var body bytes.Buffer
	contentType, err := req.encode(&body)
	if err != nil {
		return nil, err
	}

	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", contentType, &body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
