// runner.go - Lebenszyklus eines Inferenz-Runners (Subprozess oder entfernter Dienst)
// Ein Runner kapselt genau ein vortrainiertes Netz hinter HTTP: /health, /device und
// die modellspezifischen Endpunkte in ben2.go, face.go und pipeline.go.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dreamo-go/dreamo/logutil"
)

var (
	ErrRunnerExited = errors.New("runner unerwartet beendet")
	ErrLoadTimeout  = errors.New("timeout beim warten auf runner")
)

// StatusError ist eine Fehlerantwort eines Runners
type StatusError struct {
	StatusCode int
	Message    string
}

func (e StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("runner: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("runner: status %d", e.StatusCode)
}

// Config beschreibt, wie ein Runner gestartet oder erreicht wird
type Config struct {
	// Name erscheint in Logs (ben2, face, pipeline)
	Name string
	// URL eines bereits laufenden Runners; wenn gesetzt wird nichts gestartet
	URL string
	// Command wird per strings.Fields zerlegt, z.B. "python -m dreamo_runner"
	Command string
	Args    []string
	// LoadTimeout begrenzt das Warten auf /health
	LoadTimeout time.Duration
	// HTTPClient fuer Tests; Default ohne Timeout (Generierung dauert lange)
	HTTPClient *http.Client
}

// Runner ist ein gestarteter oder verbundener Inferenz-Dienst
type Runner struct {
	mu          sync.Mutex
	name        string
	cmd         *exec.Cmd
	baseURL     string
	done        chan error
	client      *http.Client
	lastErr     string // Letzte stderr-Zeile fuer Fehlermeldungen
	lastErrLock sync.Mutex
}

// Start startet den Runner-Subprozess (oder verbindet sich mit cfg.URL)
// und wartet bis /health antwortet.
func Start(ctx context.Context, cfg Config) (*Runner, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r := &Runner{name: cfg.Name, client: client}
	if cfg.URL != "" {
		r.baseURL = strings.TrimSuffix(cfg.URL, "/")
		slog.Info("connecting to runner", "runner", r.name, "url", r.baseURL)
	} else if err := r.spawn(cfg); err != nil {
		return nil, err
	}

	if err := r.waitUntilRunning(ctx, timeout); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) spawn(cfg Config) error {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return fmt.Errorf("%s: kein runner-kommando konfiguriert", cfg.Name)
	}

	// Freien Port finden
	port := 0
	if a, err := net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		if l, err := net.ListenTCP("tcp", a); err == nil {
			port = l.Addr().(*net.TCPAddr).Port
			l.Close()
		}
	}
	if port == 0 {
		port = rand.IntN(65535-49152) + 49152
	}

	args := append(fields[1:], cfg.Args...)
	args = append(args, "--port", strconv.Itoa(port))
	cmd := exec.Command(fields[0], args...)
	cmd.Env = os.Environ()

	r.cmd = cmd
	r.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	r.done = make(chan error, 1)

	// stdout/stderr des Subprozesses ins Server-Log
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			slog.Info(r.name+"-runner", "msg", scanner.Text())
		}
	}()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			slog.Warn(r.name+"-runner", "msg", line)
			r.lastErrLock.Lock()
			r.lastErr = line
			r.lastErrLock.Unlock()
		}
	}()

	slog.Info("starting runner subprocess", "runner", r.name, "cmd", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s runner starten fehlgeschlagen: %w", r.name, err)
	}

	// Subprozess einsammeln, wenn er endet
	go func() {
		r.done <- cmd.Wait()
	}()
	return nil
}

// Name gibt den Log-Namen des Runners zurueck
func (r *Runner) Name() string { return r.name }

// URL gibt die Basis-URL des Runners zurueck
func (r *Runner) URL() string { return r.baseURL }

// Ping prueft ob der Runner gesund ist
func (r *Runner) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatusError{StatusCode: resp.StatusCode, Message: "health check fehlgeschlagen"}
	}
	return nil
}

// waitUntilRunning pollt /health bis der Runner bereit ist
func (r *Runner) waitUntilRunning(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-r.done:
			// done wird von Close erneut gelesen
			r.done <- err
			if msg := r.getLastErr(); msg != "" {
				return fmt.Errorf("%w: %s: %s (exit: %v)", ErrRunnerExited, r.name, msg, err)
			}
			return fmt.Errorf("%w: %s: %v", ErrRunnerExited, r.name, err)
		case <-deadline.C:
			if msg := r.getLastErr(); msg != "" {
				return fmt.Errorf("%w: %s: %s", ErrLoadTimeout, r.name, msg)
			}
			return fmt.Errorf("%w: %s", ErrLoadTimeout, r.name)
		case <-ticker.C:
			if err := r.Ping(ctx); err == nil {
				slog.Info("runner is ready", "runner", r.name, "url", r.baseURL)
				return nil
			}
		}
	}
}

// getLastErr gibt die letzte stderr-Zeile zurueck
func (r *Runner) getLastErr() string {
	r.lastErrLock.Lock()
	defer r.lastErrLock.Unlock()
	return r.lastErr
}

// Close beendet den Subprozess; verbundene Runner bleiben unberuehrt
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil && r.cmd.Process != nil {
		slog.Info("stopping runner subprocess", "runner", r.name, "pid", r.cmd.Process.Pid)
		r.cmd.Process.Signal(os.Interrupt)

		// Kurz auf sauberes Beenden warten
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			r.cmd.Process.Kill()
		}
		r.cmd = nil
	}
	return nil
}

// Pid gibt die Prozess-ID zurueck (-1 wenn kein Subprozess)
func (r *Runner) Pid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Pid
	}
	return -1
}

// HasExited meldet ob der Subprozess beendet ist
func (r *Runner) HasExited() bool {
	if r.done == nil {
		return false
	}
	select {
	case err := <-r.done:
		r.done <- err
		return true
	default:
		return false
	}
}

// postJSON sendet req als JSON und dekodiert die Antwort nach resp
func (r *Runner) postJSON(ctx context.Context, path string, req, resp any) error {
	httpResp, err := r.post(ctx, path, req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("%s: antwort dekodieren fehlgeschlagen: %w", r.name, err)
	}
	return nil
}

// post sendet einen JSON-Request und prueft den Status; der Aufrufer schliesst den Body
func (r *Runner) post(ctx context.Context, path string, req any) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := logutil.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(msg, &e) == nil && e.Error != "" {
			return nil, StatusError{StatusCode: resp.StatusCode, Message: e.Error}
		}
		return nil, StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
