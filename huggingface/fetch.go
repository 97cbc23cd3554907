// fetch.go - Dateitransfer mit Resume, Wiederholung und sha256-Pruefung
// sowie Snapshot-Downloads (snapshot_download) ueber mehrere Dateien parallel.
package huggingface

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	MaxDownloadRetries     = 3
	DefaultParallelism     = 4
	ProgressUpdateInterval = 100 * time.Millisecond
)

// DownloadRetryDelay ist die Pause zwischen zwei Versuchen
var DownloadRetryDelay = 2 * time.Second

// partialSuffix markiert unvollstaendige Dateien, die fortgesetzt werden koennen
const partialSuffix = ".download"

// ProgressCallback meldet geladene Bytes ueber alle Dateien eines Snapshots
type ProgressCallback func(downloaded, total int64)

type fetchJob struct {
	url    string
	target string
	sha256 string // leer: keine Pruefung
}

// fetch wiederholt voruebergehende Fehler; 401/404 sind endgueltig
func (c *Client) fetch(ctx context.Context, job fetchJob, resume bool, progress func(int64)) error {
	if err := os.MkdirAll(filepath.Dir(job.target), 0o755); err != nil {
		return fmt.Errorf("verzeichnis erstellen: %w", err)
	}

	counter := &jobProgress{fn: progress}
	var err error
	for attempt := range MaxDownloadRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(DownloadRetryDelay):
			}
		}

		err = c.fetchOnce(ctx, job, resume, counter)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrFileNotFound):
			return err
		}
	}
	return fmt.Errorf("%w nach %d versuchen: %w", ErrDownloadFailed, MaxDownloadRetries, err)
}

func (c *Client) fetchOnce(ctx context.Context, job fetchJob, resume bool, progress *jobProgress) error {
	partial := job.target + partialSuffix

	var offset int64
	header := http.Header{}
	if st, err := os.Stat(partial); err == nil && resume && st.Size() > 0 {
		offset = st.Size()
		header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := c.get(ctx, job.url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Range ignoriert: von vorne
	if resp.StatusCode != http.StatusPartialContent {
		offset = 0
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if offset > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	progress.seek(offset)
	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, io.TeeReader(resp.Body, progress)); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if job.sha256 != "" {
		if err := verifySHA256(partial, job.sha256); err != nil {
			os.Remove(partial)
			return err
		}
	}
	return os.Rename(partial, job.target)
}

// jobProgress meldet nur Bytes jenseits der hoechsten bereits gemeldeten
// Position, Wiederholungen zaehlen nicht doppelt
type jobProgress struct {
	fn       func(int64)
	pos      int64
	reported int64
}

func (p *jobProgress) seek(offset int64) {
	p.pos = offset
	p.report()
}

func (p *jobProgress) Write(b []byte) (int, error) {
	p.pos += int64(len(b))
	p.report()
	return len(b), nil
}

func (p *jobProgress) report() {
	if p.pos <= p.reported {
		return
	}
	if p.fn != nil {
		p.fn(p.pos - p.reported)
	}
	p.reported = p.pos
}

func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return fmt.Errorf("%w: %s hat %s, erwartet %s", ErrChecksum, filepath.Base(path), got, want)
	}
	return nil
}

// progressTracker summiert die Bytes paralleler Transfers und drosselt die Meldungen
type progressTracker struct {
	mu    sync.Mutex
	fn    ProgressCallback
	done  int64
	total int64
	last  time.Time
}

func (p *progressTracker) add(n int64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	if now := time.Now(); now.Sub(p.last) >= ProgressUpdateInterval {
		p.fn(p.done, p.total)
		p.last = now
	}
}

func (p *progressTracker) finish() {
	if p.fn != nil {
		p.fn(p.total, p.total)
	}
}

// DownloadOption konfiguriert SnapshotDownloadWithContext
type DownloadOption func(*downloadConfig)

type downloadConfig struct {
	revision    string
	files       []string
	include     []string
	exclude     []string
	parallelism int
	resume      bool
	progress    ProgressCallback
}

func WithDownloadRevision(revision string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.revision = revision }
}

// WithDownloadFiles laedt nur die genannten Dateien
func WithDownloadFiles(files ...string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.files = files }
}

func WithIncludePatterns(patterns ...string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.include = patterns }
}

func WithExcludePatterns(patterns ...string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.exclude = patterns }
}

func WithDownloadParallelism(n int) DownloadOption {
	return func(cfg *downloadConfig) {
		if n > 0 {
			cfg.parallelism = n
		}
	}
}

// WithResume setzt abgebrochene Dateien per Range-Request fort (Default an)
func WithResume(resume bool) DownloadOption {
	return func(cfg *downloadConfig) { cfg.resume = resume }
}

func WithDownloadProgress(fn ProgressCallback) DownloadOption {
	return func(cfg *downloadConfig) { cfg.progress = fn }
}

// selected wendet Dateiliste bzw. Glob-Filter an; Pfade ausserhalb des Repos fallen weg
func (cfg *downloadConfig) selected(siblings []APISibling) []APISibling {
	var out []APISibling
	for _, s := range siblings {
		if !filepath.IsLocal(s.Filename) {
			continue
		}
		if len(cfg.files) > 0 {
			if slices.Contains(cfg.files, s.Filename) {
				out = append(out, s)
			}
			continue
		}
		if len(cfg.include) > 0 && !matchAny(cfg.include, s.Filename) {
			continue
		}
		if matchAny(cfg.exclude, s.Filename) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// SnapshotDownloadWithContext laedt alle ausgewaehlten Dateien einer Revision nach
// localDir (oder in den Cache). Dateien mit passender Groesse werden uebersprungen.
func (c *Client) SnapshotDownloadWithContext(ctx context.Context, modelID, localDir string, opts ...DownloadOption) (*ModelDownloadResult, error) {
	start := time.Now()
	cfg := &downloadConfig{revision: DefaultRevision, parallelism: DefaultParallelism, resume: true}
	for _, opt := range opts {
		opt(cfg)
	}

	info, err := c.GetModelInfoWithContext(ctx, modelID, cfg.revision)
	if err != nil {
		return nil, err
	}
	files := cfg.selected(info.Siblings)
	if len(files) == 0 {
		return nil, &HuggingFaceError{Op: "snapshot", ModelID: modelID, Err: fmt.Errorf("%w: keine passenden dateien", ErrFileNotFound)}
	}

	tracker := &progressTracker{fn: cfg.progress, last: start}
	for _, f := range files {
		tracker.total += f.FileSize()
	}
	dir := resolveDir(localDir, modelID, cfg.revision)

	results := make([]DownloadedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism)
	for i, file := range files {
		g.Go(func() error {
			res := DownloadedFile{Filename: file.Filename, LocalPath: filepath.Join(dir, file.Filename), Size: file.FileSize()}
			if st, err := os.Stat(res.LocalPath); err == nil && st.Size() == res.Size {
				res.FromCache = true
				tracker.add(res.Size)
			} else {
				job := fetchJob{url: c.resolveURL(modelID, cfg.revision, file.Filename), target: res.LocalPath}
				if file.LFS != nil {
					job.sha256 = file.LFS.SHA256
				}
				if err := c.fetch(gctx, job, cfg.resume, tracker.add); err != nil {
					return fmt.Errorf("%s: %w", file.Filename, err)
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &HuggingFaceError{Op: "snapshot", ModelID: modelID, Err: err}
	}
	tracker.finish()

	return &ModelDownloadResult{
		ModelID:      modelID,
		Revision:     cfg.revision,
		LocalDir:     dir,
		Files:        results,
		TotalSize:    tracker.total,
		DownloadTime: time.Since(start),
	}, nil
}
