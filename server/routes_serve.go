// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - laedt die Modelle und startet den HTTP-Server

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/logutil"
	"github.com/dreamo-go/dreamo/version"
)

// shutdownTimeout begrenzt das Warten auf eine laufende Generierung beim Beenden
const shutdownTimeout = 30 * time.Second

// ShareFile ist die Datei, in die der oeffentliche Link geschrieben wird
const ShareFile = "url.txt"

// Serve laedt alle Modelle und bedient danach ln bis SIGINT/SIGTERM
func Serve(ln net.Listener, opts dreamo.LoadOptions) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	ctx, done := context.WithCancel(context.Background())
	defer done()

	// Laden kann Minuten dauern, Ctrl+C bricht es ab
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	loadCtx, cancelLoad := context.WithCancel(ctx)
	go func() {
		select {
		case <-signals:
			cancelLoad()
		case <-loadCtx.Done():
		}
	}()

	models, err := dreamo.NewLoader(nil, opts).Load(loadCtx)
	cancelLoad()
	if err != nil {
		return fmt.Errorf("modelle laden: %w", err)
	}

	gen := dreamo.NewGenerator(models.Components())
	s := New(gen, envconfig.Examples())
	s.addr = ln.Addr()

	h, err := s.GenerateRoutes()
	if err != nil {
		models.Close()
		return err
	}

	srvr := &http.Server{Handler: h}

	go func() {
		<-signals
		slog.Info("shutting down")

		closeCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		shutdown(closeCtx, srvr, gen, models)
		done()
	}()

	if port, ok := listenPort(ln.Addr()); ok {
		shareURL := envconfig.ShareURL(port)
		if path, err := writeShareURL(shareDir(), shareURL); err != nil {
			slog.Warn("could not persist share link", "error", err)
		} else {
			slog.Info("public URL written", "file", path, "url", shareURL)
		}
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	err = srvr.Serve(ln)
	// Bei Beenden durch Signal auf das Aufraeumen warten, sonst sofort zurueck
	if !slices.Contains([]error{http.ErrServerClosed}, err) {
		models.Close()
		return err
	}
	<-ctx.Done()
	return nil
}

// shutdown laesst laufende Anfragen zu Ende laufen, schliesst dann den
// Generator und zuletzt die Runner
func shutdown(ctx context.Context, srvr *http.Server, gen interface{ Close(context.Context) error }, models io.Closer) {
	if err := srvr.Shutdown(ctx); err != nil {
		slog.Warn("requests still active at shutdown", "error", err)
		srvr.Close()
	}
	if err := gen.Close(ctx); err != nil {
		slog.Warn("generation still running at shutdown", "error", err)
	}
	if err := models.Close(); err != nil {
		slog.Warn("stopping runners failed", "error", err)
	}
}

// shareDir ist das Verzeichnis der ausfuehrbaren Datei (Fallback: Arbeitsverzeichnis)
func shareDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// writeShareURL schreibt url als einzelne Zeile nach dir/url.txt
func writeShareURL(dir, url string) (string, error) {
	path := filepath.Join(dir, ShareFile)
	if err := os.WriteFile(path, []byte(url+"\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func listenPort(addr net.Addr) (int, bool) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, false
	}
	return tcp.Port, true
}
