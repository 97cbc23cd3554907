// config.go - Haupt-Konfigurationsfunktionen fuer dreamo
//
// Dieses Modul enthaelt:
// - Host: Adresse des dreamo-Servers fuer Clients (DREAMO_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (DREAMO_ORIGINS)
// - Models, Examples: Verzeichnisse (DREAMO_MODELS, DREAMO_EXAMPLES)
// - LoadTimeout: Timeout fuer den Runner-Start (DREAMO_LOAD_TIMEOUT)
// - ShareURL: oeffentlicher Link fuer url.txt (DREAMO_SHARE_URL)
// - LogLevel: Gibt Log-Level zurueck (DREAMO_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Runner- und Geraete-Variablen
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPort ist der Port des Web-UI wenn --port fehlt
const DefaultPort = 8080

// Host gibt Scheme und Host des dreamo-Servers zurueck
// Konfigurierbar via DREAMO_HOST
// Default: http://127.0.0.1:8080
func Host() *url.URL {
	defaultPort := strconv.Itoa(DefaultPort)

	s := strings.TrimSpace(Var("DREAMO_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via DREAMO_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("DREAMO_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

var (
	// Bind ist die Adresse, auf der das Web-UI lauscht. Mit 127.0.0.1 greift
	// der Host-Header-Schutz gegen DNS-Rebinding.
	Bind = StringWithDefault("DREAMO_BIND", "0.0.0.0")

	// Models ist das Verzeichnis der Gewichte (BEN2_Base.pth, FLUX.1-dev/)
	Models = StringWithDefault("DREAMO_MODELS", "models")

	// Examples enthaelt die Galerie-Bilder, ausgeliefert unter /examples/
	Examples = StringWithDefault("DREAMO_EXAMPLES", "example_inputs")

	// LoadTimeout begrenzt das Warten auf einen Runner. FLUX braucht lange,
	// daher 10 Minuten; 0 wartet unbegrenzt.
	LoadTimeout = Duration("DREAMO_LOAD_TIMEOUT", 10*time.Minute)
)

// ShareURL gibt den oeffentlichen Link zurueck, der in url.txt landet
// Konfigurierbar via DREAMO_SHARE_URL
// Default: http://<hostname>:<port>
func ShareURL(port int) string {
	if s := Var("DREAMO_SHARE_URL"); s != "" {
		return s
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via DREAMO_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("DREAMO_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
