// Package server - Web-UI und HTTP-API fuer dreamo
// Beinhaltet: Server-Struct, Router-Registrierung, Gin-Modus
package server

import (
	"context"
	"html/template"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/version"
)

var mode string = gin.DebugMode

// Generator erzeugt Bilder; implementiert von *dreamo.Generator
type Generator interface {
	Generate(ctx context.Context, req dreamo.Request) (*dreamo.Result, error)
}

// Server haelt den Generator und die Galerie-Daten des Web-UI
type Server struct {
	addr        net.Addr
	gen         Generator
	examplesDir string
	galleries   *api.Galleries
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// New erstellt einen Server fuer gen; Beispielbilder kommen aus examplesDir
func New(gen Generator, examplesDir string) *Server {
	return &Server{gen: gen, examplesDir: examplesDir, galleries: Examples()}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		requestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(tmpl)
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
		requestIDMiddleware(),
	)

	// Web-UI
	r.GET("/", s.IndexHandler)
	r.StaticFS("/examples", gin.Dir(s.examplesDir, false))

	// General
	r.GET("/api/health", func(c *gin.Context) { c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"}) })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })

	// Generierung
	r.GET("/api/examples", s.ExamplesHandler)
	r.POST("/api/generate", s.GenerateHandler)

	return r, nil
}
