// cmd_serve.go - Server starten und Version anzeigen
// Hauptfunktionen: RunServer, loadOptions, versionHandler
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/dreamo"
	"github.com/dreamo-go/dreamo/envconfig"
	"github.com/dreamo-go/dreamo/server"
	"github.com/dreamo-go/dreamo/version"
)

// addServeFlags - Registriert die Flags des Demo-Servers
func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", envconfig.Bind(), "Interface to listen on (127.0.0.1 restricts the UI to this machine)")
	cmd.Flags().Int("port", envconfig.DefaultPort, "Port of the web UI")
	cmd.Flags().Bool("no_turbo", false, "Disable the turbo LoRA (25 instead of 12 steps)")
	cmd.Flags().Bool("int8", false, "Quantize transformer and text encoder to int8")
	cmd.Flags().Bool("offload", false, "Keep models on the host and move them to the device only while in use")
}

// loadOptions - Kombiniert Umgebung und Flags
func loadOptions(cmd *cobra.Command) (dreamo.LoadOptions, error) {
	opts := dreamo.DefaultLoadOptions()

	noTurbo, err := cmd.Flags().GetBool("no_turbo")
	if err != nil {
		return opts, err
	}
	opts.Turbo = !noTurbo

	if opts.Int8, err = cmd.Flags().GetBool("int8"); err != nil {
		return opts, err
	}
	if opts.Offload, err = cmd.Flags().GetBool("offload"); err != nil {
		return opts, err
	}

	return opts, nil
}

// listenAddr - Default sind alle Interfaces wie in der Demo
func listenAddr(cmd *cobra.Command) (string, error) {
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return "", err
	}
	if net.ParseIP(strings.Trim(host, "[]")) == nil {
		return "", fmt.Errorf("ungueltige adresse %q", host)
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return "", err
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("ungueltiger port %d", port)
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port)), nil
}

// RunServer - Laedt die Modelle und startet die Web-Oberflaeche
func RunServer(cmd *cobra.Command, _ []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	addr, err := listenAddr(cmd)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	err = server.Serve(ln, opts)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running dreamo instance")
	}

	if serverVersion != "" {
		fmt.Printf("dreamo version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Load the models and start the web UI",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
	addServeFlags(serveCmd)
	return serveCmd
}
