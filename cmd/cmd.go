// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dreamo-go/dreamo/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-26s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "dreamo",
		Short:         "DreamO image customization demo",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return nil
			}

			// ohne Subcommand wird wie beim Demo-Skript direkt serviert
			return RunServer(cmd, args)
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	addServeFlags(rootCmd)

	// Commands erstellen
	serveCmd := newServeCmd()
	pullCmd := newPullCmd()
	examplesCmd := newExamplesCmd()
	generateCmd := newGenerateCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	serveEnvs := []envconfig.EnvVar{
		envVars["DREAMO_DEBUG"],
		envVars["DREAMO_BIND"],
		envVars["DREAMO_ORIGINS"],
		envVars["DREAMO_MODELS"],
		envVars["DREAMO_EXAMPLES"],
		envVars["DREAMO_LOAD_TIMEOUT"],
		envVars["DREAMO_MAX_QUEUE"],
		envVars["DREAMO_SHARE_URL"],
		envVars["DREAMO_RUNNER"],
		envVars["DREAMO_BEN2_URL"],
		envVars["DREAMO_FACE_URL"],
		envVars["DREAMO_PIPELINE_URL"],
		envVars["DREAMO_DEVICE"],
		envVars["DREAMO_VERIFY_CHECKPOINTS"],
		envVars["HF_TOKEN"],
		envVars["HF_ENDPOINT"],
	}

	for _, cmd := range []*cobra.Command{
		rootCmd,
		serveCmd,
		pullCmd,
		examplesCmd,
		generateCmd,
	} {
		switch cmd {
		case rootCmd, serveCmd:
			appendEnvDocs(cmd, serveEnvs)
		case pullCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["DREAMO_MODELS"],
				envVars["DREAMO_VERIFY_CHECKPOINTS"],
				envVars["HF_TOKEN"],
				envVars["HF_ENDPOINT"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["DREAMO_HOST"]})
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		pullCmd,
		examplesCmd,
		generateCmd,
	)

	return rootCmd
}
