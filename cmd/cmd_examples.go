// cmd_examples.go - Examples Command
// Hauptfunktionen: ExamplesHandler, renderExamples
package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dreamo-go/dreamo/api"
	"github.com/dreamo-go/dreamo/server"
)

// maxPromptWidth kuerzt lange Prompts in der Tabelle
const maxPromptWidth = 60

// ExamplesHandler - Listet die Beispiel-Galerien auf
func ExamplesHandler(cmd *cobra.Command, _ []string) error {
	offline, err := cmd.Flags().GetBool("offline")
	if err != nil {
		return err
	}

	var galleries *api.Galleries
	if offline {
		galleries = server.Examples()
	} else {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}
		if galleries, err = client.Examples(cmd.Context()); err != nil {
			return err
		}
	}

	renderExamples(os.Stdout, galleries)
	return nil
}

// renderExamples - Schreibt eine Zeile pro Beispiel, gruppiert nach Galerie
func renderExamples(w io.Writer, galleries *api.Galleries) {
	var data [][]string
	for pair := galleries.Oldest(); pair != nil; pair = pair.Next() {
		for _, ex := range pair.Value {
			data = append(data, []string{
				pair.Key,
				strings.Join(ex.Images, ","),
				strings.Join(ex.Tasks, ","),
				ex.Seed,
				runewidth.Truncate(ex.Prompt, maxPromptWidth, "..."),
			})
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"GALLERY", "IMAGES", "TASKS", "SEED", "PROMPT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// newExamplesCmd - Erstellt den examples Command
func newExamplesCmd() *cobra.Command {
	examplesCmd := &cobra.Command{
		Use:   "examples",
		Short: "List the example galleries",
		Args:  cobra.ExactArgs(0),
		RunE:  ExamplesHandler,
	}
	examplesCmd.Flags().Bool("offline", false, "Print the built-in galleries without contacting a server")
	return examplesCmd
}
