// cmd_pull.go - Pull Command
// Hauptfunktionen: PullHandler
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamo-go/dreamo/dreamo"
)

// PullHandler - Laedt alle Gewichte herunter ohne die Runner zu starten
func PullHandler(cmd *cobra.Command, _ []string) error {
	opts := dreamo.DefaultLoadOptions()

	p := newProgressLine(os.Stderr, fmt.Sprintf("pulling %s:", dreamo.FluxRepo))
	defer p.Stop()
	opts.Progress = p.Update

	w, err := dreamo.NewLoader(nil, opts).Download(cmd.Context())
	if err != nil {
		return err
	}
	p.Stop()

	fmt.Printf("%s\n%s\n", w.BEN2, w.Flux)
	return nil
}

// newPullCmd - Erstellt den pull Command
func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download all model weights",
		Args:  cobra.ExactArgs(0),
		RunE:  PullHandler,
	}
}
