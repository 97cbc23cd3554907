// cmd_generate.go - Generate Command (Client fuer einen laufenden Server)
// Hauptfunktionen: GenerateHandler, buildGenerateRequest, saveResult
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamo-go/dreamo/api"
)

// GenerateHandler - Schickt Referenzen und Prompt an den Server und speichert das Ergebnis
func GenerateHandler(cmd *cobra.Command, args []string) error {
	req, err := buildGenerateRequest(cmd, args)
	if err != nil {
		return err
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := client.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutputName(req.Prompt, start)
	}
	debug, _ := cmd.Flags().GetBool("debug-images")

	files, err := saveResult(resp, output, debug)
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Printf("Image saved to: %s\n", f)
	}
	fmt.Printf("seed: %s (%s)\n", resp.Seed, time.Since(start).Round(time.Millisecond))
	return nil
}

// buildGenerateRequest - Liest Referenzdateien und Flags
func buildGenerateRequest(cmd *cobra.Command, args []string) (*api.GenerateRequest, error) {
	flags := cmd.Flags()

	refs, err := flags.GetStringArray("ref")
	if err != nil {
		return nil, err
	}
	tasks, err := flags.GetStringArray("task")
	if err != nil {
		return nil, err
	}
	if len(refs) > api.MaxReferences {
		return nil, api.ErrTooManyReferences
	}
	if len(tasks) > len(refs) {
		return nil, fmt.Errorf("%d aufgaben fuer %d referenzbilder", len(tasks), len(refs))
	}

	req := &api.GenerateRequest{Prompt: strings.Join(args, " ")}
	for i, path := range refs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		task := "ip"
		if i < len(tasks) {
			task = tasks[i]
		}
		req.References = append(req.References, api.ReferenceImage{
			Name: filepath.Base(path),
			Data: data,
			Task: task,
		})
	}

	if req.Seed, err = flags.GetString("seed"); err != nil {
		return nil, err
	}
	if req.NegPrompt, err = flags.GetString("neg-prompt"); err != nil {
		return nil, err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"width", &req.Width},
		{"height", &req.Height},
		{"ref-res", &req.RefRes},
		{"steps", &req.Steps},
		{"cfg-start-step", &req.CFGStartStep},
		{"cfg-end-step", &req.CFGEndStep},
	}
	for _, f := range ints {
		if *f.dst, err = flags.GetInt(f.name); err != nil {
			return nil, err
		}
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"guidance", &req.Guidance},
		{"true-cfg", &req.TrueCFG},
		{"neg-guidance", &req.NegGuidance},
		{"first-step-guidance", &req.FirstStepGuidance},
	}
	for _, f := range floats {
		if *f.dst, err = flags.GetFloat64(f.name); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// saveResult - Schreibt das Bild und optional die vorverarbeiteten Referenzen
func saveResult(resp *api.GenerateResponse, output string, debug bool) ([]string, error) {
	image, err := resp.ImageBytes()
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren: %w", err)
	}
	if err := os.WriteFile(output, image, 0o644); err != nil {
		return nil, fmt.Errorf("bild speichern: %w", err)
	}
	files := []string{output}

	if !debug {
		return files, nil
	}

	base := strings.TrimSuffix(output, filepath.Ext(output))
	for i := range resp.DebugImages {
		data, err := resp.DebugImageBytes(i)
		if err != nil {
			return files, err
		}
		name := fmt.Sprintf("%s-ref%d.png", base, i+1)
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return files, fmt.Errorf("vorschau speichern: %w", err)
		}
		files = append(files, name)
	}
	return files, nil
}

// defaultOutputName - Dateiname aus Prompt und Zeitstempel
func defaultOutputName(prompt string, t time.Time) string {
	safeName := sanitizeFilename(prompt)
	if len(safeName) > 50 {
		safeName = safeName[:50]
	}
	if safeName == "" {
		safeName = "dreamo"
	}
	return fmt.Sprintf("%s-%s.png", safeName, t.Format("20060102-150405"))
}

func sanitizeFilename(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [flags] PROMPT",
		Short: "Generate an image on a running server",
		Example: `  dreamo generate --ref woman1.png --task ip "a woman sitting on the cloud"
  dreamo generate --ref shirt.png --ref skirt.jpeg "a girl on the beach"`,
		Args: cobra.ArbitraryArgs,
		RunE: GenerateHandler,
	}

	flags := generateCmd.Flags()
	flags.StringArray("ref", nil, "Reference image (up to two)")
	flags.StringArray("task", nil, "Task for the reference at the same position: ip, id or style (default ip)")
	flags.StringP("output", "o", "", "Output file (default derived from the prompt)")
	flags.Bool("debug-images", false, "Also save the preprocessed references")
	flags.String("seed", "-1", "Seed, -1 for random")
	flags.String("neg-prompt", "", "Negative prompt")

	// 0 bedeutet Standardwert des Servers
	flags.Int("width", 0, "Width")
	flags.Int("height", 0, "Height")
	flags.Int("ref-res", 0, "Resolution of the reference images")
	flags.Int("steps", 0, "Number of sampling steps")
	flags.Int("cfg-start-step", 0, "First step with true CFG")
	flags.Int("cfg-end-step", 0, "Last step with true CFG")
	flags.Float64("guidance", 0, "Guidance scale")
	flags.Float64("true-cfg", 0, "True CFG scale")
	flags.Float64("neg-guidance", 0, "Negative guidance")
	flags.Float64("first-step-guidance", 0, "Guidance of the first step")

	return generateCmd
}
