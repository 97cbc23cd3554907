// config.go - Sampling-Konfiguration einer Generierung
package dreamo

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("ungueltige sampling-konfiguration")

// Standardwerte des Web-UI
const (
	DefaultPrompt            = "a person playing guitar in the street"
	DefaultSize              = 1024
	DefaultSteps             = 12
	DefaultGuidance          = 3.5
	DefaultRefRes            = 512
	DefaultNegGuidance       = 3.5
	DefaultTrueCFG           = 1
	DefaultFirstStepGuidance = 0

	// FaceLongEdge ist die maximale Kantenlaenge vor der Gesichtserkennung
	FaceLongEdge = 1024
)

// SamplingConfig sind alle Regler einer Generierung; unveraenderlich waehrend des Requests
type SamplingConfig struct {
	Width             int
	Height            int
	RefRes            int
	Steps             int
	Guidance          float64
	Seed              Seed
	TrueCFG           float64
	CFGStartStep      int
	CFGEndStep        int
	NegPrompt         string
	NegGuidance       float64
	FirstStepGuidance float64
}

// DefaultSamplingConfig gibt die Startwerte des Formulars zurueck
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Width:             DefaultSize,
		Height:            DefaultSize,
		RefRes:            DefaultRefRes,
		Steps:             DefaultSteps,
		Guidance:          DefaultGuidance,
		Seed:              Seed{Random: true},
		TrueCFG:           DefaultTrueCFG,
		NegGuidance:       DefaultNegGuidance,
		FirstStepGuidance: DefaultFirstStepGuidance,
	}
}

// Range beschreibt einen Schieberegler
type Range struct {
	Min, Max, Step float64
}

// Bereiche der Schieberegler im UI
var (
	SizeRange              = Range{768, 1024, 16}
	StepsRange             = Range{8, 30, 1}
	GuidanceRange          = Range{1, 10, 0.1}
	RefResRange            = Range{512, 1024, 16}
	NegGuidanceRange       = Range{1, 10, 0.1}
	TrueCFGRange           = Range{1, 5, 0.1}
	CFGStepRange           = Range{0, 30, 1}
	FirstStepGuidanceRange = Range{0, 10, 0.1}
)

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

// onGrid prueft ganzzahlige Regler auf ihr Raster (Min + k*Step)
func (r Range) onGrid(v int) bool {
	return r.contains(float64(v)) && (v-int(r.Min))%int(r.Step) == 0
}

// Validate prueft alle Werte gegen die Bereiche des UI
func (c SamplingConfig) Validate() error {
	var errs []error
	check := func(ok bool, name string, v any, r Range) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s=%v ausserhalb [%v, %v]", name, v, r.Min, r.Max))
		}
	}

	check(SizeRange.onGrid(c.Width), "width", c.Width, SizeRange)
	check(SizeRange.onGrid(c.Height), "height", c.Height, SizeRange)
	check(RefResRange.onGrid(c.RefRes), "ref_res", c.RefRes, RefResRange)
	check(StepsRange.onGrid(c.Steps), "num_steps", c.Steps, StepsRange)
	check(GuidanceRange.contains(c.Guidance), "guidance", c.Guidance, GuidanceRange)
	check(NegGuidanceRange.contains(c.NegGuidance), "neg_guidance", c.NegGuidance, NegGuidanceRange)
	check(TrueCFGRange.contains(c.TrueCFG), "true_cfg", c.TrueCFG, TrueCFGRange)
	check(CFGStepRange.onGrid(c.CFGStartStep), "cfg_start_step", c.CFGStartStep, CFGStepRange)
	check(CFGStepRange.onGrid(c.CFGEndStep), "cfg_end_step", c.CFGEndStep, CFGStepRange)
	check(FirstStepGuidanceRange.contains(c.FirstStepGuidance), "first_step_guidance", c.FirstStepGuidance, FirstStepGuidanceRange)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// FirstStepGuidanceScale faellt auf Guidance zurueck, wenn kein eigener Wert gesetzt ist
func (c SamplingConfig) FirstStepGuidanceScale() float64 {
	if c.FirstStepGuidance > 0 {
		return c.FirstStepGuidance
	}
	return c.Guidance
}
