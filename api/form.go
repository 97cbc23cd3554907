// form.go - Multipart-Kodierung von GenerateRequest
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
)

// Namen der Formularfelder von POST /api/generate
const (
	FieldRefImage          = "ref_image"
	FieldRefTask           = "ref_task"
	FieldPrompt            = "prompt"
	FieldWidth             = "width"
	FieldHeight            = "height"
	FieldRefRes            = "ref_res"
	FieldSteps             = "num_steps"
	FieldGuidance          = "guidance"
	FieldSeed              = "seed"
	FieldTrueCFG           = "true_cfg"
	FieldCFGStartStep      = "cfg_start_step"
	FieldCFGEndStep        = "cfg_end_step"
	FieldNegPrompt         = "neg_prompt"
	FieldNegGuidance       = "neg_guidance"
	FieldFirstStepGuidance = "first_step_guidance"
)

// MaxReferences ist die Anzahl der Referenz-Slots im Formular
const MaxReferences = 2

var ErrTooManyReferences = errors.New("hoechstens zwei referenzbilder erlaubt")

// RefImageField gibt den Feldnamen des Slots i (0-basiert) zurueck, z.B. ref_image1
func RefImageField(i int) string { return FieldRefImage + strconv.Itoa(i+1) }

// RefTaskField gibt den Feldnamen der Aufgabe fuer Slot i zurueck, z.B. ref_task1
func RefTaskField(i int) string { return FieldRefTask + strconv.Itoa(i+1) }

// encode schreibt die Anfrage als multipart/form-data und gibt den Content-Type zurueck
func (r *GenerateRequest) encode(w io.Writer) (string, error) {
	if len(r.References) > MaxReferences {
		return "", ErrTooManyReferences
	}

	mw := multipart.NewWriter(w)
	for i, ref := range r.References {
		if len(ref.Data) == 0 {
			continue
		}
		name := ref.Name
		if name == "" {
			name = fmt.Sprintf("ref%d.png", i+1)
		}
		fw, err := mw.CreateFormFile(RefImageField(i), name)
		if err != nil {
			return "", err
		}
		if _, err := fw.Write(ref.Data); err != nil {
			return "", err
		}
		if ref.Task != "" {
			if err := mw.WriteField(RefTaskField(i), ref.Task); err != nil {
				return "", err
			}
		}
	}

	fields := []struct {
		name, value string
	}{
		{FieldPrompt, r.Prompt},
		{FieldSeed, r.Seed},
		{FieldNegPrompt, r.NegPrompt},
		{FieldWidth, formatInt(r.Width)},
		{FieldHeight, formatInt(r.Height)},
		{FieldRefRes, formatInt(r.RefRes)},
		{FieldSteps, formatInt(r.Steps)},
		{FieldGuidance, formatFloat(r.Guidance)},
		{FieldTrueCFG, formatFloat(r.TrueCFG)},
		{FieldCFGStartStep, formatInt(r.CFGStartStep)},
		{FieldCFGEndStep, formatInt(r.CFGEndStep)},
		{FieldNegGuidance, formatFloat(r.NegGuidance)},
		{FieldFirstStepGuidance, formatFloat(r.FirstStepGuidance)},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return "", err
		}
	}

	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
