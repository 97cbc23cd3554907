// types.go - JSON-Typen der Runner-Endpunkte
package runner

import "github.com/dreamo-go/dreamo/vision"

// DeviceRequest ist der Body von POST /device
type DeviceRequest struct {
	Device string `json:"device"`
}

// ImageRequest ist der Body von POST /remove_background und POST /align
type ImageRequest struct {
	Image []byte `json:"image"` // PNG
}

// BackgroundResponse ist die Antwort von POST /remove_background
type BackgroundResponse struct {
	Image []byte `json:"image"` // PNG mit Alpha-Kanal (Vordergrund)
}

// AlignResponse ist die Antwort von POST /align
type AlignResponse struct {
	Found bool   `json:"found"`
	Face  []byte `json:"face,omitempty"` // PNG, ausgerichtet auf FaceSize
}

// ParseRequest ist der Body von POST /parse
type ParseRequest struct {
	Input *vision.Tensor `json:"input"` // [1, 3, H, W] ImageNet-normalisiert, fp16
}

// ParseResponse ist die Antwort von POST /parse
type ParseResponse struct {
	Logits *vision.Tensor `json:"logits"` // [1, classes, H, W], fp16
}

// RefCondition ist eine Referenzbedingung fuer die Pipeline
type RefCondition struct {
	Image *vision.Tensor `json:"img"` // [1, 3, H, W] in [-1, 1], bf16
	Task  string         `json:"task"`
	Index int            `json:"idx"`
}

// PipelineRequest ist der Body von POST /completion
type PipelineRequest struct {
	Prompt                 string         `json:"prompt"`
	Width                  int            `json:"width"`
	Height                 int            `json:"height"`
	NumInferenceSteps      int            `json:"num_inference_steps"`
	GuidanceScale          float64        `json:"guidance_scale"`
	RefConds               []RefCondition `json:"ref_conds"`
	Seed                   uint64         `json:"seed"`
	TrueCFGScale           float64        `json:"true_cfg_scale"`
	TrueCFGStartStep       int            `json:"true_cfg_start_step"`
	TrueCFGEndStep         int            `json:"true_cfg_end_step"`
	NegativePrompt         string         `json:"negative_prompt"`
	NegGuidanceScale       float64        `json:"neg_guidance_scale"`
	FirstStepGuidanceScale float64        `json:"first_step_guidance_scale"`
}

// Progress ist eine Fortschrittsmeldung waehrend der Generierung
type Progress struct {
	Step  int
	Total int
}

// pipelineChunk ist eine NDJSON-Zeile der /completion Antwort
type pipelineChunk struct {
	Image []byte `json:"image,omitempty"`
	Done  bool   `json:"done"`
	Step  int    `json:"step,omitempty"`
	Total int    `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}
