// config_utils.go - Getter-Bausteine und Export der Konfiguration
//
// Alle Getter lesen die Umgebung bei jedem Aufruf neu, Tests koennen daher
// t.Setenv verwenden. Ungueltige Werte fallen mit einer Warnung auf den Default.
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

// Bool ist false ohne Wert; ein nicht parsebarer Wert zaehlt als gesetzt
func Bool(key string) func() bool {
	return func() bool {
		s := Var(key)
		if s == "" {
			return false
		}
		b, err := strconv.ParseBool(s)
		return err != nil || b
	}
}

func String(key string) func() string {
	return func() string { return Var(key) }
}

// StringWithDefault ersetzt leere Werte durch defaultValue
func StringWithDefault(key, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		s := Var(key)
		if s == "" {
			return defaultValue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			warnInvalid(key, s, defaultValue)
			return defaultValue
		}
		return uint(n)
	}
}

func warnInvalid(key, value string, def any) {
	slog.Warn("invalid environment variable, using default", "key", key, "value", value, "default", def)
}

// Duration liest Go-Dauern ("90s", "10m") oder ganze Sekunden.
// Werte <= 0 bedeuten unbegrenzt.
func Duration(key string, defaultValue time.Duration) func() time.Duration {
	return func() time.Duration {
		d := defaultValue
		if s := Var(key); s != "" {
			if parsed, err := time.ParseDuration(s); err == nil {
				d = parsed
			} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				d = time.Duration(n) * time.Second
			} else {
				warnInvalid(key, s, defaultValue)
			}
		}
		if d <= 0 {
			return time.Duration(math.MaxInt64)
		}
		return d
	}
}

// EnvVar beschreibt eine Variable fuer Hilfetexte und das Start-Log
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap liefert alle Variablen mit aktuellem Wert
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"DREAMO_DEBUG":              {"DREAMO_DEBUG", LogLevel(), "Show additional debug information (e.g. DREAMO_DEBUG=1)"},
		"DREAMO_BIND":               {"DREAMO_BIND", Bind(), "Interface the web UI listens on (default 0.0.0.0)"},
		"DREAMO_HOST":               {"DREAMO_HOST", Host(), "Address of the dreamo server used by the CLI client (default 127.0.0.1:8080)"},
		"DREAMO_ORIGINS":            {"DREAMO_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"DREAMO_MODELS":             {"DREAMO_MODELS", Models(), "Directory for downloaded model weights (default \"models\")"},
		"DREAMO_EXAMPLES":           {"DREAMO_EXAMPLES", Examples(), "Directory with the example gallery images (default \"example_inputs\")"},
		"DREAMO_LOAD_TIMEOUT":       {"DREAMO_LOAD_TIMEOUT", LoadTimeout(), "How long to wait for a model runner to become ready (default \"10m\")"},
		"DREAMO_SHARE_URL":          {"DREAMO_SHARE_URL", String("DREAMO_SHARE_URL")(), "Public link written to url.txt"},
		"DREAMO_RUNNER":             {"DREAMO_RUNNER", Runner(), "Command used to spawn model runners (default \"dreamo-runner\")"},
		"DREAMO_BEN2_URL":           {"DREAMO_BEN2_URL", BEN2URL(), "Use an already running background removal runner"},
		"DREAMO_FACE_URL":           {"DREAMO_FACE_URL", FaceURL(), "Use an already running face alignment runner"},
		"DREAMO_PIPELINE_URL":       {"DREAMO_PIPELINE_URL", PipelineURL(), "Use an already running diffusion pipeline runner"},
		"DREAMO_DEVICE":             {"DREAMO_DEVICE", Device(), "Accelerator device for the runners (default \"cuda\")"},
		"DREAMO_MAX_QUEUE":          {"DREAMO_MAX_QUEUE", MaxQueue(), "Maximum number of queued generations"},
		"DREAMO_VERIFY_CHECKPOINTS": {"DREAMO_VERIFY_CHECKPOINTS", VerifyCheckpoints(), "Verify downloaded PyTorch checkpoints before starting runners"},

		"HF_TOKEN":     {"HF_TOKEN", HFToken() != "", "Hugging Face access token (FLUX.1-dev is gated)"},
		"HF_ENDPOINT":  {"HF_ENDPOINT", HFEndpoint(), "Hugging Face Hub endpoint (default https://huggingface.co)"},
		"HF_HOME":      {"HF_HOME", HFHome(), "Hugging Face cache root"},
		"HF_HUB_CACHE": {"HF_HUB_CACHE", HFHubCache(), "Hugging Face hub cache directory, overrides HF_HOME"},
	}
}

func Values() map[string]string {
	all := AsMap()
	vals := make(map[string]string, len(all))
	for name, v := range all {
		vals[name] = fmt.Sprint(v.Value)
	}
	return vals
}
