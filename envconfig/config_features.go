// config_features.go - Runner- und Geraete-Konfiguration
//
// Dieses Modul enthaelt:
// - Runner-Kommando und feste Runner-URLs
// - Ziel-Geraet fuer die Inferenz
// - Warteschlange und Checkpoint-Pruefung
package envconfig

// =============================================================================
// Runner
// =============================================================================

var (
	// Runner ist das Kommando, das fuer jedes Modell als Subprozess gestartet wird
	Runner = StringWithDefault("DREAMO_RUNNER", "dreamo-runner")

	// BEN2URL verbindet mit einem bereits laufenden BEN2-Runner statt ihn zu starten
	BEN2URL = String("DREAMO_BEN2_URL")

	// FaceURL verbindet mit einem bereits laufenden facexlib-Runner
	FaceURL = String("DREAMO_FACE_URL")

	// PipelineURL verbindet mit einem bereits laufenden DreamO-Pipeline-Runner
	PipelineURL = String("DREAMO_PIPELINE_URL")
)

// =============================================================================
// Geraete und Ausfuehrung
// =============================================================================

var (
	// Device ist das Beschleuniger-Geraet der Runner
	Device = StringWithDefault("DREAMO_DEVICE", "cuda")

	// MaxQueue begrenzt wartende Generierungen
	MaxQueue = Uint("DREAMO_MAX_QUEUE", 16)

	// VerifyCheckpoints prueft BEN2_Base.pth nach dem Download mit einem Pickle-Reader
	VerifyCheckpoints = Bool("DREAMO_VERIFY_CHECKPOINTS")
)

// =============================================================================
// Hugging Face Hub
// =============================================================================

var (
	// HFToken authentifiziert Downloads (FLUX.1-dev ist gated)
	HFToken = String("HF_TOKEN")

	// HFEndpoint ersetzt https://huggingface.co, z.B. fuer Mirrors
	HFEndpoint = StringWithDefault("HF_ENDPOINT", "https://huggingface.co")

	// HFHome ist die Wurzel des Hub-Caches
	HFHome = String("HF_HOME")

	// HFHubCache setzt das Cache-Verzeichnis direkt und hat Vorrang vor HF_HOME
	HFHubCache = String("HF_HUB_CACHE")
)
