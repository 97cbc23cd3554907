// cache.go - Zielverzeichnisse fuer Downloads
// Ohne local_dir landen Dateien im Hub-Cache (models--<owner>--<name>/snapshots/<rev>).
package huggingface

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dreamo-go/dreamo/envconfig"
)

// GetCacheDir folgt huggingface_hub: HF_HUB_CACHE, HF_HOME/hub, XDG_CACHE_HOME, ~/.cache
func GetCacheDir() string {
	if dir := envconfig.HFHubCache(); dir != "" {
		return dir
	}
	if home := envconfig.HFHome(); home != "" {
		return filepath.Join(home, "hub")
	}

	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".cache")
		} else {
			base = os.TempDir()
		}
	}
	return filepath.Join(base, "huggingface", "hub")
}

// SnapshotPath ist der Snapshot-Ordner einer Revision im Cache
func SnapshotPath(modelID, revision string) string {
	if revision == "" {
		revision = DefaultRevision
	}
	repo := "models--" + strings.ReplaceAll(modelID, "/", "--")
	return filepath.Join(GetCacheDir(), repo, "snapshots", revision)
}

func resolveDir(localDir, modelID, revision string) string {
	if localDir != "" {
		return localDir
	}
	return SnapshotPath(modelID, revision)
}
