// types.go - Antworten der Hub-API und Download-Ergebnisse
package huggingface

import "time"

// APIModelInfo ist die Antwort von /api/models/<repo>/revision/<rev>?blobs=true
type APIModelInfo struct {
	ID       string       `json:"id"`
	SHA      string       `json:"sha"`
	Private  bool         `json:"private"`
	Gated    any          `json:"gated"` // false, "auto" oder "manual"
	Siblings []APISibling `json:"siblings"`
}

// IsGated ist wahr, wenn Downloads eine akzeptierte Lizenz und einen Token brauchen
func (m *APIModelInfo) IsGated() bool {
	switch v := m.Gated.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	}
	return false
}

// APISibling ist eine Datei im Repository
type APISibling struct {
	Filename string   `json:"rfilename"`
	Size     int64    `json:"size"`
	LFS      *LFSInfo `json:"lfs,omitempty"`
}

// FileSize bevorzugt die LFS-Groesse; size beschreibt sonst nur den Pointer
func (s APISibling) FileSize() int64 {
	if s.LFS != nil && s.LFS.Size > 0 {
		return s.LFS.Size
	}
	return s.Size
}

type LFSInfo struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type DownloadedFile struct {
	Filename  string
	LocalPath string
	Size      int64
	FromCache bool
}

type ModelDownloadResult struct {
	ModelID      string
	Revision     string
	LocalDir     string
	Files        []DownloadedFile
	TotalSize    int64
	DownloadTime time.Duration
}

// HuggingFaceError haengt Operation (info, download, snapshot) und Repo an
type HuggingFaceError struct {
	Op      string
	ModelID string
	Err     error
}

func (e *HuggingFaceError) Error() string {
	if e.ModelID == "" {
		return "huggingface " + e.Op + ": " + e.Err.Error()
	}
	return "huggingface " + e.Op + " " + e.ModelID + ": " + e.Err.Error()
}

func (e *HuggingFaceError) Unwrap() error { return e.Err }
