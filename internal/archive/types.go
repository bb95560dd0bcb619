package archive

import "time"

// Report describes a generated file to archive.
type Report struct {
	Kind        string    // e.g. "trend"
	Name        string    // file name without directory
	ContentType string
	Body        []byte
	GeneratedAt time.Time
	Actor       string
}

// ManifestEntry is one JSONL line in the monthly report manifest.
type ManifestEntry struct {
	Kind        string `json:"kind"`
	Key         string `json:"key"`
	SizeBytes   int    `json:"size_bytes"`
	GeneratedAt string `json:"generated_at"`
	Actor       string `json:"actor,omitempty"`
}
