// Package archive builds, verifies, and unpacks backup containers: zip
// files whose final entry is a JSON manifest describing every payload
// entry, the generator, and the source site. The manifest is the sole
// basis for restore and migration decisions; a container without a valid
// manifest is rejected outright.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ManifestName is the manifest's entry name inside every container.
const ManifestName = "sitevault-manifest.json"

// ManifestVersion is the current manifest schema version.
const ManifestVersion = "1.0"

// EntryInfo describes one payload entry: its container name, original
// size, and sha256 checksum computed while the entry was written.
type EntryInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Manifest is the container's self-description. It is written once as the
// final entry and never modified afterwards.
type Manifest struct {
	Version          string                 `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	Generator        string                 `json:"generator"`
	GeneratorVersion string                 `json:"generator_version"`
	Platform         string                 `json:"platform,omitempty"`
	PlatformVersion  string                 `json:"platform_version,omitempty"`
	SiteURL          string                 `json:"site_url,omitempty"`
	TablePrefix      string                 `json:"table_prefix,omitempty"`
	Files            []EntryInfo            `json:"files"`
	FileCount        int                    `json:"file_count"`
	Options          map[string]interface{} `json:"options,omitempty"`
}

// Validate checks the fields a restore depends on.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("manifest creation time is required")
	}
	if m.FileCount != len(m.Files) {
		return fmt.Errorf("manifest file count %d does not match %d listed entries", m.FileCount, len(m.Files))
	}
	for i, entry := range m.Files {
		if entry.Name == "" {
			return fmt.Errorf("manifest entry %d has no name", i)
		}
	}
	return nil
}

// ToJSON serializes the manifest to indented JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON deserializes a manifest from JSON data.
func (m *Manifest) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// Entry returns the listed entry with the given name, or nil.
func (m *Manifest) Entry(name string) *EntryInfo {
	for i := range m.Files {
		if m.Files[i].Name == name {
			return &m.Files[i]
		}
	}
	return nil
}

// EntryWithPrefix returns the first listed entry whose name starts with
// prefix, or nil. Used to locate the database dump regardless of its
// compression suffix.
func (m *Manifest) EntryWithPrefix(prefix string) *EntryInfo {
	for i := range m.Files {
		if strings.HasPrefix(m.Files[i].Name, prefix) {
			return &m.Files[i]
		}
	}
	return nil
}
