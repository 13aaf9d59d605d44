package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a storage backend implementation
type Kind string

const (
	// KindLocal stores backups on the local file system
	KindLocal Kind = "local"
	// KindS3 stores backups in an S3 bucket
	KindS3 Kind = "s3"
	// KindAzure stores backups in an Azure blob container
	KindAzure Kind = "azure"
	// KindGCS stores backups in a Google Cloud Storage bucket
	KindGCS Kind = "gcs"
)

// AllKinds lists every known adapter kind
var AllKinds = []Kind{KindLocal, KindS3, KindAzure, KindGCS}

// ParseKind converts a string into a Kind
func ParseKind(s string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(s))); kind {
	case KindLocal, KindS3, KindAzure, KindGCS:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown storage kind: %q", s)
	}
}

// ObjectInfo describes one remote object or directory in a listing
type ObjectInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	IsDir    bool      `json:"is_dir"`
}

// ObjectMetadata describes one remote object
type ObjectMetadata struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Checksum string    `json:"checksum,omitempty"`
}

// StorageInfo reports backend capacity. A zero Total means the backend
// does not expose a capacity limit.
type StorageInfo struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// SettingField describes one entry of an adapter's settings schema
type SettingField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "string", "int", "bool"
	Secret   bool   `json:"secret"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
}

// ProgressFunc reports transfer progress in bytes
type ProgressFunc func(transferred, total int64)

// Adapter is the uniform contract every storage backend implements.
//
// Connect must be called before any transfer operation. GetMetadata
// returns (nil, nil) when the remote object does not exist. Upload
// switches to the chunked session protocol on its own when the payload
// exceeds the adapter's chunk threshold.
type Adapter interface {
	Kind() Kind
	Name() string
	IsConfigured() bool
	Connect(ctx context.Context) error
	Upload(ctx context.Context, localPath, remotePath string) error
	UploadChunked(ctx context.Context, localPath, remotePath string, chunkSize int64, onProgress ProgressFunc) error
	Download(ctx context.Context, remotePath, localPath string) error
	Delete(ctx context.Context, remotePath string) error
	List(ctx context.Context, path string) ([]ObjectInfo, error)
	Exists(ctx context.Context, remotePath string) (bool, error)
	GetMetadata(ctx context.Context, remotePath string) (*ObjectMetadata, error)
	GetDownloadURL(ctx context.Context, remotePath string, expiry time.Duration) (string, error)
	GetStorageInfo(ctx context.Context) (*StorageInfo, error)
	SettingsSpec() []SettingField
	ApplySettings(values map[string]string) error
}

// SettingsCipher encrypts and decrypts secret setting values at rest.
// The engine injects an implementation at startup; adapters only ever
// see plaintext values.
type SettingsCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NopCipher passes values through unchanged. Used when no settings
// passphrase is configured.
type NopCipher struct{}

// Encrypt returns the plaintext unchanged
func (NopCipher) Encrypt(plaintext string) (string, error) { return plaintext, nil }

// Decrypt returns the ciphertext unchanged
func (NopCipher) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// PartSpec describes one part of a chunked transfer
type PartSpec struct {
	Index  int
	Offset int64
	Size   int64
}

// PartPlan partitions a payload of totalSize bytes into ordered parts of
// at most chunkSize bytes. The final part carries the remainder.
func PartPlan(totalSize, chunkSize int64) []PartSpec {
	if totalSize <= 0 || chunkSize <= 0 {
		return nil
	}

	count := totalSize / chunkSize
	if totalSize%chunkSize != 0 {
		count++
	}

	parts := make([]PartSpec, 0, count)
	var offset int64
	for i := 0; offset < totalSize; i++ {
		size := chunkSize
		if remaining := totalSize - offset; remaining < size {
			size = remaining
		}
		parts = append(parts, PartSpec{Index: i, Offset: offset, Size: size})
		offset += size
	}

	return parts
}
