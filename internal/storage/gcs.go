package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// GCS implements Adapter for Google Cloud Storage
type GCS struct {
	cfg    GCSConfig
	client *gcs.Client
	logger *logging.Logger
}

// NewGCS creates a Google Cloud Storage adapter
func NewGCS(cfg GCSConfig, logger *logging.Logger) *GCS {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &GCS{cfg: cfg, logger: logger}
}

// Kind returns the adapter kind
func (g *GCS) Kind() Kind { return KindGCS }

// Name returns the human-readable adapter name
func (g *GCS) Name() string { return "Google Cloud Storage" }

// IsConfigured reports whether a bucket is set
func (g *GCS) IsConfigured() bool { return g.cfg.IsConfigured() }

// Connect builds the client and verifies the bucket is reachable
func (g *GCS) Connect(ctx context.Context) error {
	if !g.IsConfigured() {
		return errors.NewConfigurationError("GCS storage is not configured", nil)
	}

	if g.client == nil {
		var client *gcs.Client
		var err error
		if g.cfg.CredentialsPath != "" {
			client, err = gcs.NewClient(ctx, option.WithCredentialsFile(g.cfg.CredentialsPath))
		} else {
			// Default credentials from environment or metadata server
			client, err = gcs.NewClient(ctx)
		}
		if err != nil {
			return errors.NewConfigurationError("failed to create GCS client", err)
		}
		g.client = client
	}

	if _, err := g.client.Bucket(g.cfg.Bucket).Attrs(ctx); err != nil {
		return errors.NewTransferError(fmt.Sprintf("GCS bucket %s is not accessible", g.cfg.Bucket), err)
	}

	return nil
}

// objectName maps a remote path onto a safe object name
func (g *GCS) objectName(remotePath string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(remotePath, "\\", "/")), "/")
}

// Upload stores a local file as a single GCS object
func (g *GCS) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer f.Close()

	w := g.client.Bucket(g.cfg.Bucket).Object(g.objectName(remotePath)).NewWriter(ctx)
	w.ContentType = "application/zip"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.NewTransferError("failed to write object to GCS", err)
	}
	if err := w.Close(); err != nil {
		return errors.NewTransferError("failed to upload object to GCS", err)
	}

	return nil
}

// UploadChunked streams a local file through a resumable upload session.
// The writer's ChunkSize matches the part size, so each part becomes one
// session request; canceling the writer context aborts the session.
func (g *GCS) UploadChunked(ctx context.Context, localPath, remotePath string, chunkSize int64, onProgress ProgressFunc) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.NewIOError("failed to stat source file", err)
	}

	parts := PartPlan(info.Size(), chunkSize)
	if len(parts) == 0 {
		return errors.NewValidationError("nothing to upload: empty payload or invalid chunk size", nil)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer f.Close()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.cfg.Bucket).Object(g.objectName(remotePath)).NewWriter(wctx)
	w.ChunkSize = int(chunkSize)
	w.ContentType = "application/zip"

	var transferred int64
	for _, part := range parts {
		select {
		case <-ctx.Done():
			cancel() // aborts the resumable session
			return errors.New(errors.ErrorTypeInterruption, "upload canceled", ctx.Err())
		default:
		}

		if _, err := io.CopyN(w, io.NewSectionReader(f, part.Offset, part.Size), part.Size); err != nil {
			cancel()
			return errors.NewTransferError(fmt.Sprintf("failed to upload part %d", part.Index+1), err)
		}

		transferred += part.Size
		if onProgress != nil {
			onProgress(transferred, info.Size())
		}
	}

	// Finalize
	if err := w.Close(); err != nil {
		cancel()
		return errors.NewTransferError("failed to finalize resumable upload", err)
	}

	return nil
}

// Download retrieves a GCS object into a local file
func (g *GCS) Download(ctx context.Context, remotePath, localPath string) error {
	reader, err := g.client.Bucket(g.cfg.Bucket).Object(g.objectName(remotePath)).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewTransferError("failed to download object from GCS", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.NewIOError("failed to create destination directory", err)
	}

	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to create destination file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		return errors.NewTransferError("failed to read object body", err)
	}

	return nil
}

// Delete removes a GCS object
func (g *GCS) Delete(ctx context.Context, remotePath string) error {
	err := g.client.Bucket(g.cfg.Bucket).Object(g.objectName(remotePath)).Delete(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewTransferError("failed to delete object from GCS", err)
	}
	return nil
}

// List returns the objects and prefixes directly under the given path
func (g *GCS) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	prefix := g.objectName(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := g.client.Bucket(g.cfg.Bucket).Objects(ctx, &gcs.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.NewTransferError("failed to list objects from GCS", err)
		}

		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			if name == "" {
				continue
			}
			objects = append(objects, ObjectInfo{
				Name:  name,
				Path:  path.Join(dir, name),
				IsDir: true,
			})
			continue
		}

		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:     name,
			Path:     path.Join(dir, name),
			Size:     attrs.Size,
			Modified: attrs.Updated,
		})
	}

	return objects, nil
}

// Exists reports whether a GCS object exists
func (g *GCS) Exists(ctx context.Context, remotePath string) (bool, error) {
	meta, err := g.GetMetadata(ctx, remotePath)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// GetMetadata returns object attributes, or nil when the object is absent
func (g *GCS) GetMetadata(ctx context.Context, remotePath string) (*ObjectMetadata, error) {
	attrs, err := g.client.Bucket(g.cfg.Bucket).Object(g.objectName(remotePath)).Attrs(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, nil
		}
		return nil, errors.NewTransferError("failed to read object attributes", err)
	}

	var checksum string
	if len(attrs.MD5) > 0 {
		checksum = hex.EncodeToString(attrs.MD5)
	}

	return &ObjectMetadata{
		Name:     path.Base(remotePath),
		Size:     attrs.Size,
		Modified: attrs.Updated,
		Checksum: checksum,
	}, nil
}

// GetDownloadURL returns a V4 signed URL for the object
func (g *GCS) GetDownloadURL(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	url, err := g.client.Bucket(g.cfg.Bucket).SignedURL(g.objectName(remotePath), &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", errors.NewTransferError("failed to sign download URL", err)
	}
	return url, nil
}

// GetStorageInfo sums the sizes of all objects in the bucket
func (g *GCS) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	it := g.client.Bucket(g.cfg.Bucket).Objects(ctx, nil)

	var used int64
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.NewTransferError("failed to measure storage usage", err)
		}
		used += attrs.Size
	}

	return &StorageInfo{Used: used}, nil
}

// SettingsSpec returns the GCS adapter settings schema
func (g *GCS) SettingsSpec() []SettingField {
	return []SettingField{
		{Key: "bucket", Label: "Bucket", Type: "string", Required: true},
		{Key: "project_id", Label: "Project ID", Type: "string"},
		{Key: "credentials_path", Label: "Service account key file", Type: "string"},
	}
}

// ApplySettings applies settings values and forces a reconnect
func (g *GCS) ApplySettings(values map[string]string) error {
	if v, ok := values["bucket"]; ok {
		g.cfg.Bucket = v
	}
	if v, ok := values["project_id"]; ok {
		g.cfg.ProjectID = v
	}
	if v, ok := values["credentials_path"]; ok {
		g.cfg.CredentialsPath = v
	}
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
	return nil
}

// Close releases the underlying client
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
