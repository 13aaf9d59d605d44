package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// Local implements Adapter on the local file system. Chunked uploads go
// through an explicit session file so the append/finalize/abort protocol
// behaves like the remote adapters.
type Local struct {
	cfg    LocalConfig
	logger *logging.Logger
}

// NewLocal creates a local file system adapter
func NewLocal(cfg LocalConfig, logger *logging.Logger) *Local {
	if cfg.Permissions == 0 {
		cfg.Permissions = 0700
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Local{cfg: cfg, logger: logger}
}

// Kind returns the adapter kind
func (l *Local) Kind() Kind { return KindLocal }

// Name returns the human-readable adapter name
func (l *Local) Name() string { return "Local filesystem" }

// IsConfigured reports whether a base path is set
func (l *Local) IsConfigured() bool { return l.cfg.IsConfigured() }

// Connect ensures the base directory exists and is writable
func (l *Local) Connect(ctx context.Context) error {
	if !l.IsConfigured() {
		return errors.NewConfigurationError("local storage base path is not set", nil)
	}

	if err := os.MkdirAll(l.cfg.BasePath, l.cfg.Permissions); err != nil {
		return errors.NewIOError("failed to create base directory", err)
	}

	// Verify the directory is writable
	probe := filepath.Join(l.cfg.BasePath, ".write-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0600); err != nil {
		return errors.NewIOError("base directory is not writable", err)
	}
	os.Remove(probe)

	return nil
}

// resolve maps a remote path onto the base directory, rejecting traversal
func (l *Local) resolve(remotePath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(remotePath, "\\", "/"))
	if strings.Contains(cleaned, "..") {
		return "", errors.NewValidationError(fmt.Sprintf("invalid remote path: %s", remotePath), nil)
	}
	return filepath.Join(l.cfg.BasePath, filepath.FromSlash(cleaned)), nil
}

// Upload copies a local file into the base directory
func (l *Local) Upload(ctx context.Context, localPath, remotePath string) error {
	target, err := l.resolve(remotePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), l.cfg.Permissions); err != nil {
		return errors.NewIOError("failed to create target directory", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer src.Close()

	// Write through a temp file and rename so readers never observe a
	// partially copied object
	tmp := target + ".tmp-" + uuid.New().String()[:8]
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to create target file", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return errors.NewIOError("failed to copy file", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return errors.NewIOError("failed to close target file", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return errors.NewIOError("failed to finalize upload", err)
	}

	return nil
}

// UploadChunked copies a local file through an explicit part session:
// parts are appended in order with offset verification, then the session
// file is renamed into place. A failed finalize removes the session file.
func (l *Local) UploadChunked(ctx context.Context, localPath, remotePath string, chunkSize int64, onProgress ProgressFunc) error {
	target, err := l.resolve(remotePath)
	if err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return errors.NewIOError("failed to stat source file", err)
	}

	parts := PartPlan(info.Size(), chunkSize)
	if len(parts) == 0 {
		return errors.NewValidationError("nothing to upload: empty payload or invalid chunk size", nil)
	}

	if err := os.MkdirAll(filepath.Dir(target), l.cfg.Permissions); err != nil {
		return errors.NewIOError("failed to create target directory", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.NewIOError("failed to open source file", err)
	}
	defer src.Close()

	// Initiate session
	session := target + ".upload-" + uuid.New().String()[:8]
	out, err := os.OpenFile(session, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to initiate upload session", err)
	}

	abort := func() {
		out.Close()
		os.Remove(session)
	}

	var transferred int64
	for _, part := range parts {
		select {
		case <-ctx.Done():
			abort()
			return errors.New(errors.ErrorTypeInterruption, "upload canceled", ctx.Err())
		default:
		}

		// Offset tracking: the session must have exactly part.Offset bytes
		written, err := out.Seek(0, io.SeekEnd)
		if err != nil {
			abort()
			return errors.NewTransferError("upload session seek failed", err)
		}
		if written != part.Offset {
			abort()
			return errors.NewTransferError(
				fmt.Sprintf("upload session out of sync: have %d bytes, expected %d", written, part.Offset), nil)
		}

		if _, err := io.CopyN(out, io.NewSectionReader(src, part.Offset, part.Size), part.Size); err != nil {
			abort()
			return errors.NewTransferError(fmt.Sprintf("failed to append part %d", part.Index+1), err)
		}

		transferred += part.Size
		if onProgress != nil {
			onProgress(transferred, info.Size())
		}
	}

	// Finalize
	if err := out.Sync(); err != nil {
		abort()
		return errors.NewTransferError("failed to flush upload session", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(session)
		return errors.NewTransferError("failed to close upload session", err)
	}
	if err := os.Rename(session, target); err != nil {
		os.Remove(session)
		return errors.NewTransferError("failed to finalize upload session", err)
	}

	return nil
}

// Download copies a stored file to a local destination
func (l *Local) Download(ctx context.Context, remotePath, localPath string) error {
	source, err := l.resolve(remotePath)
	if err != nil {
		return err
	}

	src, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewIOError("failed to open stored file", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.NewIOError("failed to create destination directory", err)
	}

	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewIOError("failed to create destination file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.NewIOError("failed to copy stored file", err)
	}

	return nil
}

// Delete removes a stored file
func (l *Local) Delete(ctx context.Context, remotePath string) error {
	target, err := l.resolve(remotePath)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("object not found: %s", remotePath), err)
		}
		return errors.NewIOError("failed to delete stored file", err)
	}

	return nil
}

// List returns the entries directly under the given path
func (l *Local) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	target, err := l.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError("failed to list directory", err)
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:     entry.Name(),
			Path:     path.Join(dir, entry.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
			IsDir:    entry.IsDir(),
		})
	}

	return objects, nil
}

// Exists reports whether a stored file exists
func (l *Local) Exists(ctx context.Context, remotePath string) (bool, error) {
	target, err := l.resolve(remotePath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewIOError("failed to stat stored file", err)
	}

	return true, nil
}

// GetMetadata returns size, modification time and content checksum of a
// stored file, or nil when it does not exist
func (l *Local) GetMetadata(ctx context.Context, remotePath string) (*ObjectMetadata, error) {
	target, err := l.resolve(remotePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError("failed to stat stored file", err)
	}

	checksum, err := fileChecksum(target)
	if err != nil {
		return nil, err
	}

	return &ObjectMetadata{
		Name:     filepath.Base(target),
		Size:     info.Size(),
		Modified: info.ModTime(),
		Checksum: checksum,
	}, nil
}

// GetDownloadURL returns a file:// URL; expiry is meaningless locally
func (l *Local) GetDownloadURL(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	target, err := l.resolve(remotePath)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.NewIOError("failed to resolve absolute path", err)
	}

	return "file://" + filepath.ToSlash(abs), nil
}

// GetStorageInfo reports the total bytes stored under the base path
func (l *Local) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	var used int64
	err := filepath.WalkDir(l.cfg.BasePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			used += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError("failed to measure storage usage", err)
	}

	return &StorageInfo{Used: used}, nil
}

// SettingsSpec returns the local adapter settings schema
func (l *Local) SettingsSpec() []SettingField {
	return []SettingField{
		{Key: "base_path", Label: "Base directory", Type: "string", Required: true},
		{Key: "permissions", Label: "Directory permissions (octal)", Type: "string", Default: "0700"},
	}
}

// ApplySettings applies settings values to the adapter
func (l *Local) ApplySettings(values map[string]string) error {
	if v, ok := values["base_path"]; ok {
		l.cfg.BasePath = v
	}
	if v, ok := values["permissions"]; ok && v != "" {
		mode, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return errors.NewValidationError("permissions must be an octal mode", err)
		}
		l.cfg.Permissions = os.FileMode(mode)
	}
	return nil
}

// fileChecksum computes the SHA-256 hex digest of a file's contents
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIOError("failed to open file for checksum", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.NewIOError("failed to hash file", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
