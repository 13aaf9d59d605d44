package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sitevault/internal/errors"
)

// Extract unpacks every entry except the manifest into destDir, preserving
// entry modes. Entry names are confined to destDir; a name that would
// escape it aborts the extraction.
func Extract(ctx context.Context, containerPath, destDir string) (int, error) {
	r, err := zip.OpenReader(containerPath)
	if err != nil {
		return 0, errors.NewIntegrityError(fmt.Sprintf("%s is not a readable container", containerPath), err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, errors.NewIOError(fmt.Sprintf("failed to create extraction dir %s", destDir), err)
	}

	extracted := 0
	for _, entry := range r.File {
		if err := ctx.Err(); err != nil {
			return extracted, errors.New(errors.ErrorTypeInterruption, "extraction canceled", err)
		}
		if entry.Name == ManifestName {
			continue
		}
		if err := extractEntry(entry, destDir); err != nil {
			return extracted, err
		}
		if !entry.FileInfo().IsDir() {
			extracted++
		}
	}
	return extracted, nil
}

// ExtractEntry unpacks a single named entry to destPath.
func ExtractEntry(ctx context.Context, containerPath, entryName, destPath string) error {
	if err := ctx.Err(); err != nil {
		return errors.New(errors.ErrorTypeInterruption, "extraction canceled", err)
	}

	r, err := zip.OpenReader(containerPath)
	if err != nil {
		return errors.NewIntegrityError(fmt.Sprintf("%s is not a readable container", containerPath), err)
	}
	defer r.Close()

	for _, entry := range r.File {
		if entry.Name != entryName {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return errors.NewIOError("failed to create destination dir", err)
		}
		return writeEntry(entry, destPath)
	}
	return errors.NewNotFoundError(fmt.Sprintf("container has no entry %s", entryName), nil)
}

func extractEntry(entry *zip.File, destDir string) error {
	target, err := securePath(destDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, entry.Mode().Perm()|0o700); err != nil {
			return errors.NewIOError(fmt.Sprintf("failed to create directory %s", entry.Name), err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.NewIOError(fmt.Sprintf("failed to create parent for %s", entry.Name), err)
	}
	return writeEntry(entry, target)
}

func writeEntry(entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return errors.NewIntegrityError(fmt.Sprintf("failed to open container entry %s", entry.Name), err)
	}
	defer rc.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.NewIOError(fmt.Sprintf("failed to create %s", target), err)
	}

	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return errors.NewIOError(fmt.Sprintf("failed to extract %s", entry.Name), copyErr)
	}
	if closeErr != nil {
		return errors.NewIOError(fmt.Sprintf("failed to finish %s", target), closeErr)
	}
	return nil
}

// securePath joins an entry name onto destDir and rejects names that would
// resolve outside it (zip-slip).
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	base := filepath.Clean(destDir)
	if target != base && !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", errors.NewValidationError(fmt.Sprintf("container entry %s escapes the extraction dir", name), nil)
	}
	return target, nil
}
