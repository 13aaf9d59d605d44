package archive

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// Payload names one file to embed in the container. Name is the entry name
// inside the container, Path the file on disk.
type Payload struct {
	Name string
	Path string
}

// Builder assembles backup containers.
type Builder struct {
	logger *logging.Logger
}

// NewBuilder creates a container builder.
func NewBuilder(logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Builder{logger: logger}
}

// Build writes the payload entries followed by the manifest as the final
// entry, computing each entry's sha256 while it streams in. The finished
// container is re-opened read-only and verified entry by entry; a
// container that fails verification is removed so a broken artifact never
// survives. The returned manifest is the one embedded in the container.
func (b *Builder) Build(ctx context.Context, containerPath string, payloads []Payload, meta Manifest) (*Manifest, error) {
	start := time.Now()

	manifest := meta
	manifest.Version = ManifestVersion
	manifest.CreatedAt = time.Now().UTC()
	manifest.Files = make([]EntryInfo, 0, len(payloads))

	f, err := os.Create(containerPath)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to create container %s", containerPath), err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	buildErr := func() error {
		for _, payload := range payloads {
			if err := ctx.Err(); err != nil {
				return errors.New(errors.ErrorTypeInterruption, "container build canceled", err)
			}
			entry, err := b.addPayload(zw, payload)
			if err != nil {
				return err
			}
			manifest.Files = append(manifest.Files, *entry)
		}
		manifest.FileCount = len(manifest.Files)

		data, err := manifest.ToJSON()
		if err != nil {
			return errors.NewIOError("failed to encode manifest", err)
		}
		w, err := zw.Create(ManifestName)
		if err != nil {
			return errors.NewIOError("failed to create manifest entry", err)
		}
		if _, err := w.Write(data); err != nil {
			return errors.NewIOError("failed to write manifest entry", err)
		}
		return nil
	}()

	if err := zw.Close(); err != nil && buildErr == nil {
		buildErr = errors.NewIOError("failed to finalize container", err)
	}
	if err := f.Close(); err != nil && buildErr == nil {
		buildErr = errors.NewIOError("failed to close container", err)
	}
	if buildErr != nil {
		os.Remove(containerPath)
		return nil, buildErr
	}

	if err := b.verifyBuilt(containerPath); err != nil {
		os.Remove(containerPath)
		return nil, err
	}

	info, err := os.Stat(containerPath)
	if err != nil {
		return nil, errors.NewIOError("failed to stat container", err)
	}
	b.logger.LogArchiveBuild(containerPath, manifest.FileCount, info.Size(), time.Since(start), nil)

	return &manifest, nil
}

func (b *Builder) addPayload(zw *zip.Writer, payload Payload) (*EntryInfo, error) {
	src, err := os.Open(payload.Path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to open payload %s", payload.Path), err)
	}
	defer src.Close()

	w, err := zw.Create(payload.Name)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to create container entry %s", payload.Name), err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(w, hasher), src)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to write container entry %s", payload.Name), err)
	}

	return &EntryInfo{
		Name:     payload.Name,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// verifyBuilt re-opens the container read-only and proves every entry is
// structurally readable and the manifest parses. Reading to EOF exercises
// each entry's CRC.
func (b *Builder) verifyBuilt(containerPath string) error {
	r, err := zip.OpenReader(containerPath)
	if err != nil {
		return errors.NewIntegrityError("built container is not readable", err)
	}
	defer r.Close()

	manifestSeen := false
	for _, entry := range r.File {
		rc, err := entry.Open()
		if err != nil {
			return errors.NewIntegrityError(fmt.Sprintf("container entry %s is not readable", entry.Name), err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return errors.NewIntegrityError(fmt.Sprintf("container entry %s failed verification", entry.Name), err)
		}
		if entry.Name == ManifestName {
			manifestSeen = true
		}
	}
	if !manifestSeen {
		return errors.NewIntegrityError("built container has no manifest entry", nil)
	}

	if _, err := ReadManifest(containerPath); err != nil {
		return err
	}
	return nil
}

// Verify is the manifest gate every restore and migration passes first:
// the container must open as a zip and carry a parseable, schema-valid
// manifest. Nothing is extracted here.
func Verify(containerPath string) error {
	manifest, err := ReadManifest(containerPath)
	if err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return errors.NewIntegrityError("container manifest is invalid", err)
	}
	return nil
}

// ReadManifest extracts and parses the manifest without touching any other
// entry.
func ReadManifest(containerPath string) (*Manifest, error) {
	r, err := zip.OpenReader(containerPath)
	if err != nil {
		return nil, errors.NewIntegrityError(fmt.Sprintf("%s is not a readable container", containerPath), err)
	}
	defer r.Close()

	for _, entry := range r.File {
		if entry.Name != ManifestName {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, errors.NewIntegrityError("failed to open manifest entry", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.NewIntegrityError("failed to read manifest entry", err)
		}

		manifest := &Manifest{}
		if err := manifest.FromJSON(data); err != nil {
			return nil, errors.NewIntegrityError("manifest entry is not valid JSON", err)
		}
		if err := manifest.Validate(); err != nil {
			return nil, errors.NewIntegrityError("manifest entry is invalid", err)
		}
		return manifest, nil
	}

	return nil, errors.NewIntegrityError(fmt.Sprintf("container %s has no manifest entry", containerPath), nil)
}
