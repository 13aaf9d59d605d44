// Package restore applies a backup container to a live site. Every run is
// gated on the container's manifest: no manifest, no restore. Work happens
// in an isolated temp directory that is removed on every exit path, and a
// failed stage aborts the whole operation rather than reporting partial
// success.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sitevault/internal/archive"
	"sitevault/internal/dump"
	"sitevault/internal/errors"
	"sitevault/internal/files"
	"sitevault/internal/logging"
)

// Options select what a restore applies and where.
type Options struct {
	// ContainerPath is the backup container to restore from.
	ContainerPath string
	// Database replays the dump payload into the connected database.
	Database bool
	// Files extracts the file payload over TargetRoot.
	Files bool
	// ConfigFiles stages the captured config entries next to their live
	// counterparts instead of overwriting them.
	ConfigFiles bool
	// TargetRoot is the live site root. Required for Files/ConfigFiles.
	TargetRoot string
	// Policy controls how statement failures are handled during replay.
	Policy dump.ReplayPolicy
}

// Summary reports what a restore applied.
type Summary struct {
	Manifest         *archive.Manifest `json:"manifest"`
	DatabaseRestored bool              `json:"database_restored"`
	Replay           *dump.ReplayStats `json:"replay,omitempty"`
	FilesRestored    int               `json:"files_restored"`
	ConfigStaged     []string          `json:"config_staged,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Engine restores backup containers.
type Engine struct {
	restorer *dump.Restorer
	version  string
	logger   *logging.Logger
}

// NewEngine creates a restore engine. restorer may be nil when database
// restores are never requested. version is this build's version, used for
// compatibility warnings against the container's manifest.
func NewEngine(restorer *dump.Restorer, version string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Engine{restorer: restorer, version: version, logger: logger}
}

// Restore verifies the container and applies the requested stages. Any
// stage failure aborts the whole run with its cause; the temp extraction
// directory is removed on every path.
//
// ContainerPath may also name a part index (.parts.json); the parts are
// then joined into a temporary container and restored from there.
func (e *Engine) Restore(ctx context.Context, opts Options) (*Summary, error) {
	if err := e.validate(opts); err != nil {
		return nil, err
	}

	source := opts.ContainerPath
	if strings.HasSuffix(source, archive.PartIndexSuffix) {
		joined, cleanup, err := joinParts(source)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		opts.ContainerPath = joined
	}

	// The manifest gate: an unreadable or manifest-less container aborts
	// before anything is touched.
	if err := archive.Verify(opts.ContainerPath); err != nil {
		return nil, err
	}
	manifest, err := archive.ReadManifest(opts.ContainerPath)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(opts.ContainerPath), ".restore-")
	if err != nil {
		return nil, errors.NewIOError("failed to create restore staging directory", err)
	}
	defer os.RemoveAll(tmpDir)

	summary := &Summary{
		Manifest: manifest,
		Warnings: e.compatibilityWarnings(manifest),
	}

	if opts.Database {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "restore canceled", err)
		}
		if err := e.restoreDatabase(ctx, opts, manifest, tmpDir, summary); err != nil {
			return nil, err
		}
	}

	if opts.Files {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "restore canceled", err)
		}
		if err := e.restoreFiles(ctx, opts, manifest, tmpDir, summary); err != nil {
			return nil, err
		}
	}

	if opts.ConfigFiles {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "restore canceled", err)
		}
		if err := e.stageConfigFiles(ctx, opts, manifest, summary); err != nil {
			return nil, err
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"operation":     "restore",
		"container":     source,
		"database":      summary.DatabaseRestored,
		"files":         summary.FilesRestored,
		"config_staged": len(summary.ConfigStaged),
	}).Info("Restore completed")

	return summary, nil
}

// joinParts reassembles a split container from its part index into a
// temporary sibling file and returns its path with a cleanup func.
func joinParts(indexPath string) (string, func(), error) {
	tmp, err := os.CreateTemp(filepath.Dir(indexPath), ".join-*.zip")
	if err != nil {
		return "", nil, errors.NewIOError("failed to create staging file for joined container", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := archive.Join(indexPath, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", nil, err
	}
	return tmpPath, func() { os.Remove(tmpPath) }, nil
}

func (e *Engine) validate(opts Options) error {
	if opts.ContainerPath == "" {
		return errors.NewValidationError("container path cannot be empty", nil)
	}
	if !opts.Database && !opts.Files && !opts.ConfigFiles {
		return errors.NewValidationError("nothing to restore: enable at least one of database, files, or config files", nil)
	}
	if (opts.Files || opts.ConfigFiles) && opts.TargetRoot == "" {
		return errors.NewValidationError("target root is required to restore files", nil)
	}
	if opts.Database && e.restorer == nil {
		return errors.NewValidationError("no database connection available for database restore", nil)
	}
	return nil
}

// compatibilityWarnings flags manifests written by a different build or
// platform version. Mismatches are informational: restore proceeds.
func (e *Engine) compatibilityWarnings(m *archive.Manifest) []string {
	var warnings []string
	if e.version != "" && m.GeneratorVersion != "" && m.GeneratorVersion != e.version {
		warnings = append(warnings, fmt.Sprintf(
			"container was created by version %s, this is %s", m.GeneratorVersion, e.version))
	}
	if m.PlatformVersion != "" {
		warnings = append(warnings, fmt.Sprintf(
			"container captured platform version %s; verify it matches the target site", m.PlatformVersion))
	}
	for _, w := range warnings {
		e.logger.Warn(w)
	}
	return warnings
}

func (e *Engine) restoreDatabase(ctx context.Context, opts Options, manifest *archive.Manifest, tmpDir string, summary *Summary) error {
	entry := manifest.EntryWithPrefix("database.sql")
	if entry == nil {
		return errors.NewIntegrityError("container has no database payload", nil)
	}

	dumpPath := filepath.Join(tmpDir, entry.Name)
	if err := archive.ExtractEntry(ctx, opts.ContainerPath, entry.Name, dumpPath); err != nil {
		return err
	}
	if entry.Checksum != "" {
		if err := archive.VerifyChecksum(dumpPath, entry.Checksum); err != nil {
			return err
		}
	}

	stats, err := e.restorer.RestoreFile(ctx, dumpPath, dump.RestoreOptions{Policy: opts.Policy})
	if err != nil {
		return err
	}
	summary.DatabaseRestored = true
	summary.Replay = stats
	return nil
}

func (e *Engine) restoreFiles(ctx context.Context, opts Options, manifest *archive.Manifest, tmpDir string, summary *Summary) error {
	entry := manifest.Entry("files.zip")
	if entry == nil {
		return errors.NewIntegrityError("container has no file payload", nil)
	}

	innerPath := filepath.Join(tmpDir, entry.Name)
	if err := archive.ExtractEntry(ctx, opts.ContainerPath, entry.Name, innerPath); err != nil {
		return err
	}
	if entry.Checksum != "" {
		if err := archive.VerifyChecksum(innerPath, entry.Checksum); err != nil {
			return err
		}
	}

	count, err := archive.Extract(ctx, innerPath, opts.TargetRoot)
	if err != nil {
		return err
	}
	summary.FilesRestored = count
	return nil
}

// stageConfigFiles writes the captured config entries as -staged siblings
// so an operator reconciles credentials by hand; live config is never
// overwritten.
func (e *Engine) stageConfigFiles(ctx context.Context, opts Options, manifest *archive.Manifest, summary *Summary) error {
	staged := 0
	for _, name := range files.SensitiveNames() {
		entry := manifest.Entry(name)
		if entry == nil {
			continue
		}

		dest := filepath.Join(opts.TargetRoot, StagedName(name))
		if err := archive.ExtractEntry(ctx, opts.ContainerPath, entry.Name, dest); err != nil {
			return err
		}
		if err := os.Chmod(dest, 0600); err != nil {
			return errors.NewIOError("failed to restrict staged config permissions", err)
		}
		summary.ConfigStaged = append(summary.ConfigStaged, dest)
		staged++
	}

	if staged == 0 {
		warning := "container holds no config entries to stage"
		summary.Warnings = append(summary.Warnings, warning)
		e.logger.Warn(warning)
	}
	return nil
}

// StagedName derives the sibling name a config entry is staged under:
// wp-config.php becomes wp-config-staged.php, .htaccess becomes
// .htaccess-staged.
func StagedName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name + "-staged"
	}
	return stem + "-staged" + ext
}
