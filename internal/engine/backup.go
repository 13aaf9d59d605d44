package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sitevault/internal/archive"
	"sitevault/internal/dump"
	"sitevault/internal/errors"
	"sitevault/internal/files"
	"sitevault/internal/job"
	"sitevault/internal/replace"
	"sitevault/internal/storage"
)

// BackupOptions select what one backup run captures and where it goes.
type BackupOptions struct {
	// Kind is full, database, or files. Empty defaults to full.
	Kind job.Kind
	// Database and Files override the payload selection the kind implies.
	// Both false means "whatever the kind says".
	Database bool
	Files    bool
	// Destinations are storage kind names. Empty falls back to the
	// configured destination list, then to local.
	Destinations []string
	// Compression overrides the configured dump compression.
	Compression string
	// Schedule names the originating schedule. It becomes the container
	// name prefix and the serialization key, so retention and the
	// single-writer guarantee are scoped per schedule.
	Schedule string
}

func (o *BackupOptions) normalize() error {
	if o.Kind == "" {
		o.Kind = job.KindFull
	}
	switch o.Kind {
	case job.KindFull, job.KindDatabase, job.KindFiles:
	default:
		return errors.NewValidationError(fmt.Sprintf("%s is not a backup kind", o.Kind), nil)
	}

	if !o.Database && !o.Files {
		o.Database = o.Kind == job.KindFull || o.Kind == job.KindDatabase
		o.Files = o.Kind == job.KindFull || o.Kind == job.KindFiles
	}
	if !o.Database && !o.Files {
		return errors.NewValidationError("backup selects no payload: enable database or files", nil)
	}
	return nil
}

// CreateBackup runs the whole backup pipeline as one tracked job: size
// estimate, database dump, file archive, sanitized config capture,
// container build and verification, then upload to every destination.
// The returned job carries the result payload; on failure it is the failed
// job record alongside the cause.
func (s *Service) CreateBackup(ctx context.Context, opts BackupOptions) (*job.Job, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	created, err := s.jobs.Create(ctx, opts.Kind)
	if err != nil {
		return nil, err
	}

	unlock := s.lockTarget(opts.Schedule)
	defer unlock()

	if err := s.jobs.Start(ctx, created.ID); err != nil {
		return created, err
	}

	result, err := s.runBackup(ctx, created.ID, opts)
	if err != nil {
		return s.failJob(ctx, created.ID, err), err
	}

	if err := s.jobs.Complete(ctx, created.ID, result); err != nil {
		return created, err
	}
	return s.jobs.Get(ctx, created.ID)
}

func (s *Service) runBackup(ctx context.Context, jobID string, opts BackupOptions) (*job.Result, error) {
	start := time.Now()

	compression, err := s.resolveCompression(opts.Compression)
	if err != nil {
		return nil, err
	}
	adapters, err := s.resolveDestinations(opts.Destinations)
	if err != nil {
		return nil, err
	}
	if opts.Database && s.db == nil {
		return nil, errors.NewValidationError("a database backup requires a database connection", nil)
	}

	outputDir := s.cfg.Backup.OutputDir
	if err := os.MkdirAll(outputDir, 0o700); err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to create backup output dir %s", outputDir), err)
	}

	// Size ceiling is enforced up front from the scan totals and the
	// schema's data size, so an oversized backup is rejected before any
	// dump or archive work is spent on it.
	s.progress(ctx, jobID, 5, "estimating backup size")
	fileSet, err := s.estimateAndScan(ctx, opts)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(outputDir, ".backup-")
	if err != nil {
		return nil, errors.NewIOError("failed to create backup staging directory", err)
	}
	defer os.RemoveAll(staging)

	var payloads []archive.Payload

	if opts.Database {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "backup canceled", err)
		}
		payload, err := s.stageDatabase(ctx, jobID, staging, compression)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, *payload)
	}

	if opts.Files {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ErrorTypeInterruption, "backup canceled", err)
		}
		filePayloads, err := s.stageFiles(ctx, jobID, staging, fileSet)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, filePayloads...)
	}

	s.progress(ctx, jobID, 70, "building backup container")
	prefix := opts.Schedule
	if prefix == "" {
		prefix = s.cfg.Backup.NamePrefix
	}
	name := job.GenerateBackupName(prefix, opts.Kind)
	containerPath := filepath.Join(outputDir, name)

	builder := archive.NewBuilder(s.logger)
	if _, err := builder.Build(ctx, containerPath, payloads, s.manifestMeta(ctx, opts, compression)); err != nil {
		return nil, err
	}

	info, err := os.Stat(containerPath)
	if err != nil {
		return nil, errors.NewIOError("failed to stat backup container", err)
	}
	if max := s.cfg.Backup.MaxArchiveSize; max > 0 && info.Size() > max {
		os.Remove(containerPath)
		return nil, errors.NewSizeLimitError(
			fmt.Sprintf("container %s is %d bytes, above the %d byte ceiling", name, info.Size(), max), nil)
	}

	s.progress(ctx, jobID, 80, "computing container checksum")
	checksum, err := archive.Checksum(containerPath)
	if err != nil {
		return nil, err
	}

	uploads := []string{containerPath}
	if split := s.cfg.Backup.SplitSize; split > 0 && info.Size() > split {
		parts, err := archive.Split(containerPath, split)
		if err != nil {
			return nil, err
		}
		uploads = append(parts, containerPath+archive.PartIndexSuffix)
	}

	destinations := s.uploadAll(ctx, jobID, adapters, uploads)

	result := &job.Result{
		OutputPath:   containerPath,
		OutputName:   name,
		Size:         info.Size(),
		Checksum:     checksum,
		Destinations: destinations,
	}

	s.logger.WithFields(map[string]interface{}{
		"operation": "backup",
		"job":       jobID,
		"container": name,
		"size":      info.Size(),
		"duration":  time.Since(start).String(),
	}).Info("Backup completed")

	return result, nil
}

// estimateAndScan computes the pre-archive size estimate and returns the
// scanned file set when files are in scope, so the archive stage does not
// walk the tree twice.
func (s *Service) estimateAndScan(ctx context.Context, opts BackupOptions) (*files.FileSet, error) {
	var estimate int64
	var fileSet *files.FileSet

	if opts.Files {
		set, err := s.newScanner().Scan()
		if err != nil {
			return nil, err
		}
		fileSet = set
		estimate += set.TotalSize
	}

	if opts.Database {
		size, err := dump.NewInspector(s.db, s.cfg.Database.Database).EstimateDataSize(ctx)
		if err != nil {
			return nil, err
		}
		estimate += size
	}

	if max := s.cfg.Backup.MaxArchiveSize; max > 0 && estimate > max {
		return nil, errors.NewSizeLimitError(
			fmt.Sprintf("estimated backup size %d bytes is above the %d byte ceiling", estimate, max), nil)
	}
	return fileSet, nil
}

func (s *Service) newScanner() *files.Scanner {
	cfg := files.ScanConfig{
		Root:            s.cfg.Site.RootDir,
		Roots:           s.cfg.Backup.FileRoots,
		ExcludePatterns: s.cfg.Backup.ExcludePatterns,
		MaxFileSize:     s.cfg.Backup.MaxFileSize,
		IncludeCore:     s.cfg.Backup.IncludeCore,
	}

	// The backup output directory must never back itself up.
	if rel, err := filepath.Rel(s.cfg.Site.RootDir, s.cfg.Backup.OutputDir); err == nil &&
		rel != "." && !strings.HasPrefix(rel, "..") {
		cfg.SkipPaths = append(cfg.SkipPaths, filepath.ToSlash(rel))
	}

	return files.NewScanner(cfg, s.logger)
}

// stageDatabase dumps the schema into the staging dir and returns its
// payload entry.
func (s *Service) stageDatabase(ctx context.Context, jobID, staging string, compression dump.Compression) (*archive.Payload, error) {
	s.progress(ctx, jobID, 15, "dumping database")

	dumpName := dump.FileName(compression)
	dumpPath := filepath.Join(staging, dumpName)

	dumper := dump.NewDumper(s.db, s.cfg.Database.Database, "sitevault", s.version, s.logger)
	stats, err := dumper.WriteFile(ctx, dumpPath, compression, dump.Options{
		ExcludeTables: s.cfg.Backup.ExcludeTables,
		BatchSize:     s.cfg.Backup.BatchSize,
		OnTable: func(table string, index, total int) {
			s.progress(ctx, jobID, 15+25*index/total, fmt.Sprintf("dumping table %s", table))
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"job":    jobID,
		"tables": stats.Tables,
		"rows":   stats.Rows,
		"bytes":  stats.Bytes,
	}).Info("Database dump finished")

	return &archive.Payload{Name: dumpName, Path: dumpPath}, nil
}

// stageFiles archives the scanned tree into files.zip and captures
// sanitized copies of the credential-bearing config files as separate
// payload entries.
func (s *Service) stageFiles(ctx context.Context, jobID, staging string, fileSet *files.FileSet) ([]archive.Payload, error) {
	s.progress(ctx, jobID, 45, "archiving site files")

	zipPath := filepath.Join(staging, "files.zip")
	archiver := files.NewArchiver(files.ArchiveConfig{ReopenEvery: s.cfg.Backup.ArchiveReopenEvery}, s.logger)

	if chunkSize := s.cfg.Backup.FilesPerChunk; chunkSize > 0 {
		totalChunks := (len(fileSet.Entries) + chunkSize - 1) / chunkSize
		if totalChunks == 0 {
			totalChunks = 1
		}
		for chunk := 0; ; chunk++ {
			if err := ctx.Err(); err != nil {
				return nil, errors.New(errors.ErrorTypeInterruption, "backup canceled", err)
			}
			more, err := archiver.ArchiveChunk(ctx, fileSet, zipPath, chunk, chunkSize)
			if err != nil {
				return nil, err
			}
			s.progress(ctx, jobID, 45+20*(chunk+1)/totalChunks,
				fmt.Sprintf("archiving site files (chunk %d/%d)", chunk+1, totalChunks))
			if !more {
				break
			}
		}
	} else {
		if _, err := archiver.Archive(ctx, fileSet, zipPath); err != nil {
			return nil, err
		}
	}

	payloads := []archive.Payload{{Name: "files.zip", Path: zipPath}}

	for _, name := range files.SensitiveNames() {
		src := filepath.Join(s.cfg.Site.RootDir, name)
		data, err := os.ReadFile(src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("failed to read config file %s", name), err)
		}

		stagedPath := filepath.Join(staging, name)
		if err := os.WriteFile(stagedPath, SanitizeConfig(name, data), 0o600); err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("failed to stage config file %s", name), err)
		}
		payloads = append(payloads, archive.Payload{Name: name, Path: stagedPath})
	}

	return payloads, nil
}

func (s *Service) manifestMeta(ctx context.Context, opts BackupOptions, compression dump.Compression) archive.Manifest {
	return archive.Manifest{
		Generator:        "sitevault",
		GeneratorVersion: s.version,
		Platform:         "wordpress",
		SiteURL:          s.siteURL(ctx),
		TablePrefix:      s.cfg.Database.TablePrefix,
		Options: map[string]interface{}{
			"kind":        string(opts.Kind),
			"database":    opts.Database,
			"files":       opts.Files,
			"compression": string(compression),
		},
	}
}

// siteURL prefers the configured URL and falls back to autodetection from
// the options table. A failed detection stamps an empty URL rather than
// failing the backup.
func (s *Service) siteURL(ctx context.Context) string {
	if s.cfg.Site.URL != "" {
		return s.cfg.Site.URL
	}
	if s.db == nil {
		return ""
	}

	detected, err := s.replaceEngine().DetectSiteURL(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Site URL autodetection failed")
		return ""
	}
	return detected
}

func (s *Service) replaceEngine() *replace.Engine {
	return replace.NewEngine(s.db, s.cfg.Database.Database, s.cfg.Database.TablePrefix, s.logger)
}

func (s *Service) resolveCompression(override string) (dump.Compression, error) {
	name := override
	if name == "" {
		name = s.cfg.Backup.Compression
	}
	compression, err := dump.ParseCompression(name)
	if err != nil {
		return "", errors.NewValidationError(err.Error(), nil)
	}
	return compression, nil
}

func (s *Service) resolveDestinations(names []string) ([]storage.Adapter, error) {
	if len(names) == 0 {
		names = s.cfg.Storage.Destinations
	}
	if len(names) == 0 {
		names = []string{string(storage.KindLocal)}
	}
	return s.registry.Resolve(names)
}

// uploadAll ships every produced file to every destination. A failing
// destination is recorded on its result entry and never aborts the others.
func (s *Service) uploadAll(ctx context.Context, jobID string, adapters []storage.Adapter, paths []string) []job.DestinationResult {
	results := make([]job.DestinationResult, 0, len(adapters))
	remoteEntry := filepath.Base(paths[len(paths)-1])

	for i, adapter := range adapters {
		s.progress(ctx, jobID, 85+10*i/len(adapters),
			fmt.Sprintf("uploading to %s", adapter.Name()))

		dest := job.DestinationResult{Kind: string(adapter.Kind()), RemotePath: remoteEntry}
		if err := s.uploadTo(ctx, adapter, paths); err != nil {
			dest.Error = err.Error()
		}
		results = append(results, dest)
	}
	return results
}

func (s *Service) uploadTo(ctx context.Context, adapter storage.Adapter, paths []string) error {
	// The local destination defaults to the backup output dir itself; the
	// container already lives there, so a copy onto itself is skipped.
	if s.selfHostedLocal(adapter) {
		return nil
	}

	if err := adapter.Connect(ctx); err != nil {
		return errors.NewTransferError(fmt.Sprintf("failed to connect to %s", adapter.Name()), err)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewIOError(fmt.Sprintf("failed to stat upload source %s", path), err)
		}

		remote := filepath.Base(path)
		uploadStart := time.Now()
		if info.Size() >= s.cfg.Backup.UploadThreshold {
			err = adapter.UploadChunked(ctx, path, remote, s.cfg.Backup.UploadChunkSize, nil)
		} else {
			err = adapter.Upload(ctx, path, remote)
		}
		s.logger.LogUpload(adapter.Name(), remote, info.Size(), time.Since(uploadStart), err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) selfHostedLocal(adapter storage.Adapter) bool {
	return adapter.Kind() == storage.KindLocal &&
		filepath.Clean(s.cfg.Storage.Local.BasePath) == filepath.Clean(s.cfg.Backup.OutputDir)
}
