package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sitevault/internal/archive"
	"sitevault/internal/errors"
	"sitevault/internal/job"
	"sitevault/internal/storage"
)

// ListBackups inventories the backup containers in the output directory,
// newest first. It implements job.BackupStore for the scheduler's
// retention pass.
func (s *Service) ListBackups(ctx context.Context) ([]job.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.ErrorTypeInterruption, "backup listing canceled", err)
	}

	entries, err := os.ReadDir(s.cfg.Backup.OutputDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to read backup dir %s", s.cfg.Backup.OutputDir), err)
	}

	var backups []job.BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".zip") || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.WithError(err).WithField("name", name).Warn("Skipping unreadable backup entry")
			continue
		}
		backups = append(backups, job.BackupInfo{
			Name:      name,
			Path:      filepath.Join(s.cfg.Backup.OutputDir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// DeleteBackup removes one container locally, including any split parts,
// then sweeps it from every configured destination. Remote failures are
// logged and never fail the local delete.
func (s *Service) DeleteBackup(ctx context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return errors.NewValidationError(fmt.Sprintf("invalid backup name %q", name), nil)
	}

	localPath := filepath.Join(s.cfg.Backup.OutputDir, name)
	if err := os.Remove(localPath); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("backup %s not found", name), err)
		}
		return errors.NewIOError(fmt.Sprintf("failed to delete backup %s", name), err)
	}

	// Split sidecars go with the container.
	if parts, err := filepath.Glob(localPath + ".part-*"); err == nil {
		for _, part := range parts {
			os.Remove(part)
		}
	}
	os.Remove(localPath + archive.PartIndexSuffix)

	for _, adapter := range s.registry.Configured() {
		if s.selfHostedLocal(adapter) {
			continue
		}
		if err := s.deleteRemote(ctx, adapter, name); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"adapter": adapter.Name(),
				"name":    name,
			}).Warn("Failed to delete backup from destination")
		}
	}

	s.logger.WithField("name", name).Info("Backup deleted")
	return nil
}

func (s *Service) deleteRemote(ctx context.Context, adapter storage.Adapter, name string) error {
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	exists, err := adapter.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return adapter.Delete(ctx, name)
}

// ApplyRetention keeps the N newest containers whose names start with
// prefix (empty prefix covers them all) and deletes the rest, locally and
// across destinations. Returns the deleted names.
func (s *Service) ApplyRetention(ctx context.Context, prefix string, keep int) ([]string, error) {
	return job.NewRetentionPolicy(s, s.logger).Apply(ctx, prefix, keep)
}
