package job

import (
	"context"
	"sort"
	"strings"
	"time"

	"sitevault/internal/logging"
)

// BackupInfo describes one retained backup container.
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupStore lists and deletes finished backups. The orchestration layer
// implements it; deleting a backup removes it locally and from every
// destination it was uploaded to.
type BackupStore interface {
	ListBackups(ctx context.Context) ([]BackupInfo, error)
	DeleteBackup(ctx context.Context, name string) error
}

// RetentionPolicy prunes old backups down to a configured count. The most
// recent backup always survives, whatever the count says.
type RetentionPolicy struct {
	store  BackupStore
	logger *logging.Logger
}

// NewRetentionPolicy creates a policy over a backup store.
func NewRetentionPolicy(store BackupStore, logger *logging.Logger) *RetentionPolicy {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionPolicy{store: store, logger: logger}
}

// Apply keeps the `keep` newest backups whose name starts with namePrefix
// and deletes the rest, returning the names it removed. Pass an empty
// prefix to prune across all backups. Individual delete failures are
// logged and skipped; the pass keeps going.
func (p *RetentionPolicy) Apply(ctx context.Context, namePrefix string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}

	all, err := p.store.ListBackups(ctx)
	if err != nil {
		return nil, err
	}

	var matching []BackupInfo
	for _, b := range all {
		if namePrefix == "" || strings.HasPrefix(b.Name, namePrefix) {
			matching = append(matching, b)
		}
	}
	if len(matching) <= keep {
		return nil, nil
	}

	sort.Slice(matching, func(a, b int) bool {
		return matching[a].CreatedAt.After(matching[b].CreatedAt)
	})

	var deleted []string
	for _, b := range matching[keep:] {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := p.store.DeleteBackup(ctx, b.Name); err != nil {
			p.logger.WithError(err).WithField("backup", b.Name).Warn("Failed to delete expired backup")
			continue
		}
		p.logger.WithFields(map[string]interface{}{
			"operation": "retention_delete",
			"backup":    b.Name,
			"created":   b.CreatedAt.Format(time.RFC3339),
		}).Debug("Deleted expired backup")
		deleted = append(deleted, b.Name)
	}
	return deleted, nil
}
