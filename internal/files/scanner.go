package files

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// Entry is one file selected for archiving. RelPath is slash-separated and
// relative to the site root, which is also the name the file gets inside
// the archive.
type Entry struct {
	RelPath string
	Size    int64
	ModTime time.Time
}

// FileSet is the result of a scan: the ordered entry list plus the total
// payload size used for pre-archive ceiling checks.
type FileSet struct {
	Root      string
	Entries   []Entry
	TotalSize int64
}

// coreDirs and coreFiles make up the platform core deny list. Core ships
// with every WordPress install and is restorable from upstream, so backups
// skip it unless IncludeCore is set.
var coreDirs = map[string]bool{
	"wp-admin":    true,
	"wp-includes": true,
}

var coreFiles = map[string]bool{
	"index.php":            true,
	"license.txt":          true,
	"readme.html":          true,
	"wp-activate.php":      true,
	"wp-blog-header.php":   true,
	"wp-comments-post.php": true,
	"wp-config-sample.php": true,
	"wp-cron.php":          true,
	"wp-links-opml.php":    true,
	"wp-load.php":          true,
	"wp-login.php":         true,
	"wp-mail.php":          true,
	"wp-settings.php":      true,
	"wp-signup.php":        true,
	"wp-trackback.php":     true,
	"xmlrpc.php":           true,
}

// sensitiveFiles hold live credentials and are never swept into the file
// payload. They are captured separately as sanitized container entries and
// staged (not overwritten) on restore.
var sensitiveFiles = map[string]bool{
	"wp-config.php": true,
	".htaccess":     true,
}

// SensitiveNames lists the credential-bearing files that are captured as
// individual container entries instead of being swept into the file
// payload.
func SensitiveNames() []string {
	names := make([]string, 0, len(sensitiveFiles))
	for name := range sensitiveFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScanConfig controls which files a scan selects.
type ScanConfig struct {
	// Root is the absolute site root directory.
	Root string
	// Roots are site-root-relative directories to walk. Empty means the
	// whole site root.
	Roots []string
	// ExcludePatterns are names, globs, or root-relative path prefixes to
	// skip (VCS dirs, caches, logs).
	ExcludePatterns []string
	// SkipPaths are root-relative subtrees always skipped, e.g. the backup
	// output directory itself.
	SkipPaths []string
	// MaxFileSize skips individual files larger than this. Zero means no
	// limit.
	MaxFileSize int64
	// IncludeCore also sweeps platform core directories and files.
	IncludeCore bool
}

// Scanner walks the site tree and selects the files worth backing up.
type Scanner struct {
	config ScanConfig
	logger *logging.Logger
}

// NewScanner creates a scanner for the given configuration.
func NewScanner(config ScanConfig, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if len(config.Roots) == 0 {
		config.Roots = []string{"."}
	}
	return &Scanner{config: config, logger: logger}
}

// Scan walks the configured roots and returns the selected entries sorted
// by relative path. Deterministic ordering is what makes chunked archive
// runs line up with one-shot runs.
func (s *Scanner) Scan() (*FileSet, error) {
	root := filepath.Clean(s.config.Root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("site root %s is not accessible", root), err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError(fmt.Sprintf("site root %s is not a directory", root), nil)
	}

	set := &FileSet{Root: root}
	seen := make(map[string]bool)

	for _, sub := range s.config.Roots {
		walkRoot := filepath.Join(root, filepath.FromSlash(sub))
		if !strings.HasPrefix(filepath.Clean(walkRoot)+string(filepath.Separator), root+string(filepath.Separator)) &&
			filepath.Clean(walkRoot) != root {
			return nil, errors.NewValidationError(fmt.Sprintf("file root %s escapes the site root", sub), nil)
		}
		if _, err := os.Stat(walkRoot); err != nil {
			s.logger.WithField("root", sub).Warn("File root not found, skipping")
			continue
		}

		err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.WithError(err).WithField("path", p).Warn("Skipping unreadable path")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}

			if d.IsDir() {
				if s.skipDir(rel) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if s.skipFile(rel) || seen[rel] {
				return nil
			}

			fi, statErr := d.Info()
			if statErr != nil {
				s.logger.WithError(statErr).WithField("path", rel).Warn("Skipping unreadable file")
				return nil
			}
			if s.config.MaxFileSize > 0 && fi.Size() > s.config.MaxFileSize {
				s.logger.WithFields(map[string]interface{}{
					"path": rel,
					"size": fi.Size(),
				}).Warn("Skipping file above size limit")
				return nil
			}

			seen[rel] = true
			set.Entries = append(set.Entries, Entry{RelPath: rel, Size: fi.Size(), ModTime: fi.ModTime()})
			set.TotalSize += fi.Size()
			return nil
		})
		if err != nil {
			return nil, errors.NewIOError("file scan failed", err)
		}
	}

	sort.Slice(set.Entries, func(i, j int) bool {
		return set.Entries[i].RelPath < set.Entries[j].RelPath
	})
	return set, nil
}

func (s *Scanner) skipDir(rel string) bool {
	if !s.config.IncludeCore && coreDirs[rel] {
		return true
	}
	for _, skip := range s.config.SkipPaths {
		if rel == skip || strings.HasPrefix(rel, skip+"/") {
			return true
		}
	}
	return s.matchesExclude(rel)
}

func (s *Scanner) skipFile(rel string) bool {
	if sensitiveFiles[rel] {
		return true
	}
	if !s.config.IncludeCore && coreFiles[rel] {
		return true
	}
	for _, skip := range s.config.SkipPaths {
		if rel == skip || strings.HasPrefix(rel, skip+"/") {
			return true
		}
	}
	return s.matchesExclude(rel)
}

// matchesExclude applies exclusion patterns: patterns with a slash match
// against the root-relative path (exact, prefix, or glob), plain patterns
// against the base name (exact or glob).
func (s *Scanner) matchesExclude(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range s.config.ExcludePatterns {
		if strings.ContainsRune(pattern, '/') {
			if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
				return true
			}
			if ok, _ := path.Match(pattern, rel); ok {
				return true
			}
		} else {
			if base == pattern {
				return true
			}
			if ok, _ := path.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}
