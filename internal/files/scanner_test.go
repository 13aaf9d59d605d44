package files

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func relPaths(fs *FileSet) []string {
	paths := make([]string, len(fs.Entries))
	for i, e := range fs.Entries {
		paths[i] = e.RelPath
	}
	return paths
}

func newSiteTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, root, "index.php", "<?php // core loader")
	writeTestFile(t, root, "wp-config.php", "<?php define('DB_PASSWORD', 'secret');")
	writeTestFile(t, root, ".htaccess", "RewriteEngine On")
	writeTestFile(t, root, "wp-login.php", "<?php // core")
	writeTestFile(t, root, "wp-admin/admin.php", "<?php // core")
	writeTestFile(t, root, "wp-includes/functions.php", "<?php // core")
	writeTestFile(t, root, "wp-content/themes/mytheme/style.css", "body {}")
	writeTestFile(t, root, "wp-content/uploads/2026/01/photo.jpg", "jpegdata")
	writeTestFile(t, root, "wp-content/plugins/seo/seo.php", "<?php // plugin")
	return root
}

func TestScannerSkipsCoreByDefault(t *testing.T) {
	root := newSiteTree(t)

	scanner := NewScanner(ScanConfig{Root: root}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	paths := relPaths(fs)
	assert.ElementsMatch(t, []string{
		"wp-content/plugins/seo/seo.php",
		"wp-content/themes/mytheme/style.css",
		"wp-content/uploads/2026/01/photo.jpg",
	}, paths)
	assert.NotContains(t, paths, "wp-admin/admin.php")
	assert.NotContains(t, paths, "index.php")
	assert.NotContains(t, paths, "wp-login.php")
}

func TestScannerIncludeCore(t *testing.T) {
	root := newSiteTree(t)

	scanner := NewScanner(ScanConfig{Root: root, IncludeCore: true}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	paths := relPaths(fs)
	assert.Contains(t, paths, "wp-admin/admin.php")
	assert.Contains(t, paths, "wp-includes/functions.php")
	assert.Contains(t, paths, "index.php")
	// Credentials never ride along in the file payload.
	assert.NotContains(t, paths, "wp-config.php")
	assert.NotContains(t, paths, ".htaccess")
}

func TestScannerExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/uploads/keep.jpg", "data")
	writeTestFile(t, root, "wp-content/cache/page.html", "cached")
	writeTestFile(t, root, "wp-content/debug.log", "log line")
	writeTestFile(t, root, "wp-content/themes/x/node_modules/pkg/index.js", "js")
	writeTestFile(t, root, ".git/config", "[core]")

	scanner := NewScanner(ScanConfig{
		Root:            root,
		ExcludePatterns: []string{".git", "node_modules", "*.log", "wp-content/cache"},
	}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"wp-content/uploads/keep.jpg"}, relPaths(fs))
}

func TestScannerSkipPaths(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/uploads/a.jpg", "data")
	writeTestFile(t, root, "wp-content/sitevault-backups/old.zip", "zipbytes")

	scanner := NewScanner(ScanConfig{
		Root:      root,
		SkipPaths: []string{"wp-content/sitevault-backups"},
	}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"wp-content/uploads/a.jpg"}, relPaths(fs))
}

func TestScannerMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/small.txt", "tiny")
	writeTestFile(t, root, "wp-content/huge.bin", "0123456789abcdef")

	scanner := NewScanner(ScanConfig{Root: root, MaxFileSize: 8}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"wp-content/small.txt"}, relPaths(fs))
	assert.Equal(t, int64(4), fs.TotalSize)
}

func TestScannerOrderingAndTotalSize(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/b.txt", "bb")
	writeTestFile(t, root, "wp-content/a.txt", "a")
	writeTestFile(t, root, "wp-content/c/d.txt", "dddd")

	scanner := NewScanner(ScanConfig{Root: root}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	paths := relPaths(fs)
	assert.True(t, sort.StringsAreSorted(paths), "entries must be sorted by relative path: %v", paths)
	assert.Equal(t, int64(7), fs.TotalSize)
}

func TestScannerScopedRoots(t *testing.T) {
	root := newSiteTree(t)

	scanner := NewScanner(ScanConfig{
		Root:  root,
		Roots: []string{"wp-content/uploads", "wp-content/does-not-exist"},
	}, nil)
	fs, err := scanner.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"wp-content/uploads/2026/01/photo.jpg"}, relPaths(fs))
}

func TestScannerRejectsEscapingRoot(t *testing.T) {
	root := t.TempDir()
	scanner := NewScanner(ScanConfig{Root: root, Roots: []string{"../outside"}}, nil)
	_, err := scanner.Scan()
	assert.Error(t, err)
}

func TestScannerMissingRoot(t *testing.T) {
	scanner := NewScanner(ScanConfig{Root: filepath.Join(t.TempDir(), "missing")}, nil)
	_, err := scanner.Scan()
	assert.Error(t, err)
}
