package files

import (
	"archive/zip"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	entries := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = string(data)
	}
	return entries
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func scanTree(t *testing.T, root string) *FileSet {
	t.Helper()
	fs, err := NewScanner(ScanConfig{Root: root}, nil).Scan()
	require.NoError(t, err)
	return fs
}

func TestArchiverOneShot(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/uploads/a.txt", "alpha")
	writeTestFile(t, root, "wp-content/uploads/b.txt", "bravo")
	writeTestFile(t, root, "wp-content/themes/t/style.css", "body {}")

	fs := scanTree(t, root)
	out := filepath.Join(t.TempDir(), "files.zip")

	archiver := NewArchiver(ArchiveConfig{}, nil)
	result, err := archiver.Archive(context.Background(), fs, out)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Entries)
	assert.Equal(t, 0, result.Skipped)
	assert.Positive(t, result.Size)

	entries := zipEntries(t, out)
	assert.Equal(t, "alpha", entries["wp-content/uploads/a.txt"])
	assert.Equal(t, "bravo", entries["wp-content/uploads/b.txt"])
	assert.Equal(t, "body {}", entries["wp-content/themes/t/style.css"])
}

func TestArchiveChunkMatchesOneShot(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		writeTestFile(t, root, "wp-content/"+name+".txt", "content-"+name)
	}
	fs := scanTree(t, root)

	oneShot := filepath.Join(t.TempDir(), "oneshot.zip")
	archiver := NewArchiver(ArchiveConfig{ReopenEvery: 2}, nil)
	_, err := archiver.Archive(context.Background(), fs, oneShot)
	require.NoError(t, err)

	chunked := filepath.Join(t.TempDir(), "chunked.zip")
	for chunkIndex := 0; ; chunkIndex++ {
		more, err := archiver.ArchiveChunk(context.Background(), fs, chunked, chunkIndex, 2)
		require.NoError(t, err)
		if !more {
			break
		}
	}

	assert.Equal(t, zipNames(t, oneShot), zipNames(t, chunked))
	assert.Equal(t, zipEntries(t, oneShot), zipEntries(t, chunked))
}

func TestArchiveChunkAppendsMonotonically(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		writeTestFile(t, root, "wp-content/"+name+".txt", "content-"+name)
	}
	fs := scanTree(t, root)
	out := filepath.Join(t.TempDir(), "files.zip")
	archiver := NewArchiver(ArchiveConfig{}, nil)

	more, err := archiver.ArchiveChunk(context.Background(), fs, out, 0, 2)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, zipNames(t, out), 2)

	more, err = archiver.ArchiveChunk(context.Background(), fs, out, 1, 2)
	require.NoError(t, err)
	assert.True(t, more)
	names := zipNames(t, out)
	assert.Len(t, names, 4)
	// Earlier entries are untouched by an append.
	assert.Equal(t, []string{"wp-content/a.txt", "wp-content/b.txt"}, names[:2])

	more, err = archiver.ArchiveChunk(context.Background(), fs, out, 2, 2)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, zipNames(t, out), 5)

	// Appending past the end is a no-op.
	more, err = archiver.ArchiveChunk(context.Background(), fs, out, 3, 2)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, zipNames(t, out), 5)
}

func TestArchiverEmptyFileSet(t *testing.T) {
	root := t.TempDir()
	fs := scanTree(t, root)
	out := filepath.Join(t.TempDir(), "files.zip")

	archiver := NewArchiver(ArchiveConfig{}, nil)
	result, err := archiver.Archive(context.Background(), fs, out)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Entries)
	assert.Empty(t, zipNames(t, out))
}

func TestArchiverSkipsVanishedFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/keep.txt", "kept")

	fs := scanTree(t, root)
	fs.Entries = append(fs.Entries, Entry{RelPath: "wp-content/gone.txt", Size: 4, ModTime: time.Now()})

	out := filepath.Join(t.TempDir(), "files.zip")
	archiver := NewArchiver(ArchiveConfig{}, nil)
	result, err := archiver.Archive(context.Background(), fs, out)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Entries)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"wp-content/keep.txt"}, zipNames(t, out))
}

func TestArchiverCancellation(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "wp-content/a.txt", "data")
	fs := scanTree(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "files.zip")
	archiver := NewArchiver(ArchiveConfig{}, nil)
	_, err := archiver.Archive(ctx, fs, out)
	assert.Error(t, err)
}

func TestArchiveChunkRejectsBadArguments(t *testing.T) {
	archiver := NewArchiver(ArchiveConfig{}, nil)
	fs := &FileSet{Root: t.TempDir()}
	out := filepath.Join(t.TempDir(), "files.zip")

	_, err := archiver.ArchiveChunk(context.Background(), fs, out, -1, 10)
	assert.Error(t, err)
	_, err = archiver.ArchiveChunk(context.Background(), fs, out, 0, 0)
	assert.Error(t, err)
}
