package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRoundTrip(t *testing.T) {
	containerPath, _ := buildTestContainer(t)
	dest := t.TempDir()

	count, err := Extract(context.Background(), containerPath, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(filepath.Join(dest, "database.sql"))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE wp_options (id int);\n", string(data))

	// The manifest stays inside the container.
	_, err = os.Stat(filepath.Join(dest, ManifestName))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRejectsZipSlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	parent := t.TempDir()
	dest := filepath.Join(parent, "extract")
	_, err = Extract(context.Background(), path, dest)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr), "entry must not escape the extraction dir")
}

func TestExtractEntry(t *testing.T) {
	containerPath, _ := buildTestContainer(t)
	dest := filepath.Join(t.TempDir(), "nested", "dump.sql")

	require.NoError(t, ExtractEntry(context.Background(), containerPath, "database.sql", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE")
}

func TestExtractEntryMissing(t *testing.T) {
	containerPath, _ := buildTestContainer(t)
	err := ExtractEntry(context.Background(), containerPath, "nope.bin", filepath.Join(t.TempDir(), "out"))
	assert.Error(t, err)
}

func TestExtractCancellation(t *testing.T) {
	containerPath, _ := buildTestContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, containerPath, t.TempDir())
	assert.Error(t, err)
}

func TestChecksumAndVerify(t *testing.T) {
	path := writePayloadFile(t, t.TempDir(), "file.bin", "stable content")

	sum, err := Checksum(path)
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	require.NoError(t, VerifyChecksum(path, sum))

	// Corrupt one byte and the check must fail.
	require.NoError(t, os.WriteFile(path, []byte("stable Content"), 0o644))
	assert.Error(t, VerifyChecksum(path, sum))
}
