package dump

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := strings.Repeat("INSERT INTO `wp_posts` VALUES (1, 'hello world');\n", 200)

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionLZ4, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewCompressedWriter(&buf, c)
			require.NoError(t, err)

			_, err = io.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewCompressedReader(bytes.NewReader(buf.Bytes()), c)
			require.NoError(t, err)
			defer r.Close()

			restored, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(restored))

			if c != CompressionNone {
				assert.Less(t, buf.Len(), len(payload), "compressed stream should shrink repetitive SQL")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		input   string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"gzip", CompressionGzip, false},
		{"GZ", CompressionGzip, false},
		{"lz4", CompressionLZ4, false},
		{"zstd", CompressionZstd, false},
		{"zst", CompressionZstd, false},
		{"brotli", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCompression(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestCompressionExtension(t *testing.T) {
	assert.Equal(t, "", CompressionNone.Extension())
	assert.Equal(t, ".gz", CompressionGzip.Extension())
	assert.Equal(t, ".lz4", CompressionLZ4.Extension())
	assert.Equal(t, ".zst", CompressionZstd.Extension())
	assert.Equal(t, "database.sql.gz", FileName(CompressionGzip))
	assert.Equal(t, "database.sql", FileName(CompressionNone))
}

func TestDetectCompression(t *testing.T) {
	assert.Equal(t, CompressionGzip, DetectCompression("backup/database.sql.gz"))
	assert.Equal(t, CompressionLZ4, DetectCompression("database.sql.lz4"))
	assert.Equal(t, CompressionZstd, DetectCompression("database.sql.zst"))
	assert.Equal(t, CompressionNone, DetectCompression("database.sql"))
}
