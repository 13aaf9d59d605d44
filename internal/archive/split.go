package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sitevault/internal/errors"
)

// PartIndexSuffix is appended to the container path to name the part index.
const PartIndexSuffix = ".parts.json"

// PartInfo describes one part file by bare name and size.
type PartInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// PartIndex records how a container was split so Join can losslessly
// reassemble and re-verify it. It sits next to the parts as
// <container>.parts.json.
type PartIndex struct {
	Name      string     `json:"name"`
	TotalSize int64      `json:"total_size"`
	Checksum  string     `json:"checksum"`
	Parts     []PartInfo `json:"parts"`
	CreatedAt time.Time  `json:"created_at"`
}

// Split partitions a container into fixed-size parts named
// <container>.part-000, .part-001, … plus the part index. The source file
// is left in place; the caller decides whether to remove it. Returns the
// part paths in order.
func Split(path string, partSize int64) ([]string, error) {
	if partSize <= 0 {
		return nil, errors.NewValidationError("part size must be positive", nil)
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to open %s for splitting", path), err)
	}
	defer src.Close()

	index := PartIndex{
		Name:      filepath.Base(path),
		CreatedAt: time.Now().UTC(),
	}
	hasher := sha256.New()
	reader := io.TeeReader(src, hasher)

	var partPaths []string
	cleanup := func() {
		for _, p := range partPaths {
			os.Remove(p)
		}
	}

	for partNum := 0; ; partNum++ {
		partPath := fmt.Sprintf("%s.part-%03d", path, partNum)
		written, err := writePart(partPath, reader, partSize)
		if err != nil {
			cleanup()
			return nil, err
		}
		if written == 0 {
			os.Remove(partPath)
			break
		}

		partPaths = append(partPaths, partPath)
		index.Parts = append(index.Parts, PartInfo{Name: filepath.Base(partPath), Size: written})
		index.TotalSize += written

		if written < partSize {
			break
		}
	}

	if len(index.Parts) == 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("%s is empty, nothing to split", path), nil)
	}

	index.Checksum = hex.EncodeToString(hasher.Sum(nil))

	data, err := json.MarshalIndent(&index, "", "  ")
	if err != nil {
		cleanup()
		return nil, errors.NewIOError("failed to encode part index", err)
	}
	if err := os.WriteFile(path+PartIndexSuffix, data, 0o644); err != nil {
		cleanup()
		return nil, errors.NewIOError("failed to write part index", err)
	}

	return partPaths, nil
}

func writePart(partPath string, reader io.Reader, partSize int64) (int64, error) {
	part, err := os.Create(partPath)
	if err != nil {
		return 0, errors.NewIOError(fmt.Sprintf("failed to create part %s", partPath), err)
	}

	written, copyErr := io.CopyN(part, reader, partSize)
	closeErr := part.Close()
	if copyErr != nil && copyErr != io.EOF {
		return written, errors.NewIOError(fmt.Sprintf("failed to write part %s", partPath), copyErr)
	}
	if closeErr != nil {
		return written, errors.NewIOError(fmt.Sprintf("failed to close part %s", partPath), closeErr)
	}
	return written, nil
}

// ReadPartIndex loads and validates a part index file.
func ReadPartIndex(indexPath string) (*PartIndex, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("failed to read part index %s", indexPath), err)
	}
	index := &PartIndex{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, errors.NewIntegrityError("part index is not valid JSON", err)
	}
	if len(index.Parts) == 0 {
		return nil, errors.NewIntegrityError("part index lists no parts", nil)
	}
	return index, nil
}

// Join reassembles a split container from its part index into outPath and
// verifies size and checksum against the index. Parts are expected next to
// the index file.
func Join(indexPath, outPath string) error {
	index, err := ReadPartIndex(indexPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(indexPath)

	out, err := os.Create(outPath)
	if err != nil {
		return errors.NewIOError(fmt.Sprintf("failed to create %s", outPath), err)
	}

	hasher := sha256.New()
	w := io.MultiWriter(out, hasher)
	var total int64

	joinErr := func() error {
		for _, part := range index.Parts {
			src, err := os.Open(filepath.Join(dir, part.Name))
			if err != nil {
				return errors.NewIOError(fmt.Sprintf("missing part %s", part.Name), err)
			}
			n, copyErr := io.Copy(w, src)
			src.Close()
			if copyErr != nil {
				return errors.NewIOError(fmt.Sprintf("failed to read part %s", part.Name), copyErr)
			}
			if n != part.Size {
				return errors.NewIntegrityError(
					fmt.Sprintf("part %s is %d bytes, index says %d", part.Name, n, part.Size), nil)
			}
			total += n
		}
		return nil
	}()

	if err := out.Close(); err != nil && joinErr == nil {
		joinErr = errors.NewIOError(fmt.Sprintf("failed to close %s", outPath), err)
	}
	if joinErr != nil {
		os.Remove(outPath)
		return joinErr
	}

	if total != index.TotalSize {
		os.Remove(outPath)
		return errors.NewIntegrityError(
			fmt.Sprintf("joined size %d does not match index total %d", total, index.TotalSize), nil)
	}
	if got := hex.EncodeToString(hasher.Sum(nil)); got != index.Checksum {
		os.Remove(outPath)
		return errors.NewIntegrityError(
			fmt.Sprintf("joined checksum %s does not match index checksum %s", got, index.Checksum), nil)
	}
	return nil
}
