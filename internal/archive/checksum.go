package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"sitevault/internal/errors"
)

// Checksum computes the sha256 of a file, streamed.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIOError(fmt.Sprintf("failed to open %s for checksum", path), err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.NewIOError(fmt.Sprintf("failed to checksum %s", path), err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyChecksum recomputes a file's sha256 and compares it to want.
func VerifyChecksum(path, want string) error {
	got, err := Checksum(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, want) {
		return errors.NewIntegrityError(
			fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", path, want, got), nil)
	}
	return nil
}
