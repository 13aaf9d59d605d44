// Package crypt provides AES-256-GCM encryption for secret setting values.
// Keys are derived from a user passphrase with PBKDF2, and every encrypted
// value carries its own random salt and nonce so the same plaintext never
// produces the same ciphertext twice.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Prefix marks encrypted values and versions the payload layout.
	Prefix = "enc:v1:"

	keySize    = 32 // AES-256
	saltSize   = 16
	iterations = 100000
)

// Cipher encrypts and decrypts short setting values such as storage
// credentials. Values without the versioned prefix pass through Decrypt
// unchanged, so plaintext configs keep working after a passphrase is
// introduced.
type Cipher struct {
	passphrase []byte
}

// New creates a cipher from a passphrase.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase must not be empty")
	}
	return &Cipher{passphrase: []byte(passphrase)}, nil
}

// IsEncrypted reports whether a value carries the encrypted-value prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Encrypt seals plaintext into prefix + base64(salt | nonce | ciphertext).
// Already-encrypted values are returned unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if IsEncrypted(plaintext) {
		return plaintext, nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return Prefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a value produced by Encrypt. Values without the prefix are
// treated as plaintext and returned as-is.
func (c *Cipher) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("malformed encrypted value: %w", err)
	}
	if len(payload) < saltSize {
		return "", fmt.Errorf("encrypted value too short")
	}

	salt := payload[:saltSize]
	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	rest := payload[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted value too short")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
