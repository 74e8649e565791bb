package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// encPrefix marks a ciphertext produced by the secret box
const encPrefix = "enc:"

// AESSecretBox encrypts and decrypts data source credentials with
// AES-256-GCM. The key is derived from the configured encryption key by
// SHA-256. Plaintext passwords pass through Decrypt unchanged so sources
// created before encryption was enabled keep working.
type AESSecretBox struct {
	key [32]byte
}

// NewSecretBox creates a secret box from the configured key string
func NewSecretBox(key string) (*AESSecretBox, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	return &AESSecretBox{key: sha256.Sum256([]byte(key))}, nil
}

// IsEncrypted reports whether s carries the secret box ciphertext marker
func (b *AESSecretBox) IsEncrypted(s string) bool {
	return strings.HasPrefix(s, encPrefix)
}

// Encrypt seals plaintext and returns a marked base64 ciphertext
func (b *AESSecretBox) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a marked ciphertext. Unmarked input is returned as-is.
func (b *AESSecretBox) Decrypt(ciphertext string) (string, error) {
	if !b.IsEncrypted(ciphertext) {
		return ciphertext, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}
