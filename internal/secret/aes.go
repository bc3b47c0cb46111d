// Package secret decrypts repository credentials stored in encrypted form.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrInvalidKey is returned when a key is not 32 bytes.
	ErrInvalidKey = errors.New("secret key must be 32 bytes")
	// ErrInvalidCiphertext is returned for values that cannot be opened.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// AESDecryptor seals and opens values with AES-256-GCM. The encoded form is
// base64(nonce || ciphertext).
type AESDecryptor struct {
	aead cipher.AEAD
}

// NewAESDecryptor builds a decryptor for key.
func NewAESDecryptor(key []byte) (*AESDecryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &AESDecryptor{aead: aead}, nil
}

// Decrypt opens an encoded value.
func (d *AESDecryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCiphertext, err)
	}
	size := d.aead.NonceSize()
	if len(raw) <= size {
		return "", ErrInvalidCiphertext
	}
	plain, err := d.aead.Open(nil, raw[:size], raw[size:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

// Encrypt seals plaintext with a random nonce.
func (d *AESDecryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := d.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// ParseKey accepts a key as 64 hex characters or standard base64.
func ParseKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrInvalidKey
	}
	if len(value) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(value); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// LoadKeyFile reads a key from disk. Raw 32-byte files are used as is;
// anything else goes through ParseKey.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied key path
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(data) == KeySize {
		return data, nil
	}
	return ParseKey(string(data))
}

// GenerateKey returns a new random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}
