// Package encryption protects ODS instance connection strings at rest.
//
// Ciphertexts have the form base64(iv).base64(ciphertext).base64(mac) where the
// payload is AES-256-CBC with PKCS#7 padding and the MAC is HMAC-SHA256 over the
// ciphertext, keyed with the same 32-byte key.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the required key length in bytes.
const KeySize = 32

// ErrInvalidKey is returned when a key is not valid base64 or has the wrong length.
var ErrInvalidKey = errors.New("invalid encryption key")

// Provider encrypts and decrypts strings with a symmetric key.
type Provider interface {
	// Encrypt returns the ciphertext form of plaintext.
	Encrypt(plaintext string, key []byte) (string, error)
	// TryDecrypt returns the plaintext and true, or "" and false when the
	// ciphertext is malformed, tampered with, or encrypted under another key.
	TryDecrypt(ciphertext string, key []byte) (string, bool)
}

// AESProvider is the AES-256-CBC + HMAC-SHA256 Provider.
type AESProvider struct{}

var _ Provider = AESProvider{}

// NewProvider returns the default Provider.
func NewProvider() Provider {
	return AESProvider{}
}

// DecodeKey interprets a configured key as base64-encoded bytes.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %w", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt implements Provider.
func (AESProvider) Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	sealed := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed, padded)

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(iv),
		enc.EncodeToString(sealed),
		enc.EncodeToString(sign(sealed, key)),
	}, "."), nil
}

// TryDecrypt implements Provider.
func (AESProvider) TryDecrypt(ciphertext string, key []byte) (string, bool) {
	if len(key) != KeySize {
		return "", false
	}
	parts := strings.Split(ciphertext, ".")
	if len(parts) != 3 {
		return "", false
	}

	enc := base64.StdEncoding
	iv, err := enc.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", false
	}
	sealed, err := enc.DecodeString(parts[1])
	if err != nil || len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
		return "", false
	}
	mac, err := enc.DecodeString(parts[2])
	if err != nil || !hmac.Equal(mac, sign(sealed, key)) {
		return "", false
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", false
	}
	plain := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, sealed)

	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return "", false
	}
	return string(unpadded), true
}

func sign(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
