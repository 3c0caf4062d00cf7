package encryption

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := DecodeKey(encoded)
	require.NoError(t, err)
	return key
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	p := NewProvider()

	for _, plaintext := range []string{
		"",
		"Host=ods;Port=5432;Username=postgres;Password=p@ss;Database=EdFi_Ods_255901",
		strings.Repeat("x", 16),
		"Data Source=.;Initial Catalog=EdFi_Ods;Integrated Security=True",
	} {
		ciphertext, err := p.Encrypt(plaintext, key)
		require.NoError(t, err)
		assert.Len(t, strings.Split(ciphertext, "."), 3)

		got, ok := p.TryDecrypt(ciphertext, key)
		require.True(t, ok)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	p := NewProvider()
	a, err := p.Encrypt("same", key)
	require.NoError(t, err)
	b, err := p.Encrypt("same", key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTryDecryptFailsClosed(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	otherKey := testKey(t)
	p := NewProvider()
	valid, err := p.Encrypt("Host=ods;Database=x", key)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")

	tampered := []byte(parts[1])
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	tests := []struct {
		name       string
		ciphertext string
		key        []byte
	}{
		{name: "empty", ciphertext: "", key: key},
		{name: "plain connection string", ciphertext: "Host=ods;Database=x", key: key},
		{name: "two segments", ciphertext: parts[0] + "." + parts[1], key: key},
		{name: "bad base64", ciphertext: "!!!." + parts[1] + "." + parts[2], key: key},
		{name: "tampered ciphertext", ciphertext: parts[0] + "." + string(tampered) + "." + parts[2], key: key},
		{name: "wrong key", ciphertext: valid, key: otherKey},
		{name: "short key", ciphertext: valid, key: key[:16]},
		{name: "nil key", ciphertext: valid, key: nil},
		{name: "short iv", ciphertext: base64.StdEncoding.EncodeToString([]byte("abc")) + "." + parts[1] + "." + parts[2], key: key},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := p.TryDecrypt(tt.ciphertext, tt.key)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestDecodeKey(t *testing.T) {
	t.Parallel()

	key, err := DecodeKey(base64.StdEncoding.EncodeToString(make([]byte, KeySize)) + "\n")
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = DecodeKey("not base64!")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = DecodeKey(base64.StdEncoding.EncodeToString(make([]byte, 16)))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewProvider().Encrypt("x", make([]byte, 8))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestPKCS7Unpad(t *testing.T) {
	t.Parallel()

	_, ok := pkcs7Unpad([]byte{}, 16)
	assert.False(t, ok)

	block := make([]byte, 16)
	_, ok = pkcs7Unpad(block, 16)
	assert.False(t, ok, "zero padding byte")

	block[15] = 17
	_, ok = pkcs7Unpad(block, 16)
	assert.False(t, ok, "padding longer than block")

	block[15], block[14] = 2, 3
	_, ok = pkcs7Unpad(block, 16)
	assert.False(t, ok, "inconsistent padding")

	block[14] = 2
	out, ok := pkcs7Unpad(block, 16)
	assert.True(t, ok)
	assert.Len(t, out, 14)
}
