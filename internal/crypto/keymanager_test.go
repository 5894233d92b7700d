package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pemBytes := testPEM(t)

	blob, err := EncryptKey(pemBytes, "correct horse")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "RSA PRIVATE KEY")

	got, err := DecryptKey(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, pemBytes, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testPEM(t), "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptRejectsNonPEM(t *testing.T) {
	_, err := EncryptKey([]byte("not a pem file"), "pw")
	assert.Error(t, err)
}

func TestLoadKeyPrefersPlainPath(t *testing.T) {
	dir := t.TempDir()
	pemBytes := testPEM(t)

	plainPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(plainPath, pemBytes, 0o600))

	blob, err := EncryptKey(pemBytes, "pw")
	require.NoError(t, err)
	encPath := filepath.Join(dir, "key.pem.enc")
	require.NoError(t, os.WriteFile(encPath, blob, 0o600))

	got, err := LoadKey(KeyConfig{PlainKeyPath: plainPath, EncryptedKeyPath: encPath})
	require.NoError(t, err)
	assert.Equal(t, pemBytes, got)

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: encPath, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, pemBytes, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}
