package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("AIzaSy-example-key", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "AIzaSy-example-key", got)
}

func TestEncryptSecretRandomized(t *testing.T) {
	a, err := EncryptSecret("same-secret", "pw")
	require.NoError(t, err)
	b, err := EncryptSecret("same-secret", "pw")
	require.NoError(t, err)
	// Fresh salt and nonce every call.
	assert.NotEqual(t, string(a), string(b))
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("secret", "right")
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptSecretValidation(t *testing.T) {
	_, err := EncryptSecret("", "pw")
	require.Error(t, err)

	_, err = EncryptSecret("secret", "")
	require.Error(t, err)
}

func TestDecryptSecretBadInput(t *testing.T) {
	_, err := DecryptSecret([]byte("not json"), "pw")
	require.Error(t, err)

	_, err = DecryptSecret([]byte(`{"version":99}`), "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoadSecretRawWins(t *testing.T) {
	got, err := LoadSecret(SecretConfig{
		RawSecret:     "inline-key",
		EncryptedPath: "/does/not/exist",
	})
	require.NoError(t, err)
	assert.Equal(t, "inline-key", got)
}

func TestLoadSecretFromFile(t *testing.T) {
	blob, err := EncryptSecret("file-key", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gemini.enc")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "file-key", got)
}

func TestLoadSecretMissingFile(t *testing.T) {
	_, err := LoadSecret(SecretConfig{
		EncryptedPath: filepath.Join(t.TempDir(), "nope.enc"),
		Password:      "pw",
	})
	require.Error(t, err)
}

func TestLoadSecretNoSource(t *testing.T) {
	_, err := LoadSecret(SecretConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no secret source")
}
