package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jermoo/tokencore/internal/signer"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func rsaPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func testSignerForLoader(t *testing.T) *signer.Signer {
	t.Helper()
	s, err := signer.New("https://tokencore.test", []signer.Credential{{
		Algorithm:    "HS256",
		SymmetricKey: []byte("01234567890123456789012345678901"),
		KeyID:        "bootstrap",
	}})
	require.NoError(t, err)
	return s
}

func TestNewCredentialsLoaderParsesSymmetricKey(t *testing.T) {
	dir := t.TempDir()
	keyB64 := base64.StdEncoding.EncodeToString([]byte("01234567890123456789012345678901"))
	path := writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-1"
    algorithm: "HS256"
    symmetric_key_base64: "`+keyB64+`"
`)

	s := testSignerForLoader(t)
	_, err := NewCredentialsLoader(path, s)
	require.NoError(t, err)

	active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "kid-1", active.KeyID)
}

func TestNewCredentialsLoaderParsesRSAPrivateKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeFile(t, dir, "key.pem", rsaPrivateKeyPEM(t))
	path := writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-rsa"
    algorithm: "RS256"
    private_key_path: "`+keyPath+`"
`)

	s := testSignerForLoader(t)
	_, err := NewCredentialsLoader(path, s)
	require.NoError(t, err)

	active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "kid-rsa", active.KeyID)
}

func TestNewCredentialsLoaderRejectsEmptyList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "creds.yaml", `signing_credentials: []`)

	s := testSignerForLoader(t)
	_, err := NewCredentialsLoader(path, s)
	assert.Error(t, err)
}

func TestNewCredentialsLoaderRejectsMissingKeyMaterial(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-1"
    algorithm: "HS256"
`)

	s := testSignerForLoader(t)
	_, err := NewCredentialsLoader(path, s)
	assert.Error(t, err)
}

func TestReloadSkipsUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	keyB64 := base64.StdEncoding.EncodeToString([]byte("01234567890123456789012345678901"))
	path := writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-1"
    algorithm: "HS256"
    symmetric_key_base64: "`+keyB64+`"
`)

	s := testSignerForLoader(t)
	l, err := NewCredentialsLoader(path, s)
	require.NoError(t, err)

	l.Reload() // mtime unchanged, must not error or touch the signer
	active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "kid-1", active.KeyID)
}

func TestReloadPicksUpChangedFile(t *testing.T) {
	dir := t.TempDir()
	keyB64 := base64.StdEncoding.EncodeToString([]byte("01234567890123456789012345678901"))
	path := writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-1"
    algorithm: "HS256"
    symmetric_key_base64: "`+keyB64+`"
`)

	s := testSignerForLoader(t)
	l, err := NewCredentialsLoader(path, s)
	require.NoError(t, err)

	// Ensure the mtime actually advances on filesystems with coarse
	// mtime resolution.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, dir, "creds.yaml", `
signing_credentials:
  - kid: "kid-2"
    algorithm: "HS256"
    symmetric_key_base64: "`+keyB64+`"
`)
	futureTime := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, futureTime, futureTime))

	l.Reload()

	active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "kid-2", active.KeyID)
}

func TestToCredentialRequiresSecretSourceForSecretRef(t *testing.T) {
	spec := credentialSpec{KeyID: "kid-1", Algorithm: "HS256", SecretRef: "ref-1"}
	_, err := spec.toCredential(nil)
	assert.Error(t, err)
}

func TestToCredentialSecretRefErrorsWhenSourceUnreachable(t *testing.T) {
	src := &SecretSource{httpClient: &http.Client{Timeout: time.Second}}
	spec := credentialSpec{KeyID: "kid-1", Algorithm: "HS256", SecretRef: "ref-1"}

	// Successful resolution against a stub server is covered in
	// secrets_test.go; here the source points at an address nothing
	// listens on, so resolving the secret_ref must fail with an error.
	src.addr = "http://127.0.0.1:0"
	_, err := spec.toCredential(src)
	assert.Error(t, err)
}

func TestToCredentialRequiresAlgorithm(t *testing.T) {
	spec := credentialSpec{KeyID: "kid-1", SymmetricKeyB64: base64.StdEncoding.EncodeToString([]byte("key"))}
	_, err := spec.toCredential(nil)
	assert.Error(t, err)
}
