package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// SecretSource fetches signing-credential material from an external
// secret store instead of a local PEM/key file, for deployments that
// keep private keys and symmetric keys in OpenBao rather than on disk.
// Adapted from the teacher's internal/secrets.Client, narrowed from a
// general-purpose config-fetcher (database DSNs, Zitadel admin
// credentials) to the one thing credentials.go actually needs: a named
// secret's key material, by its secret_ref name.
type SecretSource struct {
	addr       string
	token      string
	basePath   string
	httpClient *http.Client
}

// NewSecretSourceFromEnv builds a SecretSource from OPENBAO_ADDR,
// OPENBAO_TOKEN and OPENBAO_SECRET_PATH (default "secret/data/tokencore"),
// mirroring the teacher's NewClient self-configuration convention.
func NewSecretSourceFromEnv() *SecretSource {
	s := &SecretSource{
		addr:     getEnv("OPENBAO_ADDR", "http://localhost:8200"),
		token:    getEnv("OPENBAO_TOKEN", ""),
		basePath: getEnv("OPENBAO_SECRET_PATH", "secret/data/tokencore"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	log.Info().Str("addr", s.addr).Str("path", s.basePath).Msg("config: secret source initialized")
	return s
}

// KeyMaterial is the shape of a signing-credential secret stored under
// {basePath}/signing-credentials/{ref}: either a base64 symmetric key or
// a PEM private key (optionally with a PEM certificate), matching
// credentialSpec's own two key-material forms.
type KeyMaterial struct {
	SymmetricKeyBase64 string
	PrivateKeyPEM      string
	CertificatePEM     string
}

// Fetch reads the named secret from OpenBao's KV v2 API.
func (s *SecretSource) Fetch(ref string) (KeyMaterial, error) {
	url := fmt.Sprintf("%s/v1/%s/signing-credentials/%s", s.addr, s.basePath, ref)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("config: build secret request: %w", err)
	}
	req.Header.Set("X-Vault-Token", s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("config: reach secret source at %s: %w", s.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return KeyMaterial{}, fmt.Errorf("config: secret source returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return KeyMaterial{}, fmt.Errorf("config: decode secret response: %w", err)
	}

	data := result.Data.Data
	return KeyMaterial{
		SymmetricKeyBase64: getMapString(data, "symmetric_key_base64", ""),
		PrivateKeyPEM:      getMapString(data, "private_key_pem", ""),
		CertificatePEM:     getMapString(data, "certificate_pem", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getMapString(m map[string]any, key, defaultValue string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}
