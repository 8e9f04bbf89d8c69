package config

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jermoo/tokencore/internal/signer"
)

// credentialSpec is one entry of the `signing_credentials` YAML list
// (§6). One of SecretRef, SymmetricKeyB64 or PrivateKeyPath must be set;
// when more than one is set, the first of them in that order is used and
// the others are ignored.
type credentialSpec struct {
	KeyID           string `yaml:"kid"`
	Algorithm       string `yaml:"algorithm"`
	SymmetricKeyB64 string `yaml:"symmetric_key_base64"`
	PrivateKeyPath  string `yaml:"private_key_path"`
	CertificatePath string `yaml:"certificate_path"`
	// SecretRef names a secret under an external SecretSource
	// (signing-credentials/{ref}) to pull key material from instead of
	// SymmetricKeyB64/PrivateKeyPath/CertificatePath. An entry that sets
	// it is rejected unless a SecretSource is attached (WithSecretSource).
	SecretRef string `yaml:"secret_ref"`
}

// credentialsFile is the top-level shape of the YAML document.
type credentialsFile struct {
	SigningCredentials []credentialSpec `yaml:"signing_credentials"`
}

// CredentialsLoader watches a YAML file of signing credentials and
// rotates them into a signer.Signer on change, the same stat-then-reload
// hot-reload shape as the teacher's beebrain.RulesLoader, adapted from
// a read-triggered check to a background poll since signer.Signer has no
// equivalent of RulesLoader's per-call GetRules() hook point.
type CredentialsLoader struct {
	path    string
	signer  *signer.Signer
	modTime time.Time
	// secrets resolves a credentialSpec.SecretRef to key material; nil
	// disables secret_ref entries (every credential must then use the
	// file-based fields).
	secrets *SecretSource
}

// NewCredentialsLoader loads path once, rotates it into s, and returns
// the loader for later Reload calls or WatchForChanges.
func NewCredentialsLoader(path string, s *signer.Signer) (*CredentialsLoader, error) {
	l := &CredentialsLoader{path: path, signer: s}
	if err := l.reload(); err != nil {
		return nil, fmt.Errorf("config: initial credentials load: %w", err)
	}
	return l, nil
}

// WithSecretSource attaches a SecretSource so secret_ref entries in the
// credentials file resolve against it on the next Reload.
func (l *CredentialsLoader) WithSecretSource(s *SecretSource) *CredentialsLoader {
	l.secrets = s
	return l
}

// Reload re-parses the file if its mtime has advanced since the last
// load, rotating the signer on success. A parse failure is logged and
// the signer's existing credentials are left untouched.
func (l *CredentialsLoader) Reload() {
	stat, err := os.Stat(l.path)
	if err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("config: cannot stat signing credentials file")
		return
	}
	if !stat.ModTime().After(l.modTime) {
		return
	}
	if err := l.reload(); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("config: failed to reload signing credentials, keeping active set")
	}
}

func (l *CredentialsLoader) reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	var doc credentialsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.SigningCredentials) == 0 {
		return errors.New("signing_credentials is empty")
	}

	creds := make([]signer.Credential, 0, len(doc.SigningCredentials))
	for i, spec := range doc.SigningCredentials {
		c, err := spec.toCredential(l.secrets)
		if err != nil {
			return fmt.Errorf("credential[%d]: %w", i, err)
		}
		creds = append(creds, c)
	}

	if err := l.signer.Rotate(creds); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}

	stat, err := os.Stat(l.path)
	if err == nil {
		l.modTime = stat.ModTime()
	}
	log.Info().Str("path", l.path).Int("credential_count", len(creds)).Msg("config: signing credentials loaded")
	return nil
}

// WatchForChanges polls the file every interval until ctx is cancelled,
// calling Reload on each tick (mirroring the teacher's habit of a small
// background goroutine per long-lived resource, e.g. MemoryLimiter's
// cleanup loop).
func (l *CredentialsLoader) WatchForChanges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Reload()
		}
	}
}

func (s credentialSpec) toCredential(secrets *SecretSource) (signer.Credential, error) {
	alg := jose.SignatureAlgorithm(s.Algorithm)
	if alg == "" {
		return signer.Credential{}, errors.New("algorithm is required")
	}

	cred := signer.Credential{Algorithm: alg, KeyID: s.KeyID}

	switch {
	case s.SecretRef != "":
		if secrets == nil {
			return signer.Credential{}, errors.New("secret_ref set but no SecretSource configured")
		}
		material, err := secrets.Fetch(s.SecretRef)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("secret_ref %q: %w", s.SecretRef, err)
		}
		switch {
		case material.SymmetricKeyBase64 != "":
			key, err := base64.StdEncoding.DecodeString(material.SymmetricKeyBase64)
			if err != nil {
				return signer.Credential{}, fmt.Errorf("secret_ref %q: symmetric_key_base64: %w", s.SecretRef, err)
			}
			cred.SymmetricKey = key
		case material.PrivateKeyPEM != "":
			key, err := parsePrivateKeyPEM([]byte(material.PrivateKeyPEM))
			if err != nil {
				return signer.Credential{}, fmt.Errorf("secret_ref %q: private_key_pem: %w", s.SecretRef, err)
			}
			cred.PrivateKey = key
		default:
			return signer.Credential{}, fmt.Errorf("secret_ref %q: returned neither a symmetric key nor a private key", s.SecretRef)
		}
		if material.CertificatePEM != "" {
			cert, err := parseCertificatePEM([]byte(material.CertificatePEM))
			if err != nil {
				return signer.Credential{}, fmt.Errorf("secret_ref %q: certificate_pem: %w", s.SecretRef, err)
			}
			cred.Certificate = cert
		}
		return cred, nil
	case s.SymmetricKeyB64 != "":
		key, err := base64.StdEncoding.DecodeString(s.SymmetricKeyB64)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("symmetric_key_base64: %w", err)
		}
		cred.SymmetricKey = key
	case s.PrivateKeyPath != "":
		raw, err := os.ReadFile(s.PrivateKeyPath)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("private_key_path: %w", err)
		}
		key, err := parsePrivateKeyPEM(raw)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("private_key_path: %w", err)
		}
		cred.PrivateKey = key
	default:
		return signer.Credential{}, errors.New("one of secret_ref, symmetric_key_base64, or private_key_path is required")
	}

	if s.CertificatePath != "" {
		raw, err := os.ReadFile(s.CertificatePath)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("certificate_path: %w", err)
		}
		cert, err := parseCertificatePEM(raw)
		if err != nil {
			return signer.Credential{}, fmt.Errorf("certificate_path: %w", err)
		}
		cred.Certificate = cert
	}

	return cred, nil
}

func parsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseCertificatePEM(raw []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}
