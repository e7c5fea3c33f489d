// Package token signs and verifies the portable run and consent tokens that
// carry audit continuity between stateless HTTP steps.
package token

import (
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"
)

// Namespace scopes signing keys so one token kind can never verify as
// another.
type Namespace string

const (
	// NamespaceRun signs run tokens (6-hour lifetime).
	NamespaceRun Namespace = "run-token"
	// NamespaceConsent signs consent tokens (30-minute lifetime).
	NamespaceConsent Namespace = "consent-token"
)

// minSecretLength is the floor for a configured signing secret.
const minSecretLength = 32

// SecretConfig controls how signing keys are resolved.
type SecretConfig struct {
	// Secret is the dedicated token signing secret. Required in production.
	Secret string `env:"EUANGELION_TOKEN_SECRET"`
	// PlatformSecret is an unrelated platform credential used to derive a
	// fallback signing key when Secret is absent. Dev/test only.
	PlatformSecret string `env:"EUANGELION_PLATFORM_SECRET"`
	// Production disables the derived and ephemeral fallback tiers.
	Production bool `env:"EUANGELION_PRODUCTION"`
}

// resolveRootSecret applies the tiered fallback chain: explicit secret,
// derived from the platform secret, ephemeral process-local bytes. The two
// lower tiers refuse to serve in production.
func resolveRootSecret(cfg SecretConfig) ([]byte, string, error) {
	if secret := strings.TrimSpace(cfg.Secret); len(secret) >= minSecretLength {
		return []byte(secret), "configured", nil
	}
	if cfg.Production {
		return nil, "", fmt.Errorf("token secret of at least %d bytes is required in production", minSecretLength)
	}
	if platform := strings.TrimSpace(cfg.PlatformSecret); len(platform) >= minSecretLength {
		return []byte(platform), "derived", nil
	}
	ephemeral := make([]byte, minSecretLength)
	if _, err := rand.Read(ephemeral); err != nil {
		return nil, "", fmt.Errorf("generate ephemeral secret: %w", err)
	}
	return ephemeral, "ephemeral", nil
}

// deriveNamespaceKey produces the per-namespace signing key. Namespacing at
// the key level keeps a consent signature useless against the run codec even
// when both share one root secret.
func deriveNamespaceKey(root []byte, namespace Namespace) ([]byte, error) {
	key, err := hkdf.Key(sha256.New, root, nil, "euangelion-token:"+string(namespace), 32)
	if err != nil {
		return nil, fmt.Errorf("derive %s key: %w", namespace, err)
	}
	return key, nil
}

func logSecretTier(tier string) {
	if tier == "configured" {
		return
	}
	log.Printf("token signing secret resolved via %s fallback; set EUANGELION_TOKEN_SECRET for stable signing", tier)
}
