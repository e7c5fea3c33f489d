package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
)

// payloadVersion guards against verifying tokens minted by an incompatible
// build.
const payloadVersion = 1

// Codec mints and verifies signed tokens. One Codec holds the derived keys
// for every namespace so callers never touch raw secrets.
type Codec struct {
	keys  map[Namespace][]byte
	clock func() time.Time
}

// NewCodec resolves the signing secret chain and derives per-namespace keys.
// Production configurations without an explicit secret fail here rather than
// at first use.
func NewCodec(cfg SecretConfig) (*Codec, error) {
	root, tier, err := resolveRootSecret(cfg)
	if err != nil {
		return nil, err
	}
	logSecretTier(tier)
	keys := make(map[Namespace][]byte, 2)
	for _, ns := range []Namespace{NamespaceRun, NamespaceConsent} {
		key, err := deriveNamespaceKey(root, ns)
		if err != nil {
			return nil, err
		}
		keys[ns] = key
	}
	return &Codec{keys: keys, clock: time.Now}, nil
}

// WithClock overrides the codec's time source for tests.
func (c *Codec) WithClock(clock func() time.Time) *Codec {
	c.clock = clock
	return c
}

// sign produces the two-segment wire form: base64url(JSON payload), a dot,
// and the hex HMAC-SHA256 of the encoded payload.
func (c *Codec) sign(namespace Namespace, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeTokenInvalid, "encode token payload", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, c.keys[namespace])
	mac.Write([]byte(encoded))
	return encoded + "." + hex.EncodeToString(mac.Sum(nil)), nil
}

// open verifies the signature and decodes the payload into dst. Every
// failure collapses to CodeTokenInvalid; callers treat invalid tokens as
// absent rather than surfacing parse detail.
func (c *Codec) open(namespace Namespace, token string, dst any) error {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return apperrors.New(apperrors.CodeTokenInvalid, "malformed token")
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return apperrors.New(apperrors.CodeTokenInvalid, "malformed token signature")
	}
	mac := hmac.New(sha256.New, c.keys[namespace])
	mac.Write([]byte(encoded))
	if !hmac.Equal(mac.Sum(nil), want) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token signature mismatch")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return apperrors.New(apperrors.CodeTokenInvalid, "malformed token payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.New(apperrors.CodeTokenInvalid, "malformed token payload")
	}
	return nil
}

// SessionFingerprint binds a token to the caller's session without storing
// the session token itself.
func (c *Codec) SessionFingerprint(sessionToken string) string {
	mac := hmac.New(sha256.New, c.keys[NamespaceRun])
	mac.Write([]byte("session:" + sessionToken))
	return hex.EncodeToString(mac.Sum(nil))
}

func fingerprintEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
