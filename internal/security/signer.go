// Package security implements the Signer: opaque, tamper-proof bearer
// tokens binding a (videoId, resource, userId?) triple and an expiry,
// grounded on the HMAC-SHA256 URL signer of the corpus's paywall service
// and generalized from query-string signing to a single self-contained
// token value.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vaultstream/vaultstream/internal/apperr"
)

// Payload is the decoded, verified content of a token.
type Payload struct {
	VideoID   string `json:"videoId"`
	Resource  string `json:"resource"`
	UserID    string `json:"userId,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Signer mints and verifies tokens using a process-wide HMAC secret.
// Tokens are stateless: rotating the secret invalidates every outstanding
// token, and nothing about a token is persisted anywhere.
type Signer struct {
	secret     []byte
	defaultTTL time.Duration
}

func New(secret string, defaultTTLSec int) *Signer {
	return &Signer{
		secret:     []byte(secret),
		defaultTTL: time.Duration(defaultTTLSec) * time.Second,
	}
}

// mac computes the hex-encoded HMAC-SHA256 over a deterministic
// serialization of the payload fields.
func (s *Signer) mac(p Payload) string {
	input := fmt.Sprintf("%s:%s:%s:%d", p.VideoID, p.Resource, p.UserID, p.ExpiresAt)
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// wireToken is the base64url-encoded envelope: payload JSON + hex MAC.
type wireToken struct {
	Payload Payload `json:"p"`
	Sig     string  `json:"s"`
}

// Mint issues a bearer token for (videoId, resource), optionally bound to
// userID, expiring after ttl (0 selects the configured default). A
// negative ttl is not a request for the default: it mints a token that
// expires in the past, so Verify immediately rejects it.
func (s *Signer) Mint(videoID, resource, userID string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	p := Payload{
		VideoID:   videoID,
		Resource:  resource,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	wt := wireToken{Payload: p, Sig: s.mac(p)}

	raw, err := json.Marshal(wt)
	if err != nil {
		return "", fmt.Errorf("encoding token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// MintMany mints one token per resource, all bound to the same videoId
// and userID. Used by the HLS Server to rewrite every child URL in a
// playlist with its own token.
func (s *Signer) MintMany(videoID string, resources []string, userID string, ttl time.Duration) (map[string]string, error) {
	out := make(map[string]string, len(resources))
	for _, r := range resources {
		t, err := s.Mint(videoID, r, userID, ttl)
		if err != nil {
			return nil, err
		}
		out[r] = t
	}
	return out, nil
}

// Verify decodes token, recomputes its MAC in constant time, and checks
// expiry. It does NOT check resource binding against a request path;
// callers MUST do that themselves (apperr.ResourceMismatch) since the
// Signer has no notion of "the request".
func (s *Signer) Verify(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, apperr.MalformedToken(err)
	}

	var wt wireToken
	if err := json.Unmarshal(raw, &wt); err != nil {
		return Payload{}, apperr.MalformedToken(err)
	}

	expected := s.mac(wt.Payload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(wt.Sig)) != 1 {
		return Payload{}, apperr.BadSignature(fmt.Errorf("mac mismatch"))
	}

	if time.Now().Unix() > wt.Payload.ExpiresAt {
		return Payload{}, apperr.Expired()
	}

	return wt.Payload, nil
}

// CheckResource enforces the required binding between a verified payload
// and the final path segment of the request that presented it.
func CheckResource(p Payload, requestedResource string) error {
	if p.Resource != requestedResource {
		return apperr.ResourceMismatch(fmt.Sprintf("token minted for %q, requested %q", p.Resource, requestedResource))
	}
	return nil
}
