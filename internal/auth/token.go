// Package auth issues and validates FlowSync session credentials.
//
// Session tokens are HMAC-signed claim blobs:
//
//	base64(json(claims)).base64(hmac-sha256(claims))
//
// Claims carry the user's id, email, role, and active flag so the request
// middleware can make policy decisions without an extra lookup, though it
// still re-checks the active flag against the store.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowsync/flowsync/internal/types"
)

// ErrUnauthenticated is returned for missing, malformed, expired, or
// mis-signed credentials, and for deactivated accounts.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims is the payload encoded in a session token.
type Claims struct {
	UserID string     `json:"sub"`
	Email  string     `json:"email"`
	Role   types.Role `json:"role"`
	Active bool       `json:"active"`
	Expiry time.Time  `json:"exp"`
}

// Issuer signs and validates session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. ttl bounds token lifetime; zero means 24h.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue creates a signed session token for a user.
func (i *Issuer) Issue(u *types.User) (string, error) {
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Active: u.Active,
		Expiry: time.Now().Add(i.ttl),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	mac := hmac.New(sha256.New, i.secret)
	mac.Write(payload)

	return base64.URLEncoding.EncodeToString(payload) + "." +
		base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Validate checks a token's signature and expiry and returns its claims.
// Deactivated accounts are rejected here regardless of role.
func (i *Issuer) Validate(token string) (*Claims, error) {
	payloadB64, sigB64, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("malformed token: %w", ErrUnauthenticated)
	}
	payload, err := base64.URLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("malformed token payload: %w", ErrUnauthenticated)
	}
	sig, err := base64.URLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("malformed token signature: %w", ErrUnauthenticated)
	}

	mac := hmac.New(sha256.New, i.secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, fmt.Errorf("invalid token signature: %w", ErrUnauthenticated)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("invalid token claims: %w", ErrUnauthenticated)
	}
	if time.Now().After(claims.Expiry) {
		return nil, fmt.Errorf("token expired: %w", ErrUnauthenticated)
	}
	if !claims.Active {
		return nil, fmt.Errorf("account deactivated: %w", ErrUnauthenticated)
	}
	return &claims, nil
}
