package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/pkg/middleware"
)

const issuer = "studyhub"

// WorkspaceClaims identify a workspace. Subject is the workspace key; ID is a
// per-token id that can be revoked.
type WorkspaceClaims struct {
	jwt.RegisteredClaims
}

// Key returns the workspace key carried by the token.
func (c *WorkspaceClaims) Key() string { return c.Subject }

// GenerateWorkspaceToken creates a signed JWT for the given workspace key.
func GenerateWorkspaceToken(cfg *config.Config, key string, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := WorkspaceClaims{jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   key,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseWorkspaceToken validates signature, algorithm and expiry.
func ParseWorkspaceToken(cfg *config.Config, raw string) (*WorkspaceClaims, error) {
	var claims WorkspaceClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse workspace token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("workspace token without subject")
	}
	return &claims, nil
}

// Verifier adapts workspace tokens to middleware.Verifier.
type Verifier struct {
	cfg *config.Config
}

func NewVerifier(cfg *config.Config) *Verifier { return &Verifier{cfg: cfg} }

func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	claims, err := ParseWorkspaceToken(v.cfg, raw)
	if err != nil {
		return nil, err
	}
	return verifiedToken{claims}, nil
}

type verifiedToken struct {
	claims *WorkspaceClaims
}

func (t verifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
