package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// InsecureProvider treats the authorization code as an unsigned JWT and reads
// the identity from its payload without verifying anything.
// Only intended for local/integration tests under explicit opt-in via env var.
type InsecureProvider struct {
	redirectURL string
}

func NewInsecureProvider(redirectURL string) *InsecureProvider {
	return &InsecureProvider{redirectURL: redirectURL}
}

// AuthCodeURL points straight back at the callback; the caller appends code.
func (p *InsecureProvider) AuthCodeURL(state string) string {
	sep := "?"
	if strings.Contains(p.redirectURL, "?") {
		sep = "&"
	}
	return p.redirectURL + sep + "state=" + url.QueryEscape(state)
}

func (p *InsecureProvider) Exchange(_ context.Context, code string) (*Identity, error) {
	claims, err := parseUnverifiedClaims(code)
	if err != nil {
		return nil, err
	}
	id := FromClaims(claims)
	if id == nil {
		return nil, errors.New("token without subject")
	}
	return id, nil
}

func parseUnverifiedClaims(raw string) (map[string]interface{}, error) {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}
	payload := parts[1]
	// pad base64
	if m := len(payload) % 4; m != 0 {
		payload += strings.Repeat("=", 4-m)
	}
	data, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// UnsignedToken builds a token InsecureProvider accepts. Test helper.
func UnsignedToken(claims map[string]interface{}) string {
	b, _ := json.Marshal(claims)
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	return head + "." + base64.RawURLEncoding.EncodeToString(b) + "."
}
