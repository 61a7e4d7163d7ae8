package identity

import (
	"errors"
	"strings"
)

var (
	// ErrSignedOut is returned by write operations attempted without an identity.
	ErrSignedOut = errors.New("please sign in first")
	// ErrInvalidState is returned when a sign-in callback does not match a pending request.
	ErrInvalidState = errors.New("sign-in request expired or unknown")
)

// Identity represents the signed-in principal (mapped from OIDC claims).
// It is never persisted beyond the workspace session store.
type Identity struct {
	ID          string `bson:"id" json:"id"` // OIDC subject
	DisplayName string `bson:"displayName" json:"displayName"`
	AvatarURL   string `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
}

// FirstName is the header greeting form of the display name.
func (i *Identity) FirstName() string {
	if f := strings.Fields(i.DisplayName); len(f) > 0 {
		return f[0]
	}
	return i.DisplayName
}

// FromClaims builds an Identity from an ID token claims map. Returns nil when
// the subject is missing.
func FromClaims(claims map[string]interface{}) *Identity {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	name := firstString(claims, "name", "preferred_username", "email")
	if name == "" {
		name = sub
	}
	picture, _ := claims["picture"].(string)
	return &Identity{ID: sub, DisplayName: name, AvatarURL: picture}
}

func firstString(claims map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
