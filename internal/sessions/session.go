package sessions

import (
	"time"

	"github.com/studyhub/studyhub/internal/identity"
)

// Session is the persisted sign-in of one workspace, keyed by workspace key.
type Session struct {
	Key       string            `bson:"_id" json:"key"`
	Identity  identity.Identity `bson:"identity" json:"identity"`
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time         `bson:"expiresAt" json:"expiresAt"`
}

func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
