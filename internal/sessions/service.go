package sessions

import (
	"context"
	"time"

	"github.com/studyhub/studyhub/internal/identity"
)

// Service wraps repository operations with expiry handling. It satisfies
// identity.SessionStore.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

// Save stores the identity signed in on the workspace for ttl.
func (s *Service) Save(ctx context.Context, key string, id *identity.Identity, ttl time.Duration) error {
	now := s.now()
	return s.repo.Put(ctx, &Session{
		Key:       key,
		Identity:  *id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

// Load returns the identity held by the workspace, or nil when there is none
// or it has expired.
func (s *Service) Load(ctx context.Context, key string) (*identity.Identity, error) {
	sess, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.expired(s.now()) {
		// cleanup expired session
		_ = s.repo.DeleteByKey(ctx, key)
		return nil, nil
	}
	id := sess.Identity
	return &id, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	return s.repo.DeleteByKey(ctx, key)
}
