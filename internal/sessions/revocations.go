package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records workspace token ids that must no longer be accepted.
// Entries live in Redis when a client is configured, otherwise in process.
type Revocations struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

// NewRevocations accepts a nil client to keep entries in process.
func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client, local: make(map[string]time.Time)}
}

// Revoke stores the token id until ttl elapses (normally the token's remaining lifetime).
func (r *Revocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	if r.client != nil {
		return r.client.Set(ctx, "revoked:workspace:"+tokenID, "1", ttl).Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[tokenID] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether the token id was revoked and has not yet expired.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.client != nil {
		n, err := r.client.Exists(ctx, "revoked:workspace:"+tokenID).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.local[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(r.local, tokenID)
		return false, nil
	}
	return true, nil
}
