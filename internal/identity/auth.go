package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/studyhub/internal/remote"
)

// pendingTTL bounds how long a sign-in popup may take before its state expires.
const pendingTTL = 10 * time.Minute

// SessionStore persists the identity of a workspace across restarts.
type SessionStore interface {
	Save(ctx context.Context, key string, id *Identity, ttl time.Duration) error
	Load(ctx context.Context, key string) (*Identity, error)
	Delete(ctx context.Context, key string) error
}

// Auth is the identity half of the adapter for one workspace: it runs
// sign-in/sign-out and notifies listeners on every session change.
type Auth struct {
	key      string
	provider Provider
	store    SessionStore
	ttl      time.Duration

	mu        sync.Mutex
	current   *Identity
	pending   map[string]time.Time
	listeners map[int]func(*Identity)
	next      int
}

func NewAuth(key string, provider Provider, store SessionStore, ttl time.Duration) *Auth {
	return &Auth{
		key:       key,
		provider:  provider,
		store:     store,
		ttl:       ttl,
		pending:   make(map[string]time.Time),
		listeners: make(map[int]func(*Identity)),
	}
}

// Restore loads a persisted identity. Listeners registered afterwards see it
// in their immediate first call.
func (a *Auth) Restore(ctx context.Context) error {
	id, err := a.store.Load(ctx, a.key)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if id != nil {
		a.set(id)
	}
	return nil
}

// Current returns the signed-in identity or nil.
func (a *Auth) Current() *Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// OnSessionChange calls fn now with the current identity (possibly nil) and
// again on every sign-in and sign-out.
func (a *Auth) OnSessionChange(fn func(*Identity)) remote.Unsubscribe {
	a.mu.Lock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	cur := a.current
	a.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// SignInInteractive starts the popup flow and returns the provider URL.
func (a *Auth) SignInInteractive(_ context.Context) (string, error) {
	state := uuid.NewString()
	now := time.Now()
	a.mu.Lock()
	for s, at := range a.pending {
		if now.Sub(at) > pendingTTL {
			delete(a.pending, s)
		}
	}
	a.pending[state] = now
	a.mu.Unlock()
	return a.provider.AuthCodeURL(state), nil
}

// CompleteSignIn finishes the flow started by SignInInteractive. A successful
// sign-in replaces any identity already held.
func (a *Auth) CompleteSignIn(ctx context.Context, state, code string) error {
	a.mu.Lock()
	at, ok := a.pending[state]
	delete(a.pending, state)
	a.mu.Unlock()
	if !ok || time.Since(at) > pendingTTL {
		return ErrInvalidState
	}

	id, err := a.provider.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, a.key, id, a.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.set(id)
	return nil
}

// SignOut ends the session; listeners see a nil identity.
func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.store.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	a.set(nil)
	return nil
}

func (a *Auth) set(id *Identity) {
	a.mu.Lock()
	a.current = id
	fns := make([]func(*Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}
