// Package session tracks the signed-in identity of a workspace and primes
// the controllers whenever someone signs in.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/pkg/logger"
)

var log = logger.With("session")

// triggerTimeout bounds the background load/subscribe started by a sign-in.
const triggerTimeout = 30 * time.Second

// Auth is the identity handle the manager listens to.
type Auth interface {
	OnSessionChange(fn func(*identity.Identity)) remote.Unsubscribe
	SignInInteractive(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// CatalogLoader is the part of the document catalog triggered on sign-in.
type CatalogLoader interface {
	Load(ctx context.Context) error
}

// QuestionFeed is the part of the question controller triggered on sign-in
// and released on sign-out.
type QuestionFeed interface {
	Subscribe(ctx context.Context) error
	Unsubscribe()
}

// Manager holds the current identity. Start registers the single session
// listener; Close releases it.
type Manager struct {
	auth      Auth
	catalog   CatalogLoader
	questions QuestionFeed

	mu      sync.RWMutex
	current *identity.Identity
	stop    remote.Unsubscribe
	closed  bool
	wg      sync.WaitGroup
}

func NewManager(auth Auth, catalog CatalogLoader, questions QuestionFeed) *Manager {
	return &Manager{auth: auth, catalog: catalog, questions: questions}
}

// Start registers the session listener. It fires at once with the current
// identity. Calling Start twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = func() {}
	m.mu.Unlock()

	stop := m.auth.OnSessionChange(m.changed)

	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
}

// Close releases the listener and waits for triggers already running. A
// session change delivered after Close is ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.wg.Wait()
}

func (m *Manager) changed(id *identity.Identity) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.current = id
	if id != nil {
		// added under the lock so Close cannot be waiting already
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if id == nil {
		m.questions.Unsubscribe()
		log.Debugf("signed out")
		return
	}
	log.Infof("signed in as %s", id.ID)

	// triggers run off the listener so identity callbacks never block
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		if err := m.catalog.Load(ctx); err != nil {
			log.Errorf("initial document load failed: %v", err)
		}
		if !m.live() {
			return
		}
		if err := m.questions.Subscribe(ctx); err != nil {
			log.Errorf("question subscription failed: %v", err)
			return
		}
		// a sign-out or Close that landed while subscribing must still win
		if !m.live() {
			m.questions.Unsubscribe()
		}
	}()
}

// live reports whether someone is signed in and the manager is open.
func (m *Manager) live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed && m.current != nil
}

// Current returns the held identity or nil.
func (m *Manager) Current() *identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SignIn starts the interactive flow and returns the provider URL.
func (m *Manager) SignIn(ctx context.Context) (string, error) {
	return m.auth.SignInInteractive(ctx)
}

// SignOut ends the session. The listener observes the change.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.auth.SignOut(ctx)
}
