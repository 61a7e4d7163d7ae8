// Package workspace composes the per-client controllers and keeps them in a
// registry with idle eviction.
package workspace

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/studyhub/studyhub/internal/catalog"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/qa"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/session"
	"github.com/studyhub/studyhub/internal/view"
)

// Deps are the process-wide handles shared by every workspace.
type Deps struct {
	Docs       remote.DocumentStore
	Blobs      remote.BlobStore
	Provider   identity.Provider
	Sessions   identity.SessionStore
	SessionTTL time.Duration
}

// Workspace is the state of one client.
type Workspace struct {
	Key     string
	Auth    *identity.Auth
	Session *session.Manager
	Catalog *catalog.Controller
	QA      *qa.Controller
	View    *view.State

	lastSeen atomic.Int64
}

// New builds a workspace, restores its persisted identity and starts the
// session listener. Callers must Close it.
func New(ctx context.Context, key string, d Deps) (*Workspace, error) {
	w := &Workspace{
		Key:     key,
		Auth:    identity.NewAuth(key, d.Provider, d.Sessions, d.SessionTTL),
		Catalog: catalog.NewController(d.Docs, d.Blobs),
		QA:      qa.NewController(d.Docs, d.Blobs),
		View:    view.NewState(),
	}
	if err := w.Auth.Restore(ctx); err != nil {
		return nil, fmt.Errorf("workspace %s: %w", key, err)
	}
	w.Session = session.NewManager(w.Auth, w.Catalog, w.QA)
	w.Session.Start()
	w.Touch()
	return w, nil
}

// Touch marks the workspace as in use.
func (w *Workspace) Touch() { w.lastSeen.Store(time.Now().UnixNano()) }

func (w *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastSeen.Load()))
}

// Page renders the workspace.
func (w *Workspace) Page() view.Page {
	return view.Render(w.View.Snapshot(), w.Session.Current(), w.Catalog, w.QA)
}

// Close releases the session listener and the live subscription.
func (w *Workspace) Close() {
	w.Session.Close()
	w.QA.Close()
}
