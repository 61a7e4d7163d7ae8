package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/studyhub/studyhub/pkg/logger"
	"github.com/studyhub/studyhub/pkg/metrics"
)

var ErrClosed = errors.New("workspace registry closed")

var log = logger.With("workspace")

// Registry owns the live workspaces of this process.
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	items  map[string]*Workspace
	closed bool
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	return &Registry{deps: deps, idleTTL: idleTTL, now: time.Now, items: make(map[string]*Workspace)}
}

// Get returns the workspace for key, creating it on first use. A re-created
// workspace picks its identity up from the session store. The session lookup
// runs outside the registry lock; when two callers race on one key the first
// insert wins and the other workspace is closed.
func (r *Registry) Get(ctx context.Context, key string) (*Workspace, error) {
	if w, err := r.lookup(key); w != nil || err != nil {
		return w, err
	}

	created, err := New(ctx, key, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		created.Close()
		return nil, ErrClosed
	}
	if w, ok := r.items[key]; ok {
		r.mu.Unlock()
		created.Close()
		w.Touch()
		return w, nil
	}
	r.items[key] = created
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	r.mu.Unlock()
	log.Debugf("workspace %s created", key)
	return created, nil
}

func (r *Registry) lookup(key string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	w, ok := r.items[key]
	if !ok {
		return nil, nil
	}
	w.Touch()
	return w, nil
}

// Forget closes the workspace and drops its persisted session.
func (r *Registry) Forget(ctx context.Context, key string) error {
	r.mu.Lock()
	w, ok := r.items[key]
	delete(r.items, key)
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	r.mu.Unlock()
	if ok {
		w.Close()
	}
	return r.deps.Sessions.Delete(ctx, key)
}

// Sweep closes workspaces idle for longer than the idle TTL and returns how
// many it evicted. Their sessions stay persisted.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	var idle []*Workspace
	for k, w := range r.items {
		if w.idleSince(now) > r.idleTTL {
			idle = append(idle, w)
			delete(r.items, k)
		}
	}
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	r.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		log.Infof("evicted %d idle workspaces", len(idle))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Sweep()
		}
	}
}

// Len reports the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Close closes every workspace. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	items := r.items
	r.items = map[string]*Workspace{}
	metrics.ActiveWorkspaces.Set(0)
	r.mu.Unlock()
	for _, w := range items {
		w.Close()
	}
}
