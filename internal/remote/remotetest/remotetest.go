// Package remotetest provides in-memory remote stores that count calls and
// can be told to fail, for controller tests.
package remotetest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/remote/docstore"
	"github.com/studyhub/studyhub/internal/storage"
)

// ErrInjected is returned by operations told to fail.
var ErrInjected = errors.New("injected failure")

// Docs wraps a docstore.Store over a MemoryEngine.
type Docs struct {
	*docstore.Store
	Engine *docstore.MemoryEngine

	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
}

// NewDocs returns a counting document store. It is closed with the test.
func NewDocs(t interface{ Cleanup(func()) }) *Docs {
	engine := docstore.NewMemoryEngine()
	s, err := docstore.New(engine, docstore.NewLocalNotifier())
	if err != nil {
		panic(err)
	}
	t.Cleanup(s.Close)
	return &Docs{Store: s, Engine: engine, calls: map[string]int{}, failing: map[string]bool{}}
}

// Fail makes op ("query", "subscribe", "insert", "append") return ErrInjected.
func (d *Docs) Fail(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[op] = true
}

// Calls reports how many times op was invoked.
func (d *Docs) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

func (d *Docs) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	if d.failing[op] {
		return ErrInjected
	}
	return nil
}

func (d *Docs) QueryAll(ctx context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error) {
	if err := d.record("query"); err != nil {
		return nil, err
	}
	return d.Store.QueryAll(ctx, collection, orderBy, dir)
}

func (d *Docs) Subscribe(ctx context.Context, collection, orderBy string, dir remote.Direction, fn remote.SnapshotFunc) (remote.Unsubscribe, error) {
	if err := d.record("subscribe"); err != nil {
		return nil, err
	}
	return d.Store.Subscribe(ctx, collection, orderBy, dir, fn)
}

func (d *Docs) Insert(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	if err := d.record("insert"); err != nil {
		return "", err
	}
	return d.Store.Insert(ctx, collection, fields)
}

func (d *Docs) AppendToField(ctx context.Context, collection, id, field string, value any) error {
	if err := d.record("append"); err != nil {
		return err
	}
	return d.Store.AppendToField(ctx, collection, id, field, value)
}

// Blobs wraps a storage.MemoryStore.
type Blobs struct {
	*storage.MemoryStore

	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
}

func NewBlobs() *Blobs {
	return &Blobs{MemoryStore: storage.NewMemoryStore(""), calls: map[string]int{}, failing: map[string]bool{}}
}

// Fail makes op ("store", "resolve", "open") return ErrInjected.
func (b *Blobs) Fail(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[op] = true
}

func (b *Blobs) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Blobs) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	if b.failing[op] {
		return ErrInjected
	}
	return nil
}

func (b *Blobs) Store(ctx context.Context, path string, f *remote.File) (remote.BlobRef, error) {
	if err := b.record("store"); err != nil {
		return remote.BlobRef{}, err
	}
	return b.MemoryStore.Store(ctx, path, f)
}

func (b *Blobs) ResolveURL(ctx context.Context, ref remote.BlobRef) (string, error) {
	if err := b.record("resolve"); err != nil {
		return "", err
	}
	return b.MemoryStore.ResolveURL(ctx, ref)
}

func (b *Blobs) Open(ctx context.Context, ref remote.BlobRef) (io.ReadCloser, error) {
	if err := b.record("open"); err != nil {
		return nil, err
	}
	return b.MemoryStore.Open(ctx, ref)
}
