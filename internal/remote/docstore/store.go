// Package docstore implements remote.DocumentStore on top of a storage engine
// (MongoDB or in-memory) plus a live-query hub fed by change notifications.
package docstore

import (
	"context"
	"fmt"

	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/pkg/logger"
	"github.com/studyhub/studyhub/pkg/metrics"
)

var log = logger.With("docstore")

// Engine is the persistence backend behind a Store.
type Engine interface {
	QueryAll(ctx context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error)
	Insert(ctx context.Context, collection string, fields remote.Fields) (string, error)
	AppendToField(ctx context.Context, collection, id, field string, value any) error
}

// Store wires an Engine to a Hub so that every successful write is announced
// to live subscribers.
type Store struct {
	engine   Engine
	notifier Notifier
	hub      *Hub
}

var _ remote.DocumentStore = (*Store)(nil)

// New creates a Store and starts listening for change notifications.
// Caller must Close it.
func New(engine Engine, notifier Notifier) (*Store, error) {
	hub, err := NewHub(engine.QueryAll, notifier)
	if err != nil {
		return nil, err
	}
	return &Store{engine: engine, notifier: notifier, hub: hub}, nil
}

func (s *Store) QueryAll(ctx context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error) {
	recs, err := s.engine.QueryAll(ctx, collection, orderBy, dir)
	if err != nil {
		metrics.RemoteErrors.WithLabelValues("query").Inc()
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return recs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection, orderBy string, dir remote.Direction, fn remote.SnapshotFunc) (remote.Unsubscribe, error) {
	return s.hub.Subscribe(collection, orderBy, dir, fn), nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	id, err := s.engine.Insert(ctx, collection, fields)
	if err != nil {
		metrics.RemoteErrors.WithLabelValues("insert").Inc()
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	s.announce(ctx, collection)
	return id, nil
}

func (s *Store) AppendToField(ctx context.Context, collection, id, field string, value any) error {
	if err := s.engine.AppendToField(ctx, collection, id, field, value); err != nil {
		metrics.RemoteErrors.WithLabelValues("append").Inc()
		return fmt.Errorf("append to %s/%s.%s: %w", collection, id, field, err)
	}
	s.announce(ctx, collection)
	return nil
}

// announce failures only delay subscribers until the next change; the write
// itself already succeeded.
func (s *Store) announce(ctx context.Context, collection string) {
	if err := s.notifier.Notify(ctx, collection); err != nil {
		log.Warnf("change notification for %s failed: %v", collection, err)
	}
}

// Close stops the hub and its notifier subscription.
func (s *Store) Close() {
	s.hub.Close()
}
