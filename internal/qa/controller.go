// Package qa owns the questions projection, kept live by a subscription to
// the questions collection.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/pkg/logger"
	"github.com/studyhub/studyhub/pkg/metrics"
)

var (
	ErrEmptyQuestion = errors.New("question text is empty")
	ErrEmptyAnswer   = errors.New("answer text is empty")
)

var log = logger.With("qa")

// Controller holds the questions projection, most recent first. Every
// snapshot from the live subscription replaces it whole.
type Controller struct {
	docs  remote.DocumentStore
	blobs remote.BlobStore
	now   func() time.Time

	mu        sync.RWMutex
	items     []Question
	gen       uint64 // bumped on every (un)subscribe; stale snapshots are dropped
	unsub     remote.Unsubscribe
	observers map[int]func([]Question)
	nextObs   int
}

func NewController(docs remote.DocumentStore, blobs remote.BlobStore) *Controller {
	return &Controller{docs: docs, blobs: blobs, now: time.Now, observers: make(map[int]func([]Question))}
}

// SetClock replaces the clock used for image storage paths.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// Subscribe opens the live subscription, replacing any previous one.
func (c *Controller) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if old != nil {
		old()
	}

	unsub, err := c.docs.Subscribe(ctx, Collection, "timestamp", remote.Descending, func(recs []remote.Record) {
		c.apply(gen, recs)
	})
	if err != nil {
		return fmt.Errorf("subscribe questions: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// superseded while subscribing
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// Subscribed reports whether a live subscription is held.
func (c *Controller) Subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unsub != nil
}

// Unsubscribe releases the live subscription. The projection keeps its last
// snapshot.
func (c *Controller) Unsubscribe() {
	c.mu.Lock()
	c.gen++
	old := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if old != nil {
		old()
	}
}

// Close releases the subscription and drops all observers.
func (c *Controller) Close() {
	c.Unsubscribe()
	c.mu.Lock()
	c.observers = make(map[int]func([]Question))
	c.mu.Unlock()
}

func (c *Controller) apply(gen uint64, recs []remote.Record) {
	items := make([]Question, 0, len(recs))
	for _, rec := range recs {
		var q Question
		if err := rec.Decode(&q); err != nil {
			log.Errorf("decode question %s: %v", rec.ID, err)
			continue
		}
		q.ID = rec.ID
		items = append(items, q)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.items = items
	fns := make([]func([]Question), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(append([]Question(nil), items...))
	}
}

// OnChange registers fn to receive every replaced projection. The returned
// func removes it.
func (c *Controller) OnChange(fn func([]Question)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Questions returns a copy of the projection.
func (c *Controller) Questions() []Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Question(nil), c.items...)
}

// Find looks a question up in the projection.
func (c *Controller) Find(id string) (Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, q := range c.items {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Ask inserts a question, storing the optional image first. The projection
// is updated by the live subscription, not here.
func (c *Controller) Ask(ctx context.Context, text string, image *remote.File, asker *identity.Identity) (string, error) {
	if asker == nil {
		metrics.ValidationRejected.WithLabelValues("ask").Inc()
		return "", identity.ErrSignedOut
	}
	if strings.TrimSpace(text) == "" {
		metrics.ValidationRejected.WithLabelValues("ask").Inc()
		return "", ErrEmptyQuestion
	}

	imageURL := ""
	if image != nil && image.Name != "" {
		path := fmt.Sprintf("qa/%d_%s", c.now().UnixMilli(), image.Name)
		ref, err := c.blobs.Store(ctx, path, image)
		if err != nil {
			return "", fmt.Errorf("store %s: %w", path, err)
		}
		if imageURL, err = c.blobs.ResolveURL(ctx, ref); err != nil {
			metrics.OrphanedBlobs.Inc()
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
	}

	id, err := c.docs.Insert(ctx, Collection, remote.Fields{
		"question":  text,
		"imageUrl":  imageURL,
		"answers":   []any{},
		"askedBy":   asker.DisplayName,
		"userId":    asker.ID,
		"timestamp": remote.ServerTimestamp,
	})
	if err != nil {
		if imageURL != "" {
			metrics.OrphanedBlobs.Inc()
			log.Warnf("question image orphaned: %v", err)
		}
		return "", err
	}
	metrics.QuestionsAsked.Inc()
	log.Debugf("question %s asked by %s", id, asker.ID)
	return id, nil
}

// Answer appends to the question's thread with an atomic array append. The
// answer timestamp is assigned by the store.
func (c *Controller) Answer(ctx context.Context, questionID, text string, responder *identity.Identity) error {
	if responder == nil {
		metrics.ValidationRejected.WithLabelValues("answer").Inc()
		return identity.ErrSignedOut
	}
	if strings.TrimSpace(text) == "" {
		metrics.ValidationRejected.WithLabelValues("answer").Inc()
		return ErrEmptyAnswer
	}
	err := c.docs.AppendToField(ctx, Collection, questionID, "answers", remote.Fields{
		"text":       text,
		"answeredBy": responder.DisplayName,
		"userId":     responder.ID,
		"timestamp":  remote.ServerTimestamp,
	})
	if err != nil {
		return err
	}
	metrics.AnswersAppended.Inc()
	return nil
}
