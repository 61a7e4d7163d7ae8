// Package catalog owns the documents projection: full reloads on demand,
// upload-then-insert creation and a local search filter.
package catalog

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

// ErrIncomplete is the user-facing validation error for a missing title,
// subject or file.
var ErrIncomplete = errors.New("please fill in all fields")

var log = logger.With("catalog")

// Controller holds the documents projection, most recent first.
type Controller struct {
	docs  remote.DocumentStore
	blobs remote.BlobStore
	now   func() time.Time

	mu      sync.RWMutex
	items   []Document
	issued  uint64 // load tickets handed out
	applied uint64 // ticket of the load currently held
}

func NewController(docs remote.DocumentStore, blobs remote.BlobStore) *Controller {
	return &Controller{docs: docs, blobs: blobs, now: time.Now}
}

// SetClock replaces the clock used for storage paths.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// Load replaces the projection with the whole collection. Safe to call
// repeatedly.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	ticket := c.issued
	c.mu.Unlock()

	recs, err := c.docs.QueryAll(ctx, Collection, "timestamp", remote.Descending)
	if err != nil {
		return err
	}
	items := make([]Document, 0, len(recs))
	for _, rec := range recs {
		var d Document
		if err := rec.Decode(&d); err != nil {
			return fmt.Errorf("decode document %s: %w", rec.ID, err)
		}
		d.ID = rec.ID
		items = append(items, d)
	}

	c.mu.Lock()
	if ticket < c.applied {
		// a load started later already landed
		c.mu.Unlock()
		return nil
	}
	c.items = items
	c.applied = ticket
	c.mu.Unlock()
	log.Debugf("loaded %d documents", len(items))
	return nil
}

// Upload stores the file, inserts its record and reloads. The two remote
// writes are not transactional: if the insert fails the stored blob stays
// behind without a record.
func (c *Controller) Upload(ctx context.Context, title, subject string, file *remote.File, uploader *identity.Identity) (string, error) {
	if uploader == nil {
		metrics.ValidationRejected.WithLabelValues("upload").Inc()
		return "", identity.ErrSignedOut
	}
	if title == "" || subject == "" || file == nil || file.Name == "" {
		metrics.ValidationRejected.WithLabelValues("upload").Inc()
		return "", ErrIncomplete
	}

	path := fmt.Sprintf("docs/%d_%s", c.now().UnixMilli(), file.Name)
	ref, err := c.blobs.Store(ctx, path, file)
	if err != nil {
		metrics.UploadFailures.WithLabelValues("store").Inc()
		return "", fmt.Errorf("store %s: %w", path, err)
	}
	url, err := c.blobs.ResolveURL(ctx, ref)
	if err != nil {
		metrics.UploadFailures.WithLabelValues("resolve").Inc()
		metrics.OrphanedBlobs.Inc()
		log.Warnf("blob %s orphaned: resolve url: %v", ref.Path, err)
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	id, err := c.docs.Insert(ctx, Collection, remote.Fields{
		"title":      title,
		"subject":    subject,
		"url":        url,
		"fileName":   file.Name,
		"uploadedBy": uploader.DisplayName,
		"userId":     uploader.ID,
		"timestamp":  remote.ServerTimestamp,
	})
	if err != nil {
		metrics.UploadFailures.WithLabelValues("insert").Inc()
		metrics.OrphanedBlobs.Inc()
		log.Warnf("blob %s orphaned: %v", ref.Path, err)
		return "", err
	}
	metrics.DocumentsUploaded.Inc()
	log.Infof("document %s uploaded by %s", id, uploader.ID)

	if err := c.Load(ctx); err != nil {
		return id, fmt.Errorf("reload after upload: %w", err)
	}
	return id, nil
}

// Search returns the held documents whose title or subject contains term,
// ignoring case. An empty term matches everything.
func (c *Controller) Search(term string) []Document {
	needle := strings.ToLower(term)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Document, 0, len(c.items))
	for _, d := range c.items {
		if strings.Contains(strings.ToLower(d.Title), needle) || strings.Contains(strings.ToLower(d.Subject), needle) {
			out = append(out, d)
		}
	}
	return out
}

// Documents returns a copy of the projection.
func (c *Controller) Documents() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Document(nil), c.items...)
}

// Find looks a document up in the projection.
func (c *Controller) Find(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.items {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}
