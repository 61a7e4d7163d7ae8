package docstore

import (
	"context"
	"sync"

	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/pkg/metrics"
)

// QueryFunc runs the one-shot query a feed re-executes on every change.
type QueryFunc func(ctx context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error)

type feedKey struct {
	collection string
	orderBy    string
	dir        remote.Direction
}

// Hub multiplexes live queries: one feed per (collection, order), shared by all
// of its subscribers. A change notification marks the feed dirty; the feed
// goroutine re-queries once per batch of notifications and delivers the full
// snapshot to every subscriber in order.
type Hub struct {
	query      QueryFunc
	stopListen func()

	mu     sync.Mutex
	feeds  map[feedKey]*feed
	closed bool
}

type feed struct {
	key    feedKey
	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	nextID int
	subs   map[int]remote.SnapshotFunc
}

// NewHub creates a hub that refreshes feeds on notifier signals.
func NewHub(query QueryFunc, notifier Notifier) (*Hub, error) {
	h := &Hub{query: query, feeds: make(map[feedKey]*feed)}
	stop, err := notifier.Listen(h.changed)
	if err != nil {
		return nil, err
	}
	h.stopListen = stop
	return h, nil
}

func (h *Hub) changed(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, f := range h.feeds {
		if k.collection == collection {
			f.markDirty()
		}
	}
}

// Subscribe registers fn on the feed for the given query. fn receives an
// initial snapshot and one per subsequent change, never concurrently with
// itself.
func (h *Hub) Subscribe(collection, orderBy string, dir remote.Direction, fn remote.SnapshotFunc) remote.Unsubscribe {
	key := feedKey{collection: collection, orderBy: orderBy, dir: dir}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	f, ok := h.feeds[key]
	if !ok {
		f = h.startFeed(key)
		h.feeds[key] = f
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	f.markDirty()
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(f, id) })
	}
}

func (h *Hub) unsubscribe(f *feed, id int) {
	h.mu.Lock()
	f.mu.Lock()
	delete(f.subs, id)
	empty := len(f.subs) == 0
	f.mu.Unlock()
	if empty && h.feeds[f.key] == f {
		delete(h.feeds, f.key)
	} else {
		empty = false
	}
	h.mu.Unlock()
	// no wait here: the unsubscribe may come from inside a snapshot callback
	if empty {
		f.cancel()
	}
}

func (h *Hub) startFeed(key feedKey) *feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed{
		key:    key,
		kick:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]remote.SnapshotFunc),
	}
	go f.run(ctx, h.query)
	return f
}

func (f *feed) markDirty() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (f *feed) run(ctx context.Context, query QueryFunc) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.kick:
		}
		recs, err := query(ctx, f.key.collection, f.key.orderBy, f.key.dir)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RemoteErrors.WithLabelValues("live_query").Inc()
			log.Errorf("live query on %s failed: %v", f.key.collection, err)
			continue
		}
		f.mu.Lock()
		subs := make([]remote.SnapshotFunc, 0, len(f.subs))
		for _, fn := range f.subs {
			subs = append(subs, fn)
		}
		f.mu.Unlock()
		for _, fn := range subs {
			fn(recs)
			metrics.SnapshotsDelivered.WithLabelValues(f.key.collection).Inc()
		}
	}
}

func (f *feed) stop() {
	f.cancel()
	<-f.done
}

// Close stops all feeds and the notifier subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	feeds := h.feeds
	h.feeds = map[feedKey]*feed{}
	h.mu.Unlock()

	h.stopListen()
	for _, f := range feeds {
		f.stop()
	}
}
