package docstore

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "collection changed" signals from writers to hubs.
type Notifier interface {
	Notify(ctx context.Context, collection string) error
	// Listen registers fn for every notification. The registration is active
	// when Listen returns; stop releases it.
	Listen(fn func(collection string)) (stop func(), err error)
}

// LocalNotifier delivers notifications within the process only.
type LocalNotifier struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(string)
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[int]func(string))}
}

func (n *LocalNotifier) Notify(_ context.Context, collection string) error {
	n.mu.RLock()
	fns := make([]func(string), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()
	for _, fn := range fns {
		fn(collection)
	}
	return nil
}

func (n *LocalNotifier) Listen(fn func(string)) (func(), error) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.listeners[id] = fn
	n.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}, nil
}

// DefaultChannel is the Redis pub/sub channel used for change notifications.
const DefaultChannel = "studyhub:changes"

// RedisNotifier fans notifications out through Redis pub/sub so that every
// service instance refreshes its live queries, whichever instance wrote.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier on the given channel (DefaultChannel when empty).
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, n.channel, collection).Err()
}

func (n *RedisNotifier) Listen(fn func(string)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := n.client.Subscribe(ctx, n.channel)
	// wait for the subscription confirmation so no publish after Listen is missed
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, err
	}
	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(msg.Payload)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}, nil
}
