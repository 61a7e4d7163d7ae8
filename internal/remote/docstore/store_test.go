package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/stretchr/testify/require"
)

// recorder collects snapshots delivered to a subscriber.
type recorder struct {
	mu    sync.Mutex
	snaps [][]remote.Record
}

func (r *recorder) fn(recs []remote.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, recs)
}

func (r *recorder) last() []remote.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestStore_SubscribeDeliversInitialAndChanges(t *testing.T) {
	s, err := New(NewMemoryEngine(), NewLocalNotifier())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Insert(ctx, "questions", remote.Fields{"question": "q1", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := s.Subscribe(ctx, "questions", "timestamp", remote.Descending, rec.fn)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, time.Second, 5*time.Millisecond)

	id2, err := s.Insert(ctx, "questions", remote.Fields{"question": "q2", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		l := rec.last()
		return len(l) == 2 && l[0].ID == id2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.AppendToField(ctx, "questions", id2, "answers", remote.Fields{"text": "a"}))
	require.Eventually(t, func() bool {
		l := rec.last()
		return len(l) == 2 && len(l[0].Fields["answers"].([]any)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_OtherCollectionsDoNotTriggerFeed(t *testing.T) {
	s, err := New(NewMemoryEngine(), NewLocalNotifier())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rec := &recorder{}
	unsub, err := s.Subscribe(ctx, "questions", "timestamp", remote.Descending, rec.fn)
	require.NoError(t, err)
	defer unsub()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.Insert(ctx, "documents", remote.Fields{"title": "t"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	s, err := New(NewMemoryEngine(), NewLocalNotifier())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rec := &recorder{}
	unsub, err := s.Subscribe(ctx, "questions", "timestamp", remote.Descending, rec.fn)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	unsub()
	_, err = s.Insert(ctx, "questions", remote.Fields{"question": "late"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestStore_AppendUnknownRecord(t *testing.T) {
	s, err := New(NewMemoryEngine(), NewLocalNotifier())
	require.NoError(t, err)
	defer s.Close()
	err = s.AppendToField(context.Background(), "questions", "nope", "answers", "x")
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestRedisNotifier_PropagatesAcrossInstances(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	engine := NewMemoryEngine()
	clientA := redis.NewClient(&redis.Options{Addr: m.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: m.Addr()})

	// two service instances over the same database
	a, err := New(engine, NewRedisNotifier(clientA, "test:changes"))
	require.NoError(t, err)
	defer a.Close()
	b, err := New(engine, NewRedisNotifier(clientB, "test:changes"))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	rec := &recorder{}
	unsub, err := b.Subscribe(ctx, "questions", "timestamp", remote.Descending, rec.fn)
	require.NoError(t, err)
	defer unsub()
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)

	_, err = a.Insert(ctx, "questions", remote.Fields{"question": "from A", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "from A", rec.last()[0].Fields["question"])
}

func TestLocalNotifier_Stop(t *testing.T) {
	n := NewLocalNotifier()
	var got []string
	stop, err := n.Listen(func(c string) { got = append(got, c) })
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), "documents"))
	stop()
	require.NoError(t, n.Notify(context.Background(), "documents"))
	require.Equal(t, []string{"documents"}, got)
}

func TestRedisNotifier_DefaultChannel(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()
	sub := client.Subscribe(context.Background(), DefaultChannel)
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewRedisNotifier(client, "").Notify(context.Background(), "documents"))
	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultChannel, msg.Channel)
	require.Equal(t, "documents", msg.Payload)
}
