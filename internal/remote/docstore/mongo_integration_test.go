package docstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/studyhub/internal/database"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/stretchr/testify/require"
)

// newMongoEngine connects to MONGODB_URI and hands out a throwaway database.
func newMongoEngine(t *testing.T) *MongoEngine {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, uri, 5*time.Second)
	require.NoError(t, err)
	db := client.Database("studyhub_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return NewMongoEngine(db)
}

func TestMongoEngine_ConcurrentAppendsAreAtomic(t *testing.T) {
	m := newMongoEngine(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Minute)

	id, err := m.Insert(ctx, "questions", remote.Fields{"question": "q", "answers": []any{}, "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- m.AppendToField(ctx, "questions", id, "answers", remote.Fields{
				"text":      fmt.Sprintf("answer %d", i),
				"timestamp": remote.ServerTimestamp,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := m.QueryAll(ctx, "questions", "timestamp", remote.Descending)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	var q struct {
		Timestamp time.Time `bson:"timestamp"`
		Answers   []struct {
			Text      string    `bson:"text"`
			Timestamp time.Time `bson:"timestamp"`
		} `bson:"answers"`
	}
	require.NoError(t, recs[0].Decode(&q))
	require.True(t, q.Timestamp.After(before))
	require.Len(t, q.Answers, writers)

	seen := map[string]bool{}
	for _, a := range q.Answers {
		seen[a.Text] = true
		require.True(t, a.Timestamp.After(before))
	}
	require.Len(t, seen, writers)
}

func TestMongoEngine_AppendToMissingRecord(t *testing.T) {
	m := newMongoEngine(t)
	ctx := context.Background()
	require.ErrorIs(t, m.AppendToField(ctx, "questions", "not-an-id", "answers", remote.Fields{"text": "x"}), remote.ErrNotFound)
	require.ErrorIs(t, m.AppendToField(ctx, "questions", "650000000000000000000000", "answers", remote.Fields{"text": "x"}), remote.ErrNotFound)
}
