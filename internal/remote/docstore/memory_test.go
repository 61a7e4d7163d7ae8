package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/studyhub/studyhub/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_InsertQueryOrder(t *testing.T) {
	e := NewMemoryEngine()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	// a frozen clock still yields strictly increasing server timestamps
	e.SetClock(func() time.Time { return fixed })
	ctx := context.Background()

	id1, err := e.Insert(ctx, "documents", remote.Fields{"title": "first", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)
	id2, err := e.Insert(ctx, "documents", remote.Fields{"title": "second", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)

	recs, err := e.QueryAll(ctx, "documents", "timestamp", remote.Descending)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, id2, recs[0].ID)
	require.Equal(t, id1, recs[1].ID)

	t1 := recs[1].Fields["timestamp"].(time.Time)
	t2 := recs[0].Fields["timestamp"].(time.Time)
	require.True(t, t2.After(t1))

	asc, err := e.QueryAll(ctx, "documents", "timestamp", remote.Ascending)
	require.NoError(t, err)
	require.Equal(t, id1, asc[0].ID)
}

func TestMemoryEngine_AppendToField(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()
	id, err := e.Insert(ctx, "questions", remote.Fields{"question": "q", "answers": []any{}})
	require.NoError(t, err)

	before, err := e.QueryAll(ctx, "questions", "timestamp", remote.Descending)
	require.NoError(t, err)

	require.NoError(t, e.AppendToField(ctx, "questions", id, "answers", remote.Fields{"text": "a1", "timestamp": remote.ServerTimestamp}))
	require.NoError(t, e.AppendToField(ctx, "questions", id, "answers", remote.Fields{"text": "a2"}))

	after, err := e.QueryAll(ctx, "questions", "timestamp", remote.Descending)
	require.NoError(t, err)
	answers := after[0].Fields["answers"].([]any)
	require.Len(t, answers, 2)
	require.Equal(t, "a1", answers[0].(remote.Fields)["text"])
	require.IsType(t, time.Time{}, answers[0].(remote.Fields)["timestamp"])
	require.Equal(t, "a2", answers[1].(remote.Fields)["text"])

	// earlier snapshots are not mutated by later appends
	require.Empty(t, before[0].Fields["answers"])

	require.ErrorIs(t, e.AppendToField(ctx, "questions", "missing", "answers", "x"), remote.ErrNotFound)
}

func TestMemoryEngine_ConcurrentAppendsKeepAll(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()
	id, err := e.Insert(ctx, "questions", remote.Fields{"answers": []any{}})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, e.AppendToField(ctx, "questions", id, "answers", remote.Fields{"n": i}))
		}(i)
	}
	wg.Wait()

	recs, err := e.QueryAll(ctx, "questions", "timestamp", remote.Descending)
	require.NoError(t, err)
	require.Len(t, recs[0].Fields["answers"], n)
}

func TestRecordDecode(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := remote.Record{ID: "x", Fields: remote.Fields{
		"title":     "Algebra",
		"timestamp": ts,
		"answers":   []any{remote.Fields{"text": "yes"}},
	}}
	var out struct {
		Title     string    `bson:"title"`
		Timestamp time.Time `bson:"timestamp"`
		Answers   []struct {
			Text string `bson:"text"`
		} `bson:"answers"`
	}
	require.NoError(t, rec.Decode(&out))
	require.Equal(t, "Algebra", out.Title)
	require.True(t, ts.Equal(out.Timestamp))
	require.Len(t, out.Answers, 1)
	require.Equal(t, "yes", out.Answers[0].Text)
}
