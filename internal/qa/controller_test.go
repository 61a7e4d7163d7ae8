package qa

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = &identity.Identity{ID: "user-a", DisplayName: "Alice Nguyen"}
	userB = &identity.Identity{ID: "user-b", DisplayName: "Bao Tran"}
)

const wait = 2 * time.Second
const tick = 5 * time.Millisecond

func newSubscribed(t *testing.T) (*Controller, *remotetest.Docs, *remotetest.Blobs) {
	docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
	c := NewController(docs, blobs)
	require.NoError(t, c.Subscribe(context.Background()))
	t.Cleanup(c.Close)
	return c, docs, blobs
}

func TestScenario_AskThenAnswerByAnotherUser(t *testing.T) {
	c, _, _ := newSubscribed(t)
	ctx := context.Background()

	qid, err := c.Ask(ctx, "What is photosynthesis?", nil, userA)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.Questions()) == 1 }, wait, tick)
	q := c.Questions()[0]
	require.Equal(t, qid, q.ID)
	require.Equal(t, "What is photosynthesis?", q.Question)
	require.Equal(t, "Alice Nguyen", q.AskedBy)
	require.Equal(t, "user-a", q.UserID)
	require.Empty(t, q.ImageURL)
	require.Empty(t, q.Answers)

	require.NoError(t, c.Answer(ctx, qid, "It's how plants convert light to energy", userB))
	require.Eventually(t, func() bool {
		qs := c.Questions()
		return len(qs) == 1 && len(qs[0].Answers) == 1
	}, wait, tick)

	q = c.Questions()[0]
	require.Equal(t, "Alice Nguyen", q.AskedBy)
	require.Equal(t, "It's how plants convert light to energy", q.Answers[0].Text)
	require.Equal(t, "Bao Tran", q.Answers[0].AnsweredBy)
	require.Equal(t, "user-b", q.Answers[0].UserID)
}

func TestAsk_EmptyTextInsertsNothing(t *testing.T) {
	c, docs, _ := newSubscribed(t)
	ctx := context.Background()
	_, err := c.Ask(ctx, "seed", nil, userA)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.Questions()) == 1 }, wait, tick)
	inserts := docs.Calls("insert")

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Ask(ctx, text, &remote.File{Name: "x.png", Data: []byte("png")}, userA)
		require.ErrorIs(t, err, ErrEmptyQuestion)
	}
	require.Equal(t, inserts, docs.Calls("insert"))
	require.Len(t, c.Questions(), 1)
}

func TestAsk_RequiresSignIn(t *testing.T) {
	c, docs, blobs := newSubscribed(t)
	_, err := c.Ask(context.Background(), "why?", nil, nil)
	require.ErrorIs(t, err, identity.ErrSignedOut)
	require.Zero(t, docs.Calls("insert"))
	require.Zero(t, blobs.Calls("store"))
	require.ErrorIs(t, c.Answer(context.Background(), "x", "because", nil), identity.ErrSignedOut)
	require.Zero(t, docs.Calls("append"))
}

func TestAsk_WithImage(t *testing.T) {
	c, _, blobs := newSubscribed(t)
	c.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })

	_, err := c.Ask(context.Background(), "What is this graph?", &remote.File{Name: "graph.png", Data: []byte("\x89PNG")}, userA)
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Calls("store"))
	require.Eventually(t, func() bool { return len(c.Questions()) == 1 }, wait, tick)
	require.Equal(t, "/files/qa/1700000000000_graph.png", c.Questions()[0].ImageURL)
}

func TestAnswer_EmptyTextAppendsNothing(t *testing.T) {
	c, docs, _ := newSubscribed(t)
	require.ErrorIs(t, c.Answer(context.Background(), "qid", "  ", userB), ErrEmptyAnswer)
	require.Zero(t, docs.Calls("append"))
}

func TestAnswer_UnknownQuestion(t *testing.T) {
	c, _, _ := newSubscribed(t)
	require.ErrorIs(t, c.Answer(context.Background(), "000000000000000000000000", "hi", userB), remote.ErrNotFound)
}

func TestAnswer_ConcurrentAnswersAreAllKept(t *testing.T) {
	c, _, _ := newSubscribed(t)
	ctx := context.Background()
	qid, err := c.Ask(ctx, "Best resources for linear algebra?", nil, userA)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Answer(ctx, qid, fmt.Sprintf("answer %d", i), userB))
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		qs := c.Questions()
		return len(qs) == 1 && len(qs[0].Answers) == n
	}, wait, tick)
	seen := map[string]bool{}
	answers := c.Questions()[0].Answers
	for i, a := range answers {
		seen[a.Text] = true
		if i > 0 {
			// append order matches the order the store applied them
			require.True(t, a.Timestamp.After(answers[i-1].Timestamp))
		}
	}
	require.Len(t, seen, n)
}

// Answer timestamps come from the store clock, not the caller's.
func TestAnswer_TimestampAssignedByStore(t *testing.T) {
	c, docs, _ := newSubscribed(t)
	storeNow := time.Date(2001, 6, 15, 12, 0, 0, 0, time.UTC)
	docs.Engine.SetClock(func() time.Time { return storeNow })
	ctx := context.Background()

	qid, err := c.Ask(ctx, "Clock question", nil, userA)
	require.NoError(t, err)
	require.NoError(t, c.Answer(ctx, qid, "answer", userB))

	require.Eventually(t, func() bool {
		qs := c.Questions()
		return len(qs) == 1 && len(qs[0].Answers) == 1
	}, wait, tick)
	q := c.Questions()[0]
	require.Equal(t, 2001, q.Answers[0].Timestamp.Year())
	require.True(t, q.Answers[0].Timestamp.After(q.Timestamp))
}

func TestSubscribe_NewestFirstAndObservers(t *testing.T) {
	c, _, _ := newSubscribed(t)
	var mu sync.Mutex
	var got [][]Question
	stop := c.OnChange(func(qs []Question) {
		mu.Lock()
		got = append(got, qs)
		mu.Unlock()
	})
	defer stop()

	ctx := context.Background()
	_, err := c.Ask(ctx, "first", nil, userA)
	require.NoError(t, err)
	_, err = c.Ask(ctx, "second", nil, userB)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && len(got[len(got)-1]) == 2
	}, wait, tick)
	qs := c.Questions()
	require.Equal(t, "second", qs[0].Question)
	require.Equal(t, "first", qs[1].Question)
}

func TestUnsubscribe_StopsUpdates(t *testing.T) {
	c, docs, _ := newSubscribed(t)
	ctx := context.Background()
	_, err := c.Ask(ctx, "kept", nil, userA)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.Questions()) == 1 }, wait, tick)

	c.Unsubscribe()
	require.False(t, c.Subscribed())
	_, err = docs.Insert(ctx, Collection, remote.Fields{"question": "after", "timestamp": remote.ServerTimestamp})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, c.Questions(), 1)

	// re-subscribing catches up
	require.NoError(t, c.Subscribe(ctx))
	require.True(t, c.Subscribed())
	require.Eventually(t, func() bool { return len(c.Questions()) == 2 }, wait, tick)
}

func TestSubscribe_ReplacesPreviousSubscription(t *testing.T) {
	c, docs, _ := newSubscribed(t)
	require.NoError(t, c.Subscribe(context.Background()))
	require.Equal(t, 2, docs.Calls("subscribe"))

	_, err := c.Ask(context.Background(), "once", nil, userA)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.Questions()) == 1 }, wait, tick)
}

func TestSubscribe_Failure(t *testing.T) {
	docs := remotetest.NewDocs(t)
	docs.Fail("subscribe")
	c := NewController(docs, remotetest.NewBlobs())
	require.ErrorIs(t, c.Subscribe(context.Background()), remotetest.ErrInjected)
	require.False(t, c.Subscribed())
}
