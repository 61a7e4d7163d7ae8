package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/remote/remotetest"
	"github.com/studyhub/studyhub/pkg/metrics"
	"github.com/stretchr/testify/require"
)

var alice = &identity.Identity{ID: "user-a", DisplayName: "Alice Nguyen"}

func pdf(name string) *remote.File {
	return &remote.File{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestUpload_CreatesOneRecordNewestFirst(t *testing.T) {
	docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
	c := NewController(docs, blobs)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Upload(ctx, fmt.Sprintf("Notes %d", i), "Math", pdf(fmt.Sprintf("n%d.pdf", i)), alice)
		require.NoError(t, err)

		got := c.Documents()
		require.Len(t, got, i+1)
		require.Equal(t, fmt.Sprintf("Notes %d", i), got[0].Title)
		for j := 1; j < len(got); j++ {
			require.False(t, got[0].Timestamp.Before(got[j].Timestamp))
		}
	}
	require.Equal(t, 3, blobs.Len())
}

func TestUpload_RecordFields(t *testing.T) {
	docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
	c := NewController(docs, blobs)
	c.SetClock(func() time.Time { return time.UnixMilli(1700000000123) })

	id, err := c.Upload(context.Background(), "Thermo", "Physics", pdf("heat engines.pdf"), alice)
	require.NoError(t, err)

	d, ok := c.Find(id)
	require.True(t, ok)
	require.Equal(t, "Thermo", d.Title)
	require.Equal(t, "Physics", d.Subject)
	require.Equal(t, "heat engines.pdf", d.FileName)
	require.Equal(t, "Alice Nguyen", d.UploadedBy)
	require.Equal(t, "user-a", d.UserID)
	require.Equal(t, "/files/docs/1700000000123_heat%20engines.pdf", d.URL)
	require.False(t, d.Timestamp.IsZero())

	_, ok = c.Find("missing")
	require.False(t, ok)
}

func TestUpload_ValidationMakesNoRemoteCalls(t *testing.T) {
	cases := []struct {
		name           string
		title, subject string
		file           *remote.File
		who            *identity.Identity
		want           error
	}{
		{"missing file", "T", "S", nil, alice, ErrIncomplete},
		{"unnamed file", "T", "S", &remote.File{}, alice, ErrIncomplete},
		{"missing title", "", "S", pdf("a.pdf"), alice, ErrIncomplete},
		{"missing subject", "T", "", pdf("a.pdf"), alice, ErrIncomplete},
		{"signed out", "T", "S", pdf("a.pdf"), nil, identity.ErrSignedOut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
			c := NewController(docs, blobs)
			before := testutil.ToFloat64(metrics.ValidationRejected.WithLabelValues("upload"))

			_, err := c.Upload(context.Background(), tc.title, tc.subject, tc.file, tc.who)
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, blobs.Calls("store"))
			require.Zero(t, docs.Calls("insert"))
			require.Zero(t, docs.Calls("query"))
			require.Equal(t, before+1, testutil.ToFloat64(metrics.ValidationRejected.WithLabelValues("upload")))
		})
	}
}

func TestUpload_InsertFailureLeavesOrphanedBlob(t *testing.T) {
	docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
	docs.Fail("insert")
	c := NewController(docs, blobs)
	before := testutil.ToFloat64(metrics.OrphanedBlobs)

	_, err := c.Upload(context.Background(), "T", "S", pdf("a.pdf"), alice)
	require.ErrorIs(t, err, remotetest.ErrInjected)
	require.Equal(t, 1, blobs.Len())
	require.Empty(t, c.Documents())
	require.Zero(t, docs.Calls("query"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.OrphanedBlobs))
}

func TestUpload_StoreFailureInsertsNothing(t *testing.T) {
	docs, blobs := remotetest.NewDocs(t), remotetest.NewBlobs()
	blobs.Fail("store")
	c := NewController(docs, blobs)

	_, err := c.Upload(context.Background(), "T", "S", pdf("a.pdf"), alice)
	require.ErrorIs(t, err, remotetest.ErrInjected)
	require.Zero(t, docs.Calls("insert"))
}

func seed(t *testing.T, docs *remotetest.Docs, rows ...[2]string) {
	for _, r := range rows {
		_, err := docs.Insert(context.Background(), Collection, remote.Fields{
			"title": r[0], "subject": r[1], "timestamp": remote.ServerTimestamp,
		})
		require.NoError(t, err)
	}
}

func TestSearch_FiltersTitleOrSubjectCaseInsensitive(t *testing.T) {
	docs := remotetest.NewDocs(t)
	seed(t, docs,
		[2]string{"Calculus Notes", "Math"},
		[2]string{"Cell biology", "Biology"},
		[2]string{"Past exam", "MATHEMATICS"},
		[2]string{"Essay tips", "Literature"},
	)
	c := NewController(docs, remotetest.NewBlobs())
	require.NoError(t, c.Load(context.Background()))
	queries := docs.Calls("query")
	before := c.Documents()

	titles := func(ds []Document) []string {
		out := make([]string, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.Title)
		}
		return out
	}

	require.ElementsMatch(t, []string{"Calculus Notes", "Past exam"}, titles(c.Search("math")))
	require.ElementsMatch(t, []string{"Cell biology"}, titles(c.Search("BIO")))
	require.Empty(t, c.Search("chemistry"))
	require.Len(t, c.Search(""), 4)

	// repeatable, pure
	require.Equal(t, c.Search("math"), c.Search("math"))
	require.Equal(t, before, c.Documents())
	require.Equal(t, queries, docs.Calls("query"))
}

func TestLoad_FullReplace(t *testing.T) {
	docs := remotetest.NewDocs(t)
	seed(t, docs, [2]string{"A", "x"})
	c := NewController(docs, remotetest.NewBlobs())
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Load(context.Background()))
	require.Len(t, c.Documents(), 1)

	seed(t, docs, [2]string{"B", "y"})
	require.Len(t, c.Documents(), 1)
	require.NoError(t, c.Load(context.Background()))
	got := c.Documents()
	require.Len(t, got, 2)
	require.Equal(t, "B", got[0].Title)
}

func TestLoad_ErrorKeepsProjection(t *testing.T) {
	docs := remotetest.NewDocs(t)
	seed(t, docs, [2]string{"A", "x"})
	c := NewController(docs, remotetest.NewBlobs())
	require.NoError(t, c.Load(context.Background()))

	docs.Fail("query")
	require.Error(t, c.Load(context.Background()))
	require.Len(t, c.Documents(), 1)
}
