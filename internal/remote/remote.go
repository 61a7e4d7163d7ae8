// Package remote defines the contract the controllers use to reach the hosted
// backend: a document database with one-shot and live queries, and a blob store.
// Implementations live in internal/remote/docstore and internal/storage.
package remote

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Direction is the sort direction of an ordered query.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Fields is the field set of one stored record.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value replaced by the store's clock when
// the write is applied. It may appear at the top level of Insert fields or
// inside an AppendToField value.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Record is one stored record as returned by a query.
type Record struct {
	ID     string
	Fields Fields
}

// Decode copies the record fields into v, which should be a pointer to a
// struct with bson tags.
func (r Record) Decode(v any) error {
	b, err := bson.Marshal(r.Fields)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, v)
}

// Unsubscribe releases a live subscription. Calling it more than once is safe.
type Unsubscribe func()

// SnapshotFunc receives the full ordered result set of a live query.
type SnapshotFunc func([]Record)

// DocumentStore is the document database half of the adapter.
type DocumentStore interface {
	// QueryAll is a one-shot read of a whole collection.
	QueryAll(ctx context.Context, collection, orderBy string, dir Direction) ([]Record, error)
	// Subscribe delivers the ordered collection now and again after every change.
	Subscribe(ctx context.Context, collection, orderBy string, dir Direction, fn SnapshotFunc) (Unsubscribe, error)
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// AppendToField atomically appends value to the array field of record id.
	AppendToField(ctx context.Context, collection, id, field string, value any) error
}

// BlobRef locates stored binary content.
type BlobRef struct {
	Path string
}

// File is an uploaded file as received from the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// BlobStore is the object storage half of the adapter.
type BlobStore interface {
	Store(ctx context.Context, path string, f *File) (BlobRef, error)
	ResolveURL(ctx context.Context, ref BlobRef) (string, error)
	Open(ctx context.Context, ref BlobRef) (io.ReadCloser, error)
}
