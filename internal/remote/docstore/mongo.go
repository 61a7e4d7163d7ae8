package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyhub/studyhub/internal/remote"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEngine implements Engine on a MongoDB database. Writes go through
// update pipelines so that server timestamps are taken from the database
// clock ($$NOW) and array appends happen server-side in one atomic update.
type MongoEngine struct {
	db *mongo.Database
}

func NewMongoEngine(db *mongo.Database) *MongoEngine {
	return &MongoEngine{db: db}
}

// EnsureIndexes creates a descending index on orderBy for each collection.
func (m *MongoEngine) EnsureIndexes(ctx context.Context, orderBy string, collections ...string) error {
	for _, c := range collections {
		idx := mongo.IndexModel{Keys: bson.D{{Key: orderBy, Value: -1}, {Key: "_id", Value: -1}}}
		if _, err := m.db.Collection(c).Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("index %s.%s: %w", c, orderBy, err)
		}
	}
	return nil
}

// expr converts a field value into an aggregation expression. Plain values are
// wrapped in $literal so user text starting with "$" is never read as a path.
func expr(v any) any {
	if remote.IsServerTimestamp(v) {
		return "$$NOW"
	}
	switch vv := v.(type) {
	case remote.Fields:
		d := bson.D{}
		for k, x := range vv {
			d = append(d, bson.E{Key: k, Value: expr(x)})
		}
		return d
	case map[string]any:
		return expr(remote.Fields(vv))
	default:
		return bson.M{"$literal": v}
	}
}

func (m *MongoEngine) Insert(ctx context.Context, collection string, fields remote.Fields) (string, error) {
	id := primitive.NewObjectID()
	set := bson.D{}
	for k, v := range fields {
		set = append(set, bson.E{Key: k, Value: expr(v)})
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	_, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, pipeline, options.Update().SetUpsert(true))
	if err != nil {
		return "", err
	}
	return id.Hex(), nil
}

func (m *MongoEngine) AppendToField(ctx context.Context, collection, id, field string, value any) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return remote.ErrNotFound
	}
	appended := bson.M{"$concatArrays": bson.A{
		bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}},
		bson.A{expr(value)},
	}}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: field, Value: appended}}}}}
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": oid}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (m *MongoEngine) QueryAll(ctx context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: orderBy, Value: int(dir)}, {Key: "_id", Value: int(dir)}})
	cur, err := m.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []remote.Record{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := toRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

func toRecord(doc bson.M) (remote.Record, error) {
	var id string
	switch v := doc["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	default:
		return remote.Record{}, errors.New("record without usable _id")
	}
	delete(doc, "_id")
	return remote.Record{ID: id, Fields: remote.Fields(doc)}, nil
}
