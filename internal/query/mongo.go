package query

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"pmtexport/internal/participant"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// MongoSource runs queries as aggregations against one collection.
type MongoSource struct {
	coll *mongo.Collection
}

// NewMongoSource wraps a collection.
func NewMongoSource(coll *mongo.Collection) *MongoSource {
	return &MongoSource{coll: coll}
}

// Fetch implements Source. An empty ID set returns no documents without a
// round trip.
func (s *MongoSource) Fetch(ctx context.Context, q Query) ([]participant.Document, error) {
	if q.Filter.Window == nil && q.Filter.IDs != nil && len(q.Filter.IDs) == 0 {
		return []participant.Document{}, nil
	}
	pipeline, err := Pipeline(q)
	if err != nil {
		return nil, err
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", s.coll.Name(), err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.coll.Name(), err)
	}
	docs := make([]participant.Document, len(raw))
	for i, m := range raw {
		docs[i] = participant.Document(m)
	}
	return docs, nil
}
