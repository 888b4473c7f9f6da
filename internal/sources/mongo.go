package sources

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// MongoSource reads the documents of one collection into a table. Columns are
// ordered by first appearance across documents and _id is dropped.
type MongoSource struct {
	URI        string
	Database   string
	Collection string
	Filter     bson.M
	Limit      int64
	Timeout    time.Duration

	// Client, when set, is used instead of connecting to URI
	Client *mongo.Client
}

// Load implements Source
func (s MongoSource) Load(ctx context.Context) (*table.Table, error) {
	if s.Collection == "" {
		return nil, ErrMissingCollection
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := s.Client
	if client == nil {
		var err error
		client, err = mongo.Connect(options.Client().ApplyURI(s.URI))
		if err != nil {
			return nil, apierrors.NewSourceError("connect mongo", err)
		}
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			_ = client.Disconnect(dctx)
		}()
	}

	filter := s.Filter
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if s.Limit > 0 {
		opts.SetLimit(s.Limit)
	}

	cursor, err := client.Database(s.Database).Collection(s.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, apierrors.NewSourceError("find failed", err).WithContext("collection", s.Collection)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return DocumentsTable(docs)
}

// DocumentsTable converts decoded documents into a table
func DocumentsTable(docs []bson.D) (*table.Table, error) {
	var columns []string
	seen := make(map[string]struct{})
	records := make([]map[string]any, len(docs))

	for i, doc := range docs {
		rec := make(map[string]any, len(doc))
		for _, elem := range doc {
			if elem.Key == "_id" {
				continue
			}
			if _, ok := seen[elem.Key]; !ok {
				seen[elem.Key] = struct{}{}
				columns = append(columns, elem.Key)
			}
			rec[elem.Key] = bsonValue(elem.Value)
		}
		records[i] = rec
	}

	return table.FromRecords(columns, records)
}

func bsonValue(v any) any {
	switch x := v.(type) {
	case bson.DateTime:
		return x.Time().UTC()
	case bson.ObjectID:
		return x.Hex()
	case bson.Decimal128:
		return x.String()
	case bson.Null, bson.Undefined:
		return nil
	case bson.D:
		b, err := bson.MarshalExtJSON(x, false, false)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case bson.A:
		return fmt.Sprint([]any(x))
	default:
		return x
	}
}
