package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/metrics"
)

const mongoListLimit = 200

// MongoDirect 配置了 MONGODB_URI 时直接用官方驱动读取集合，省去一层 REST
type MongoDirect struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewMongoDirect 连接并 ping 一次，失败直接返回错误
func NewMongoDirect(ctx context.Context, uri, database string, timeout time.Duration) (*MongoDirect, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return &MongoDirect{client: client, db: client.Database(database), timeout: timeout}, nil
}

func (m *MongoDirect) Source() listing.Source {
	return listing.SourceMongoDB
}

func (m *MongoDirect) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDirect) List(ctx context.Context, kind listing.Kind) (recs []Record, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceMongoDB), string(kind), start, err) }()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.Find().SetLimit(mongoListLimit).SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := m.db.Collection(collectionPath(kind)).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: find %s: %w", kind, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decode %s: %w: %w", kind, ErrMalformedResponse, err)
	}
	recs = make([]Record, 0, len(docs))
	for _, d := range docs {
		recs = append(recs, &MongoRecord{Doc: map[string]any(d)})
	}
	return recs, nil
}

func (m *MongoDirect) Get(ctx context.Context, kind listing.Kind, id string) (rec Record, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceMongoDB), string(kind), start, err) }()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	filter := mongoIDFilter(id)
	var doc bson.M
	err = m.db.Collection(collectionPath(kind)).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: find %s %s: %w", kind, id, err)
	}
	return &MongoRecord{Doc: map[string]any(doc)}, nil
}

// mongoIDFilter 合法 ObjectID 按 _id 查询，否则按 slug
func mongoIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"slug": id}
}
