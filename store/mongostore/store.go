// Package mongostore implements engine.Store on top of MongoDB, the
// document store the engine's Config Store interface assumes as its
// persistence layer.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kestrelapi/ratelimiter/engine"
)

const defaultTimeout = 5 * time.Second

// Store implements engine.Store against three collections: api_keys,
// configs, and request_logs.
type Store struct {
	client  *mongo.Client
	apiKeys *mongo.Collection
	configs *mongo.Collection
	logs    *mongo.Collection
}

// Connect dials uri and returns a Store backed by database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	return &Store{
		client:  client,
		apiKeys: db.Collection("api_keys"),
		configs: db.Collection("configs"),
		logs:    db.Collection("request_logs"),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultTimeout)
}

func (s *Store) PutApiKey(record engine.ApiKeyRecord) error {
	ctx, cancel := withTimeout()
	defer cancel()
	_, err := s.apiKeys.InsertOne(ctx, record)
	return err
}

func (s *Store) ListApiKeys() ([]engine.ApiKeyRecord, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	cursor, err := s.apiKeys.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []engine.ApiKeyRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindApiKey(apiKey string) (engine.ApiKeyRecord, bool, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	var record engine.ApiKeyRecord
	err := s.apiKeys.FindOne(ctx, bson.M{"apiKey": apiKey}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return engine.ApiKeyRecord{}, false, nil
	}
	if err != nil {
		return engine.ApiKeyRecord{}, false, err
	}
	return record, true, nil
}

func (s *Store) PutConfig(record engine.RateLimitConfig) error {
	ctx, cancel := withTimeout()
	defer cancel()
	_, err := s.configs.InsertOne(ctx, record)
	return err
}

func (s *Store) ListConfigs() ([]engine.RateLimitConfig, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	cursor, err := s.configs.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []engine.RateLimitConfig
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LatestConfigFor(apiKey string) (engine.RateLimitConfig, bool, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var cfg engine.RateLimitConfig
	err := s.configs.FindOne(ctx, bson.M{"apiKey": apiKey}, opts).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return engine.RateLimitConfig{}, false, nil
	}
	if err != nil {
		return engine.RateLimitConfig{}, false, err
	}
	return cfg, true, nil
}

func (s *Store) AppendLog(record engine.RequestLog) error {
	ctx, cancel := withTimeout()
	defer cancel()
	_, err := s.logs.InsertOne(ctx, record)
	return err
}

func (s *Store) RecentLogs(limit int) ([]engine.RequestLog, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.logs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []engine.RequestLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountLogs() (int64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return s.logs.CountDocuments(ctx, bson.M{})
}

func (s *Store) DeleteAllLogs() error {
	ctx, cancel := withTimeout()
	defer cancel()
	_, err := s.logs.DeleteMany(ctx, bson.M{})
	return err
}

var _ engine.Store = (*Store)(nil)
