package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/citruscircuits/calcserver/pkg/logger"
)

const defaultOperationTimeout = 10 * time.Second

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	log     logger.Logger
	timeout time.Duration
}

// Connect dials uri, verifies the connection and returns a store bound to database.
func Connect(ctx context.Context, uri, database string, opts ...MongoOption) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	s := NewMongoStore(client, database, opts...)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, database string, opts ...MongoOption) *MongoStore {
	s := &MongoStore{
		client:  client,
		db:      client.Database(database),
		log:     logger.Get().Named("mongo_store"),
		timeout: defaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the server is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureUniqueIndex creates an ascending unique index over fields.
func (s *MongoStore) EnsureUniqueIndex(ctx context.Context, collection string, fields ...string) error {
	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	index, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create unique index on %s: %w", name, err)
	}
	s.log.Info(ctx, "unique index ready", logger.String("collection", name), logger.String("index", index))
	return nil
}

// Find implements Store.
func (s *MongoStore) Find(ctx context.Context, collection string, filter Filter, out any) (err error) {
	start := time.Now()
	defer func() { observe("find", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	if _, err = checkTarget(out); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.db.Collection(name).Find(ctx, toBSON(filter))
	if err != nil {
		return fmt.Errorf("find %s: %w", name, err)
	}
	if err = cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s documents: %w", name, err)
	}
	return nil
}

// InsertDocuments implements Store.
func (s *MongoStore) InsertDocuments(ctx context.Context, collection string, docs []any) (err error) {
	start := time.Now()
	defer func() { observe("insert", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err = s.db.Collection(name).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

// DeleteData implements Store.
func (s *MongoStore) DeleteData(ctx context.Context, collection string, filter Filter) (err error) {
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err = s.db.Collection(name).DeleteMany(ctx, toBSON(filter)); err != nil {
		return fmt.Errorf("delete from %s: %w", name, err)
	}
	return nil
}

// UpdateDocument implements Store with an upserting replace. Two concurrent
// upserts of a new key can both miss and race on the unique index; the loser
// is retried once, which then finds and replaces the winner's document.
func (s *MongoStore) UpdateDocument(ctx context.Context, collection string, doc any, query Filter) (err error) {
	start := time.Now()
	defer func() { observe("update", start, err) }()

	name, err := resolveCollection(collection)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll := s.db.Collection(name)
	opts := options.Replace().SetUpsert(true)
	_, err = coll.ReplaceOne(ctx, toBSON(query), doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		s.log.Debug(ctx, "upsert raced on unique key, retrying", logger.String("collection", name))
		_, err = coll.ReplaceOne(ctx, toBSON(query), doc, opts)
	}
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", name, err)
	}
	return nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toBSON(filter Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}
