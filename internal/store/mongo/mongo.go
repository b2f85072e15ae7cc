// Package mongo is a store.Store backed by MongoDB. Each collection carries
// the indexes declared in its store.Schema, so uniqueness is enforced by the server.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// Collection is a store.Collection over one MongoDB collection.
type Collection[T any] struct {
	col    *mongo.Collection
	schema store.Schema[T]
}

// NewCollection wraps the collection named after schema in db.
func NewCollection[T any](db *mongo.Database, schema store.Schema[T]) *Collection[T] {
	return &Collection[T]{col: db.Collection(schema.Name), schema: schema}
}

// EnsureIndexes creates the schema's indexes if they are missing.
func (c *Collection[T]) EnsureIndexes(ctx context.Context) error {
	models := make([]mongo.IndexModel, 0, len(c.schema.Indexes))
	for _, idx := range c.schema.Indexes {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: idx.Name, Value: 1}},
			Options: options.Index().SetUnique(idx.Unique),
		})
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := c.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes on %s: %w", c.schema.Name, err)
	}
	return nil
}

// translate maps duplicate key errors onto store sentinels. The server names
// the violated index ("name_1") in the error message.
func (c *Collection[T]) translate(err error, doc *T) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	for _, idx := range c.schema.Indexes {
		if idx.Unique && strings.Contains(err.Error(), "index: "+idx.Name+"_1") {
			return store.IndexConflict(idx.Name, idx.Key(doc))
		}
	}
	return store.ErrAlreadyExists.WithCause(err)
}

func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	if c.schema.ID(doc) == "" {
		return fmt.Errorf("create %s: document has no id", c.schema.Name)
	}
	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.translate(err, doc)
		}
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

func (c *Collection[T]) findOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	err := c.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", c.schema.Name, err)
	}
	return &doc, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) FindOne(ctx context.Context, index, value string) (*T, error) {
	if _, ok := c.schema.Index(index); !ok {
		return nil, store.ErrUnknownIndex.WithMessage("unknown index " + c.schema.Name + "." + index)
	}
	return c.findOne(ctx, bson.M{index: value})
}

func (c *Collection[T]) FindAll(ctx context.Context, index, value string) iter.Seq2[*T, error] {
	if _, ok := c.schema.Index(index); !ok {
		return func(yield func(*T, error) bool) {
			yield(nil, store.ErrUnknownIndex.WithMessage("unknown index "+c.schema.Name+"."+index))
		}
	}
	return c.find(ctx, bson.M{index: value})
}

func (c *Collection[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return c.find(ctx, bson.M{})
}

func (c *Collection[T]) find(ctx context.Context, filter bson.M) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		cur, err := c.col.Find(ctx, filter)
		if err != nil {
			yield(nil, fmt.Errorf("mongo find %s: %w", c.schema.Name, err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc T
			if err := cur.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("mongo decode %s: %w", c.schema.Name, err))
				return
			}
			if !yield(&doc, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *Collection[T]) Update(ctx context.Context, doc *T) error {
	res, err := c.col.ReplaceOne(ctx, bson.M{"_id": c.schema.ID(doc)}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.translate(err, doc)
		}
		return fmt.Errorf("mongo replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	n, err := c.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongo count %s: %w", c.schema.Name, err)
	}
	return int(n), nil
}

// Store is the MongoDB store.Store.
type Store struct {
	client *mongo.Client
	logger *slog.Logger

	authors *Collection[domain.Author]
	books   *Collection[domain.Book]
	users   *Collection[domain.User]
}

// Connect dials uri, verifies the connection and ensures every index exists.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	s := New(client.Database(database), logger)
	s.client = client

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	if logger != nil {
		logger.Info("MongoDB connected", "database", database)
	}
	return s, nil
}

// New wraps an existing database handle. The caller owns the client.
func New(db *mongo.Database, logger *slog.Logger) *Store {
	return &Store{
		client:  db.Client(),
		logger:  logger,
		authors: NewCollection(db, store.AuthorSchema),
		books:   NewCollection(db, store.BookSchema),
		users:   NewCollection(db, store.UserSchema),
	}
}

// EnsureIndexes creates the indexes of every collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	return errors.Join(
		s.authors.EnsureIndexes(ctx),
		s.books.EnsureIndexes(ctx),
		s.users.EnsureIndexes(ctx),
	)
}

// Authors returns the authors collection.
func (s *Store) Authors() store.Collection[domain.Author] { return s.authors }

// Books returns the books collection.
func (s *Store) Books() store.Collection[domain.Book] { return s.books }

// Users returns the users collection.
func (s *Store) Users() store.Collection[domain.User] { return s.users }

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing MongoDB connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ store.Store = (*Store)(nil)
