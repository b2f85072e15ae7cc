// Package memory is a process-local store.Store used by tests and the memory store driver.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// Collection keeps encoded documents in insertion order. Documents are stored
// as JSON so callers can never alias stored state.
type Collection[T any] struct {
	schema store.Schema[T]

	mu     sync.RWMutex
	docs   map[string][]byte
	order  []string
	unique map[string]map[string]string // index -> value -> id
}

// NewCollection creates an empty collection for schema.
func NewCollection[T any](schema store.Schema[T]) *Collection[T] {
	unique := make(map[string]map[string]string)
	for _, idx := range schema.Indexes {
		if idx.Unique {
			unique[idx.Name] = make(map[string]string)
		}
	}
	return &Collection[T]{
		schema: schema,
		docs:   make(map[string][]byte),
		unique: unique,
	}
}

func decode[T any](data []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// Create implements store.Collection.
func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := c.schema.ID(doc)
	if id == "" {
		return fmt.Errorf("create %s: document has no id", c.schema.Name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; ok {
		return store.ErrAlreadyExists
	}
	for _, idx := range c.schema.Indexes {
		if !idx.Unique {
			continue
		}
		value := idx.Key(doc)
		if _, taken := c.unique[idx.Name][value]; value != "" && taken {
			return store.IndexConflict(idx.Name, value)
		}
	}

	c.docs[id] = data
	c.order = append(c.order, id)
	c.setIndexes(doc, id)
	return nil
}

func (c *Collection[T]) setIndexes(doc *T, id string) {
	for _, idx := range c.schema.Indexes {
		if value := idx.Key(doc); idx.Unique && value != "" {
			c.unique[idx.Name][value] = id
		}
	}
}

// Get implements store.Collection.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	data, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return decode[T](data)
}

// FindOne implements store.Collection.
func (c *Collection[T]) FindOne(ctx context.Context, index, value string) (*T, error) {
	idx, ok := c.schema.Index(index)
	if !ok {
		return nil, store.ErrUnknownIndex.WithMessage("unknown index " + c.schema.Name + "." + index)
	}
	if idx.Unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.RLock()
		id, found := c.unique[index][value]
		c.mu.RUnlock()
		if !found {
			return nil, store.ErrNotFound
		}
		return c.Get(ctx, id)
	}

	for doc, err := range c.FindAll(ctx, index, value) {
		return doc, err
	}
	return nil, store.ErrNotFound
}

// FindAll implements store.Collection with a scan over the collection.
func (c *Collection[T]) FindAll(ctx context.Context, index, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		idx, ok := c.schema.Index(index)
		if !ok {
			yield(nil, store.ErrUnknownIndex.WithMessage("unknown index "+c.schema.Name+"."+index))
			return
		}
		for doc, err := range c.List(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if idx.Key(doc) != value {
				continue
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// List implements store.Collection. It iterates a snapshot taken when iteration starts.
func (c *Collection[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		c.mu.RLock()
		snapshot := make([][]byte, 0, len(c.order))
		for _, id := range c.order {
			snapshot = append(snapshot, c.docs[id])
		}
		c.mu.RUnlock()

		for _, data := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			doc, err := decode[T](data)
			if !yield(doc, err) || err != nil {
				return
			}
		}
	}
}

// Update implements store.Collection.
func (c *Collection[T]) Update(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := c.schema.ID(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	oldData, ok := c.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	old, err := decode[T](oldData)
	if err != nil {
		return err
	}

	for _, idx := range c.schema.Indexes {
		if !idx.Unique {
			continue
		}
		value := idx.Key(doc)
		if owner, taken := c.unique[idx.Name][value]; value != "" && taken && owner != id {
			return store.IndexConflict(idx.Name, value)
		}
	}

	for _, idx := range c.schema.Indexes {
		if idx.Unique {
			delete(c.unique[idx.Name], idx.Key(old))
		}
	}
	c.docs[id] = data
	c.setIndexes(doc, id)
	return nil
}

// Count implements store.Collection.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs), nil
}

// Store is an in-memory store.Store.
type Store struct {
	authors *Collection[domain.Author]
	books   *Collection[domain.Book]
	users   *Collection[domain.User]
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		authors: NewCollection(store.AuthorSchema),
		books:   NewCollection(store.BookSchema),
		users:   NewCollection(store.UserSchema),
	}
}

// Authors returns the authors collection.
func (s *Store) Authors() store.Collection[domain.Author] { return s.authors }

// Books returns the books collection.
func (s *Store) Books() store.Collection[domain.Book] { return s.books }

// Users returns the users collection.
func (s *Store) Users() store.Collection[domain.User] { return s.users }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
