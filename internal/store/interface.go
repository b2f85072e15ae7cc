// Package store defines the document storage abstraction behind the catalog
// and its embedded Badger implementation. Other backends live in subpackages.
package store

import (
	"context"
	"iter"

	"github.com/librarycatalog/catalog-server/internal/domain"
)

// Collection is a set of documents of one type addressed by id and by the
// indexes declared in its Schema. Implementations are safe for concurrent use
// and never hand out pointers they still hold.
type Collection[T any] interface {
	// Create inserts doc. A taken id or unique index value yields ErrAlreadyExists.
	Create(ctx context.Context, doc *T) error
	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*T, error)
	// FindOne returns the document whose index value equals value or ErrNotFound.
	FindOne(ctx context.Context, index, value string) (*T, error)
	// FindAll yields every document whose index value equals value.
	FindAll(ctx context.Context, index, value string) iter.Seq2[*T, error]
	// List yields every document in the backend's natural order.
	List(ctx context.Context) iter.Seq2[*T, error]
	// Update replaces the document with the same id or returns ErrNotFound.
	Update(ctx context.Context, doc *T) error
	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)
}

// Store groups the catalog collections.
type Store interface {
	Authors() Collection[domain.Author]
	Books() Collection[domain.Book]
	Users() Collection[domain.User]
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
