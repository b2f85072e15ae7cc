package store

import "github.com/librarycatalog/catalog-server/internal/domain"

// Index declares a secondary lookup on a document field. Name doubles as the
// field name in backends that query documents natively.
type Index[T any] struct {
	Name   string
	Unique bool
	Key    func(*T) string
}

// Schema describes how a document type is stored.
type Schema[T any] struct {
	// Name is the collection name; the Badger key prefix is Name + ":".
	Name    string
	ID      func(*T) string
	Indexes []Index[T]
}

// Index returns the index called name.
func (s Schema[T]) Index(name string) (Index[T], bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// Index names used by the catalog.
const (
	IndexAuthorName   = "name"
	IndexBookTitle    = "title"
	IndexBookAuthor   = "author"
	IndexUserUsername = "username"
)

// Authors are unique by name so find-or-create cannot produce duplicates.
var AuthorSchema = Schema[domain.Author]{
	Name: "authors",
	ID:   func(a *domain.Author) string { return a.ID },
	Indexes: []Index[domain.Author]{
		{Name: IndexAuthorName, Unique: true, Key: func(a *domain.Author) string { return a.Name }},
	},
}

var BookSchema = Schema[domain.Book]{
	Name: "books",
	ID:   func(b *domain.Book) string { return b.ID },
	Indexes: []Index[domain.Book]{
		{Name: IndexBookTitle, Unique: true, Key: func(b *domain.Book) string { return b.Title }},
		{Name: IndexBookAuthor, Key: func(b *domain.Book) string { return b.AuthorID }},
	},
}

var UserSchema = Schema[domain.User]{
	Name: "users",
	ID:   func(u *domain.User) string { return u.ID },
	Indexes: []Index[domain.User]{
		{Name: IndexUserUsername, Unique: true, Key: func(u *domain.User) string { return u.Username }},
	},
}
