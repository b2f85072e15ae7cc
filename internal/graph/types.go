package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/librarycatalog/catalog-server/internal/domain"
)

// Placeholder values rendered for a book whose author no longer resolves.
const (
	unknownAuthorID   = "unknown_id"
	unknownAuthorName = "unknown"
)

type authorResolver struct {
	root   *Resolver
	author *domain.Author
	// bookCount is filled in when the count was computed alongside the author.
	bookCount *int32
}

func (a *authorResolver) ID() graphql.ID { return graphql.ID(a.author.ID) }
func (a *authorResolver) Name() string   { return a.author.Name }

func (a *authorResolver) Born() *int32 {
	if a.author.Born == nil {
		return nil
	}
	born := int32(*a.author.Born) //nolint:gosec // set from a GraphQL Int
	return &born
}

func (a *authorResolver) BookCount(ctx context.Context) (*int32, error) {
	if a.bookCount != nil {
		return a.bookCount, nil
	}
	n, err := a.root.catalog.BookCount(ctx, &a.author.Name)
	if err != nil {
		return nil, a.root.surface(ctx, "Author.bookCount", err)
	}
	count := int32(n) //nolint:gosec // counts are far below 2^31
	return &count, nil
}

func unknownAuthor(root *Resolver) *authorResolver {
	born := 0
	zero := int32(0)
	return &authorResolver{
		root:      root,
		author:    &domain.Author{ID: unknownAuthorID, Name: unknownAuthorName, Born: &born},
		bookCount: &zero,
	}
}

type bookResolver struct {
	root   *Resolver
	book   *domain.Book
	author domain.ResolvedAuthor
}

func (b *bookResolver) ID() graphql.ID   { return graphql.ID(b.book.ID) }
func (b *bookResolver) Title() string    { return b.book.Title }
func (b *bookResolver) Published() int32 { return int32(b.book.Published) } //nolint:gosec // set from a GraphQL Int

func (b *bookResolver) Genres() []string {
	if b.book.Genres == nil {
		return []string{}
	}
	return b.book.Genres
}

func (b *bookResolver) Author() *authorResolver {
	author, ok := b.author.Author()
	if !ok {
		return unknownAuthor(b.root)
	}
	return &authorResolver{root: b.root, author: author}
}

type userResolver struct {
	user *domain.User
}

func (u *userResolver) ID() graphql.ID        { return graphql.ID(u.user.ID) }
func (u *userResolver) Username() string      { return u.user.Username }
func (u *userResolver) FavoriteGenre() string { return u.user.FavoriteGenre }

type tokenResolver struct {
	value string
}

func (t *tokenResolver) Value() string { return t.value }
