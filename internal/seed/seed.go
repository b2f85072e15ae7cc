// Package seed loads the starter catalog into a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/service"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// AuthorFixture is a starter author. Born is nil when the year is unknown.
type AuthorFixture struct {
	Name string
	Born *int
}

// BookFixture is a starter book, attributed to its author by name.
type BookFixture struct {
	Title     string
	Published int
	Author    string
	Genres    []string
}

func year(y int) *int { return &y }

// Authors is the starter author list.
var Authors = []AuthorFixture{
	{Name: "Robert Martin", Born: year(1952)},
	{Name: "Martin Fowler", Born: year(1963)},
	{Name: "Fyodor Dostoevsky", Born: year(1821)},
	{Name: "Joshua Kerievsky"},
	{Name: "Sandi Metz"},
}

// Books is the starter book list.
var Books = []BookFixture{
	{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{"refactoring"}},
	{Title: "Agile software development", Published: 2002, Author: "Robert Martin", Genres: []string{"agile", "patterns", "design"}},
	{Title: "Refactoring, edition 2", Published: 2018, Author: "Martin Fowler", Genres: []string{"refactoring"}},
	{Title: "Refactoring to patterns", Published: 2008, Author: "Joshua Kerievsky", Genres: []string{"refactoring", "patterns"}},
	{Title: "Practical Object-Oriented Design, An Agile Primer Using Ruby", Published: 2012, Author: "Sandi Metz", Genres: []string{"refactoring", "design"}},
	{Title: "Crime and punishment", Published: 1866, Author: "Fyodor Dostoevsky", Genres: []string{"classic", "crime"}},
	{Title: "The Demon ", Published: 1872, Author: "Fyodor Dostoevsky", Genres: []string{"classic", "revolution"}},
}

// Result counts what a seeding run changed.
type Result struct {
	BooksAdded     int
	BooksSkipped   int
	AuthorsUpdated int
}

// Seeder writes fixtures through the catalog service so they pass the same
// validation as API mutations.
type Seeder struct {
	store   store.Store
	catalog *service.CatalogService
	logger  *slog.Logger
}

// New creates a seeder.
func New(st store.Store, catalog *service.CatalogService, logger *slog.Logger) *Seeder {
	return &Seeder{store: st, catalog: catalog, logger: logger}
}

// systemUser authorizes fixture writes. It is never persisted.
var systemUser = &domain.User{ID: "system", Username: "system", FavoriteGenre: "all"}

// Catalog adds every fixture book whose title is not stored yet and fills in
// unknown birth years of fixture authors. Running it twice changes nothing.
func (s *Seeder) Catalog(ctx context.Context, authors []AuthorFixture, books []BookFixture) (Result, error) {
	ctx = auth.WithUser(ctx, systemUser)
	var res Result

	for _, b := range books {
		_, err := s.store.Books().FindOne(ctx, store.IndexBookTitle, b.Title)
		if err == nil {
			res.BooksSkipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("look up book %q: %w", b.Title, err)
		}

		if _, err := s.catalog.AddBook(ctx, service.AddBookInput{
			Title:     b.Title,
			Published: b.Published,
			Author:    b.Author,
			Genres:    b.Genres,
		}); err != nil {
			return res, fmt.Errorf("add book %q: %w", b.Title, err)
		}
		res.BooksAdded++
	}

	for _, a := range authors {
		if a.Born == nil {
			continue
		}

		existing, err := s.store.Authors().FindOne(ctx, store.IndexAuthorName, a.Name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("look up author %q: %w", a.Name, err)
		}
		if existing.Born != nil {
			continue
		}

		if _, err := s.catalog.EditAuthor(ctx, a.Name, *a.Born); err != nil {
			return res, fmt.Errorf("set birth year of %q: %w", a.Name, err)
		}
		res.AuthorsUpdated++
	}

	s.logger.Info("catalog seeded",
		slog.Int("books_added", res.BooksAdded),
		slog.Int("books_skipped", res.BooksSkipped),
		slog.Int("authors_updated", res.AuthorsUpdated),
	)
	return res, nil
}
