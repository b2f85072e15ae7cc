// Package service implements the catalog's queries and mutations on top of a
// store.Store and publishes book events on the event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
	"github.com/librarycatalog/catalog-server/internal/id"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/store"
	"github.com/librarycatalog/catalog-server/internal/validation"
)

// TopicBookAdded carries every book created by AddBook.
const TopicBookAdded = "bookAdded"

// CatalogService answers catalog queries and applies catalog mutations.
type CatalogService struct {
	store     store.Store
	feed      *pubsub.Topic[domain.PopulatedBook]
	logger    *slog.Logger
	validator *validation.Validator
}

// NewCatalogService creates a catalog service publishing on feed.
func NewCatalogService(st store.Store, feed *pubsub.Topic[domain.PopulatedBook], logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     st,
		feed:      feed,
		logger:    logger,
		validator: validation.New(),
	}
}

// AuthorCount returns the number of stored authors.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	return s.store.Authors().Count(ctx)
}

// AllAuthors returns every author with its book count, in store order.
func (s *CatalogService) AllAuthors(ctx context.Context) ([]domain.AuthorSummary, error) {
	counts := make(map[string]int)
	for book, err := range s.store.Books().List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		counts[book.AuthorID]++
	}

	summaries := []domain.AuthorSummary{}
	for author, err := range s.store.Authors().List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		summaries = append(summaries, domain.AuthorSummary{Author: author, BookCount: counts[author.ID]})
	}
	return summaries, nil
}

// BookCount returns the total number of books, or the number attributed to
// the named author when author is non-nil. An unknown author has zero books.
func (s *CatalogService) BookCount(ctx context.Context, author *string) (int, error) {
	if author == nil {
		return s.store.Books().Count(ctx)
	}

	a, err := s.authorByName(ctx, *author)
	if err != nil || a == nil {
		return 0, err
	}

	n := 0
	for _, err := range s.store.Books().FindAll(ctx, store.IndexBookAuthor, a.ID) {
		if err != nil {
			return 0, fmt.Errorf("count books: %w", err)
		}
		n++
	}
	return n, nil
}

// AllBooks returns books matching every supplied filter, each with its author resolved.
// Genre matching is exact and case-sensitive.
func (s *CatalogService) AllBooks(ctx context.Context, author, genre *string) ([]domain.PopulatedBook, error) {
	books := s.store.Books().List(ctx)
	if author != nil {
		a, err := s.authorByName(ctx, *author)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return []domain.PopulatedBook{}, nil
		}
		books = s.store.Books().FindAll(ctx, store.IndexBookAuthor, a.ID)
	}

	resolved := make(map[string]domain.ResolvedAuthor)
	out := []domain.PopulatedBook{}
	for book, err := range books {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		if genre != nil && !book.HasGenre(*genre) {
			continue
		}
		pb, err := s.populate(ctx, book, resolved)
		if err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return out, nil
}

// AddBookInput holds the addBook arguments.
type AddBookInput struct {
	Title     string
	Published int
	Author    string
	Genres    []string
}

func (in AddBookInput) args() map[string]any {
	return map[string]any{
		"title":     in.Title,
		"published": in.Published,
		"author":    in.Author,
		"genres":    in.Genres,
	}
}

// AddBook stores a new book, creating its author on first mention, and
// publishes it on TopicBookAdded before returning. Requires a current user.
func (s *CatalogService) AddBook(ctx context.Context, in AddBookInput) (*domain.PopulatedBook, error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil, domainerrors.Unauthenticated("not authenticated")
	}

	if in.Genres == nil {
		in.Genres = []string{}
	}
	args := in.args()
	conflict := fmt.Sprintf("book with title %q already exists", in.Title)

	bookID, err := id.Generate(id.Book)
	if err != nil {
		return nil, err
	}
	authorID, err := id.Generate(id.Author)
	if err != nil {
		return nil, err
	}

	// The book is checked against a provisional author id so a rejected
	// book never leaves a new author behind.
	book := &domain.Book{
		ID:        bookID,
		Title:     in.Title,
		Published: in.Published,
		AuthorID:  authorID,
		Genres:    in.Genres,
	}
	if err := s.validator.Validate(book); err != nil {
		return nil, invalidInput(err, "", args)
	}
	switch _, err := s.store.Books().FindOne(ctx, store.IndexBookTitle, in.Title); {
	case err == nil:
		return nil, invalidInput(store.ErrAlreadyExists, conflict, args)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find book %q: %w", in.Title, err)
	}

	author, err := s.findOrCreateAuthor(ctx, in.Author, authorID, args)
	if err != nil {
		return nil, err
	}

	book.AuthorID = author.ID
	if err := s.store.Books().Create(ctx, book); err != nil {
		return nil, invalidInput(err, conflict, args)
	}

	pb := domain.PopulatedBook{Book: book, Author: domain.KnownAuthor(author)}

	s.logger.Info("book added",
		slog.String("book_id", book.ID),
		slog.String("author_id", author.ID),
		slog.String("user_id", user.ID))

	if err := s.feed.Publish(ctx, pb); err != nil {
		s.logger.Error("failed to publish book",
			slog.String("topic", s.feed.Name()),
			slog.String("book_id", book.ID),
			slog.String("error", err.Error()))
	}

	return &pb, nil
}

// EditAuthor sets the birth year of the named author. It returns nil without
// error when no author has that name. Requires a current user.
func (s *CatalogService) EditAuthor(ctx context.Context, name string, born int) (*domain.Author, error) {
	if auth.UserFromContext(ctx) == nil {
		return nil, domainerrors.Unauthenticated("not authenticated")
	}

	author, err := s.authorByName(ctx, name)
	if err != nil || author == nil {
		return nil, err
	}

	author.Born = &born
	if err := s.store.Authors().Update(ctx, author); err != nil {
		args := map[string]any{"name": name, "setBornTo": born}
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.UserInput("author no longer exists").WithInvalidArgs(args).WithCause(err)
		}
		return nil, invalidInput(err, "", args)
	}

	return author, nil
}

// authorByName returns nil without error for unknown names.
func (s *CatalogService) authorByName(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.Authors().FindOne(ctx, store.IndexAuthorName, name)
	switch {
	case err == nil:
		return author, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find author %q: %w", name, err)
	}
}

// findOrCreateAuthor returns the author called name, storing a new one under
// newID when none exists.
func (s *CatalogService) findOrCreateAuthor(ctx context.Context, name, newID string, args map[string]any) (*domain.Author, error) {
	if author, err := s.authorByName(ctx, name); err != nil || author != nil {
		return author, err
	}

	author := &domain.Author{ID: newID, Name: name}
	if err := s.validator.Validate(author); err != nil {
		return nil, invalidInput(err, "", args)
	}

	err := s.store.Authors().Create(ctx, author)
	if err == nil {
		s.logger.Info("author created", slog.String("author_id", author.ID))
		return author, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("create author: %w", err)
	}

	// A concurrent request created the same name first.
	existing, lookupErr := s.authorByName(ctx, name)
	if lookupErr != nil || existing == nil {
		return nil, invalidInput(err, fmt.Sprintf("author %q already exists", name), args)
	}
	return existing, nil
}

// ResolveAuthor follows a book's author reference, yielding the unknown
// variant when the author does not exist.
func (s *CatalogService) ResolveAuthor(ctx context.Context, authorID string) (domain.ResolvedAuthor, error) {
	author, err := s.store.Authors().Get(ctx, authorID)
	switch {
	case err == nil:
		return domain.KnownAuthor(author), nil
	case errors.Is(err, store.ErrNotFound):
		return domain.UnknownAuthor(), nil
	default:
		return domain.ResolvedAuthor{}, fmt.Errorf("resolve author %q: %w", authorID, err)
	}
}

func (s *CatalogService) populate(ctx context.Context, book *domain.Book, seen map[string]domain.ResolvedAuthor) (domain.PopulatedBook, error) {
	ra, ok := seen[book.AuthorID]
	if !ok {
		var err error
		if ra, err = s.ResolveAuthor(ctx, book.AuthorID); err != nil {
			return domain.PopulatedBook{}, err
		}
		seen[book.AuthorID] = ra
	}
	return domain.PopulatedBook{Book: book, Author: ra}, nil
}

// SubscribeBookAdded returns books added after the call until ctx is done.
func (s *CatalogService) SubscribeBookAdded(ctx context.Context) (<-chan domain.PopulatedBook, error) {
	return s.feed.Subscribe(ctx)
}

// invalidInput converts validation and uniqueness failures into BAD_USER_INPUT
// errors carrying args. conflictMsg replaces the store message for uniqueness
// failures. Anything else is returned wrapped and unclassified.
func invalidInput(err error, conflictMsg string, args map[string]any) error {
	var de *domainerrors.Error
	switch {
	case errors.As(err, &de) && de.Code == domainerrors.CodeUserInput:
		return de.WithInvalidArgs(args)
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrConflict):
		if conflictMsg == "" {
			conflictMsg = err.Error()
		}
		return domainerrors.UserInput(conflictMsg).WithInvalidArgs(args).WithCause(err)
	default:
		return fmt.Errorf("persist: %w", err)
	}
}
