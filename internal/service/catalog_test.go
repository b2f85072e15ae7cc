package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
)

func signedIn(t *testing.T) context.Context {
	t.Helper()
	return auth.WithUser(t.Context(), &domain.User{ID: "user-1", Username: "mluukkai", FavoriteGenre: "refactoring"})
}

func addBook(t *testing.T, f *fixture, title, author string, genres ...string) *domain.PopulatedBook {
	t.Helper()
	pb, err := f.catalog.AddBook(signedIn(t), AddBookInput{
		Title:     title,
		Published: 2000,
		Author:    author,
		Genres:    genres,
	})
	require.NoError(t, err)
	return pb
}

func titles(books []domain.PopulatedBook) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Book.Title
	}
	return out
}

func TestCatalog_EmptyStore(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	n, err := f.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.catalog.BookCount(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	authors, err := f.catalog.AllAuthors(ctx)
	require.NoError(t, err)
	assert.NotNil(t, authors)
	assert.Empty(t, authors)

	books, err := f.catalog.AllBooks(ctx, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestCatalog_AddBookRequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.AddBook(t.Context(), AddBookInput{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthenticated))

	n, _ := f.catalog.AuthorCount(t.Context())
	assert.Zero(t, n)
	n, _ = f.catalog.BookCount(t.Context(), nil)
	assert.Zero(t, n)
}

func TestCatalog_AddBookFindsOrCreatesAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	first := addBook(t, f, "Clean Code", "Robert Martin", "refactoring")
	second := addBook(t, f, "Agile software development", "Robert Martin", "agile", "patterns", "design")

	a1, ok := first.Author.Author()
	require.True(t, ok)
	a2, ok := second.Author.Author()
	require.True(t, ok)
	assert.Equal(t, a1.ID, a2.ID)
	assert.Nil(t, a1.Born)

	n, err := f.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"agile", "patterns", "design"}, second.Book.Genres)
}

func TestCatalog_AddBookNormalizesGenres(t *testing.T) {
	f := newFixture(t)

	pb := addBook(t, f, "The Demon", "Fyodor Dostoevsky")
	assert.NotNil(t, pb.Book.Genres)
	assert.Empty(t, pb.Book.Genres)
}

func TestCatalog_AddBookInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		input  AddBookInput
		prime  func(t *testing.T, f *fixture)
		assert func(t *testing.T, f *fixture)
	}{
		{
			name:  "title too short",
			input: AddBookInput{Title: "X", Published: 2001, Author: "Sandi Metz", Genres: []string{"ruby"}},
			assert: func(t *testing.T, f *fixture) {
				n, _ := f.catalog.AuthorCount(t.Context())
				assert.Zero(t, n, "a rejected book creates no author")
			},
		},
		{
			name:  "author name too short",
			input: AddBookInput{Title: "Some Book", Published: 2001, Author: "Bob"},
			assert: func(t *testing.T, f *fixture) {
				n, _ := f.catalog.AuthorCount(t.Context())
				assert.Zero(t, n, "no author is created for an invalid name")
			},
		},
		{
			name:  "duplicate title",
			input: AddBookInput{Title: "Clean Code", Published: 2010, Author: "Someone Else"},
			prime: func(t *testing.T, f *fixture) { addBook(t, f, "Clean Code", "Robert Martin") },
			assert: func(t *testing.T, f *fixture) {
				n, _ := f.catalog.BookCount(t.Context(), nil)
				assert.Equal(t, 1, n)

				authors, err := f.catalog.AllAuthors(t.Context())
				require.NoError(t, err)
				require.Len(t, authors, 1)
				assert.Equal(t, "Robert Martin", authors[0].Author.Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prime != nil {
				tt.prime(t, f)
			}

			_, err := f.catalog.AddBook(signedIn(t), tt.input)
			require.Error(t, err)

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domainerrors.CodeUserInput, de.Code)
			ext := de.Extensions()
			require.Contains(t, ext, "invalidArgs")
			args := ext["invalidArgs"].(map[string]any)
			assert.Equal(t, tt.input.Title, args["title"])
			assert.Equal(t, tt.input.Author, args["author"])

			if tt.assert != nil {
				tt.assert(t, f)
			}
		})
	}
}

func TestCatalog_AddBookConcurrentNewAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := signedIn(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.catalog.AddBook(ctx, AddBookInput{
				Title:     "Book " + string(rune('A'+i)),
				Published: 1900 + i,
				Author:    "Joshua Kerievsky",
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	authors, err := f.catalog.AllAuthors(t.Context())
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, n, authors[0].BookCount)
}

func TestCatalog_AllAuthorsCountsBooks(t *testing.T) {
	f := newFixture(t)

	addBook(t, f, "Clean Code", "Robert Martin")
	addBook(t, f, "Agile software development", "Robert Martin")
	addBook(t, f, "Refactoring, edition 2", "Martin Fowler")

	born := 1952
	_, err := f.catalog.EditAuthor(signedIn(t), "Robert Martin", born)
	require.NoError(t, err)
	require.NoError(t, f.store.Authors().Create(t.Context(), &domain.Author{ID: "author-lonely", Name: "Sandi Metz"}))

	authors, err := f.catalog.AllAuthors(t.Context())
	require.NoError(t, err)
	require.Len(t, authors, 3)

	assert.Equal(t, "Robert Martin", authors[0].Author.Name)
	assert.Equal(t, 2, authors[0].BookCount)
	assert.Equal(t, &born, authors[0].Author.Born)
	assert.Equal(t, "Martin Fowler", authors[1].Author.Name)
	assert.Equal(t, 1, authors[1].BookCount)
	assert.Equal(t, "Sandi Metz", authors[2].Author.Name)
	assert.Zero(t, authors[2].BookCount)
}

func TestCatalog_BookCount(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	addBook(t, f, "Clean Code", "Robert Martin")
	addBook(t, f, "Agile software development", "Robert Martin")
	addBook(t, f, "Crime and punishment", "Fyodor Dostoevsky")

	total, err := f.catalog.BookCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	martin, err := f.catalog.BookCount(ctx, ptr("Robert Martin"))
	require.NoError(t, err)
	assert.Equal(t, 2, martin)

	unknown, err := f.catalog.BookCount(ctx, ptr("Nobody Known"))
	require.NoError(t, err)
	assert.Zero(t, unknown)
}

func TestCatalog_AllBooksFilters(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	addBook(t, f, "Clean Code", "Robert Martin", "refactoring")
	addBook(t, f, "Agile software development", "Robert Martin", "agile", "patterns", "design")
	addBook(t, f, "Refactoring, edition 2", "Martin Fowler", "refactoring")
	addBook(t, f, "Crime and punishment", "Fyodor Dostoevsky", "classic", "crime")

	tests := []struct {
		name   string
		author *string
		genre  *string
		want   []string
	}{
		{"no filters", nil, nil, []string{"Clean Code", "Agile software development", "Refactoring, edition 2", "Crime and punishment"}},
		{"author", ptr("Robert Martin"), nil, []string{"Clean Code", "Agile software development"}},
		{"genre", nil, ptr("refactoring"), []string{"Clean Code", "Refactoring, edition 2"}},
		{"author and genre", ptr("Robert Martin"), ptr("refactoring"), []string{"Clean Code"}},
		{"unknown author", ptr("Nobody Known"), nil, []string{}},
		{"unknown author ignores genre", ptr("Nobody Known"), ptr("refactoring"), []string{}},
		{"genre is case sensitive", nil, ptr("Refactoring"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := f.catalog.AllBooks(ctx, tt.author, tt.genre)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(books))
			for _, b := range books {
				assert.True(t, b.Author.IsKnown())
			}
		})
	}
}

func TestCatalog_AllBooksUnknownAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.store.Books().Create(ctx, &domain.Book{
		ID:        "book-orphan",
		Title:     "Orphaned",
		Published: 1999,
		AuthorID:  "author-missing",
		Genres:    []string{},
	}))

	books, err := f.catalog.AllBooks(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.False(t, books[0].Author.IsKnown())
}

func TestCatalog_EditAuthor(t *testing.T) {
	f := newFixture(t)
	addBook(t, f, "Clean Code", "Robert Martin")

	t.Run("requires user", func(t *testing.T) {
		_, err := f.catalog.EditAuthor(t.Context(), "Robert Martin", 1952)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthenticated))
	})

	t.Run("unknown name returns nil", func(t *testing.T) {
		a, err := f.catalog.EditAuthor(signedIn(t), "Nobody Known", 1900)
		require.NoError(t, err)
		assert.Nil(t, a)

		n, _ := f.catalog.AuthorCount(t.Context())
		assert.Equal(t, 1, n)
	})

	t.Run("sets born", func(t *testing.T) {
		a, err := f.catalog.EditAuthor(signedIn(t), "Robert Martin", 1952)
		require.NoError(t, err)
		require.NotNil(t, a.Born)
		assert.Equal(t, 1952, *a.Born)

		a, err = f.catalog.EditAuthor(signedIn(t), "Robert Martin", 1958)
		require.NoError(t, err)
		assert.Equal(t, 1958, *a.Born)

		authors, err := f.catalog.AllAuthors(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1958, *authors[0].Author.Born)
	})
}

func receive(t *testing.T, ch <-chan domain.PopulatedBook) domain.PopulatedBook {
	t.Helper()
	select {
	case pb, ok := <-ch:
		require.True(t, ok, "feed closed")
		return pb
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bookAdded")
		return domain.PopulatedBook{}
	}
}

func TestCatalog_AddBookPublishes(t *testing.T) {
	f := newFixture(t)

	addBook(t, f, "Before Subscribe", "Robert Martin")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	first, err := f.catalog.SubscribeBookAdded(ctx)
	require.NoError(t, err)
	second, err := f.catalog.SubscribeBookAdded(ctx)
	require.NoError(t, err)

	added := addBook(t, f, "After Subscribe", "Robert Martin", "agile")

	for _, ch := range []<-chan domain.PopulatedBook{first, second} {
		got := receive(t, ch)
		assert.Equal(t, added.Book, got.Book)
		want, _ := added.Author.Author()
		author, ok := got.Author.Author()
		require.True(t, ok)
		assert.Equal(t, want, author)
	}

	select {
	case pb := <-first:
		t.Fatalf("unexpected replay of %q", pb.Book.Title)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCatalog_FailedAddBookDoesNotPublish(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ch, err := f.catalog.SubscribeBookAdded(ctx)
	require.NoError(t, err)

	_, err = f.catalog.AddBook(signedIn(t), AddBookInput{Title: "X", Published: 1, Author: "Robert Martin"})
	require.Error(t, err)

	select {
	case pb := <-ch:
		t.Fatalf("unexpected event for %q", pb.Book.Title)
	case <-time.After(50 * time.Millisecond):
	}
}
