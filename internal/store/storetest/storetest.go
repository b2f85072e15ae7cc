// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// Opener returns a fresh, empty store. It registers its own cleanup.
type Opener func(t *testing.T) store.Store

// Collect drains seq, failing the test on the first error.
func Collect[T any](t *testing.T, seq iter.Seq2[*T, error]) []*T {
	t.Helper()
	var out []*T
	for v, err := range seq {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func intPtr(v int) *int { return &v }

// Run exercises s against the Collection contract.
func Run(t *testing.T, open Opener) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, open(t)) })
	t.Run("UniqueIndex", func(t *testing.T) { testUniqueIndex(t, open(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("FindAll", func(t *testing.T) { testFindAll(t, open(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, open(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, open(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, open(t).Ping(context.Background())) })
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := &domain.Author{ID: "author-1", Name: "Robert Martin", Born: intPtr(1952)}
	require.NoError(t, s.Authors().Create(ctx, author))

	got, err := s.Authors().Get(ctx, "author-1")
	require.NoError(t, err)
	assert.Equal(t, author, got)

	got, err = s.Authors().FindOne(ctx, store.IndexAuthorName, "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, "author-1", got.ID)

	_, err = s.Authors().Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Authors().FindOne(ctx, store.IndexAuthorName, "robert martin")
	assert.ErrorIs(t, err, store.ErrNotFound, "lookups are exact")

	_, err = s.Authors().FindOne(ctx, "born", "1952")
	assert.ErrorIs(t, err, store.ErrUnknownIndex)

	user := &domain.User{ID: "user-1", Username: "mluukkai", FavoriteGenre: "refactoring", PasswordHash: "hash"}
	require.NoError(t, s.Users().Create(ctx, user))
	gotUser, err := s.Users().FindOne(ctx, store.IndexUserUsername, "mluukkai")
	require.NoError(t, err)
	assert.Equal(t, user, gotUser)
}

func testUniqueIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Authors().Create(ctx, &domain.Author{ID: "author-1", Name: "Sandi Metz"}))

	err := s.Authors().Create(ctx, &domain.Author{ID: "author-2", Name: "Sandi Metz"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	err = s.Authors().Create(ctx, &domain.Author{ID: "author-1", Name: "Martin Fowler"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	n, err := s.Authors().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed creates leave nothing behind")

	_, err = s.Authors().FindOne(ctx, store.IndexAuthorName, "Martin Fowler")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Books().Create(ctx, &domain.Book{ID: "book-1", Title: "Clean Code", AuthorID: "author-1", Genres: []string{}}))
	err = s.Books().Create(ctx, &domain.Book{ID: "book-2", Title: "Clean Code", AuthorID: "author-1", Genres: []string{}})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Authors().Create(ctx, &domain.Author{ID: "author-1", Name: "Joshua Kerievsky"}))
	require.NoError(t, s.Authors().Create(ctx, &domain.Author{ID: "author-2", Name: "Martin Fowler"}))

	updated := &domain.Author{ID: "author-1", Name: "Joshua Kerievsky", Born: intPtr(1960)}
	require.NoError(t, s.Authors().Update(ctx, updated))

	got, err := s.Authors().FindOne(ctx, store.IndexAuthorName, "Joshua Kerievsky")
	require.NoError(t, err)
	require.NotNil(t, got.Born)
	assert.Equal(t, 1960, *got.Born)

	err = s.Authors().Update(ctx, &domain.Author{ID: "author-1", Name: "Martin Fowler"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, s.Authors().Update(ctx, &domain.Author{ID: "author-1", Name: "J. Kerievsky"}))
	_, err = s.Authors().FindOne(ctx, store.IndexAuthorName, "Joshua Kerievsky")
	assert.ErrorIs(t, err, store.ErrNotFound, "old index value is released")
	got, err = s.Authors().FindOne(ctx, store.IndexAuthorName, "J. Kerievsky")
	require.NoError(t, err)
	assert.Equal(t, "author-1", got.ID)

	err = s.Authors().Update(ctx, &domain.Author{ID: "missing", Name: "Nobody Here"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.Authors().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testFindAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	books := []*domain.Book{
		{ID: "book-1", Title: "Crime and punishment", Published: 1866, AuthorID: "author-dostoevsky", Genres: []string{"classic", "crime"}},
		{ID: "book-2", Title: "Clean Code", Published: 2008, AuthorID: "author-martin", Genres: []string{"refactoring"}},
		{ID: "book-3", Title: "The Demon ", Published: 1872, AuthorID: "author-dostoevsky", Genres: []string{"classic", "revolution"}},
	}
	for _, b := range books {
		require.NoError(t, s.Books().Create(ctx, b))
	}

	got := Collect(t, s.Books().FindAll(ctx, store.IndexBookAuthor, "author-dostoevsky"))
	titles := make([]string, 0, len(got))
	for _, b := range got {
		titles = append(titles, b.Title)
	}
	assert.ElementsMatch(t, []string{"Crime and punishment", "The Demon "}, titles)

	assert.Empty(t, Collect(t, s.Books().FindAll(ctx, store.IndexBookAuthor, "author-nobody")))

	byTitle := Collect(t, s.Books().FindAll(ctx, store.IndexBookTitle, "Clean Code"))
	require.Len(t, byTitle, 1)
	assert.Equal(t, "book-2", byTitle[0].ID)

	first, err := s.Books().FindOne(ctx, store.IndexBookAuthor, "author-martin")
	require.NoError(t, err)
	assert.Equal(t, "book-2", first.ID)
}

func testListAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.Books().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, Collect(t, s.Books().List(ctx)))

	for i := range 5 {
		require.NoError(t, s.Authors().Create(ctx, &domain.Author{ID: fmt.Sprintf("author-%d", i), Name: fmt.Sprintf("Author %d", i)}))
	}

	n, err = s.Authors().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all := Collect(t, s.Authors().List(ctx))
	assert.Len(t, all, 5)

	// Stopping early must not leak or deadlock.
	for range s.Authors().List(ctx) {
		break
	}
	n, err = s.Authors().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	book := &domain.Book{ID: "book-1", Title: "Refactoring", Published: 2018, AuthorID: "author-1", Genres: []string{"refactoring"}}
	require.NoError(t, s.Books().Create(ctx, book))

	book.Genres[0] = "mutated"
	got, err := s.Books().Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"refactoring"}, got.Genres)

	got.Genres = append(got.Genres, "patterns")
	again, err := s.Books().Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"refactoring"}, again.Genres)
}

func testConcurrentCreate(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Authors().Create(ctx, &domain.Author{ID: fmt.Sprintf("author-%d", i), Name: "Fyodor Dostoevsky"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrAlreadyExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	n, err := s.Authors().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
