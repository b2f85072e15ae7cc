package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/service"
	"github.com/librarycatalog/catalog-server/internal/store"
	"github.com/librarycatalog/catalog-server/internal/store/memory"
)

func newSeeder(t *testing.T) (*Seeder, *service.CatalogService, *memory.Store) {
	t.Helper()

	log := logger.Discard().Logger
	bus := pubsub.NewBroker(log)
	t.Cleanup(func() { _ = bus.Close() })

	st := memory.New()
	feed := pubsub.NewTopic[domain.PopulatedBook](bus, service.TopicBookAdded, log)
	catalog := service.NewCatalogService(st, feed, log)
	return New(st, catalog, log), catalog, st
}

func TestCatalog_LoadsFixtures(t *testing.T) {
	seeder, catalog, _ := newSeeder(t)
	ctx := context.Background()

	res, err := seeder.Catalog(ctx, Authors, Books)
	require.NoError(t, err)
	assert.Equal(t, Result{BooksAdded: 7, AuthorsUpdated: 3}, res)

	authorCount, err := catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, authorCount)

	bookCount, err := catalog.BookCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, bookCount)

	summaries, err := catalog.AllAuthors(ctx)
	require.NoError(t, err)

	born := map[string]*int{}
	counts := map[string]int{}
	for _, s := range summaries {
		born[s.Author.Name] = s.Author.Born
		counts[s.Author.Name] = s.BookCount
	}
	require.NotNil(t, born["Fyodor Dostoevsky"])
	assert.Equal(t, 1821, *born["Fyodor Dostoevsky"])
	assert.Nil(t, born["Sandi Metz"])
	assert.Equal(t, 2, counts["Robert Martin"])
	assert.Equal(t, 1, counts["Joshua Kerievsky"])
}

func TestCatalog_Idempotent(t *testing.T) {
	seeder, catalog, _ := newSeeder(t)
	ctx := context.Background()

	_, err := seeder.Catalog(ctx, Authors, Books)
	require.NoError(t, err)

	res, err := seeder.Catalog(ctx, Authors, Books)
	require.NoError(t, err)
	assert.Equal(t, Result{BooksSkipped: 7}, res)

	bookCount, err := catalog.BookCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, bookCount)
}

func TestCatalog_KeepsEditedBirthYear(t *testing.T) {
	seeder, _, st := newSeeder(t)
	ctx := context.Background()

	_, err := seeder.Catalog(ctx, nil, Books[:1])
	require.NoError(t, err)

	author, err := st.Authors().FindOne(ctx, store.IndexAuthorName, "Robert Martin")
	require.NoError(t, err)
	born := 1950
	author.Born = &born
	require.NoError(t, st.Authors().Update(ctx, author))

	res, err := seeder.Catalog(ctx, Authors, Books[:1])
	require.NoError(t, err)
	assert.Zero(t, res.AuthorsUpdated)

	author, err = st.Authors().FindOne(ctx, store.IndexAuthorName, "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, 1950, *author.Born)
}

func TestCatalog_InvalidFixture(t *testing.T) {
	seeder, _, _ := newSeeder(t)

	_, err := seeder.Catalog(context.Background(), nil, []BookFixture{
		{Title: "X", Published: 2000, Author: "Robert Martin"},
	})
	assert.ErrorContains(t, err, `add book "X"`)
}
