package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/store/memory"
)

type fixture struct {
	store   *memory.Store
	bus     *pubsub.Broker
	catalog *CatalogService
	auth    *AuthService
	tokens  *auth.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Discard().Logger
	st := memory.New()
	bus := pubsub.NewBroker(log)
	t.Cleanup(func() { _ = bus.Close() })

	key, err := auth.DeriveKey("service tests")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	feed := pubsub.NewTopic[domain.PopulatedBook](bus, TopicBookAdded, log)
	return &fixture{
		store:   st,
		bus:     bus,
		catalog: NewCatalogService(st, feed, log),
		auth:    NewAuthService(st, tokens, log),
		tokens:  tokens,
	}
}

func ptr[T any](v T) *T { return &v }
