// Package di provides dependency injection configuration for the catalog server.
package di

import (
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/di/providers"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/ratelimit"
	"github.com/librarycatalog/catalog-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Storage and events
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideBus)
	do.Provide(injector, providers.ProvideBookAddedTopic)

	// Services
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideAuthService)

	// GraphQL
	do.Provide(injector, providers.ProvideSchema)
	do.Provide(injector, providers.ProvideStreamHandler)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap builds every service eagerly so configuration and connection
// errors surface before the server starts accepting requests.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.BusHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*pubsub.Topic[domain.PopulatedBook]](injector)

	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)

	if _, err := do.Invoke[*graphql.Schema](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.StreamHandle](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
