package providers

import (
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/graph"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/service"
	"github.com/librarycatalog/catalog-server/internal/sse"
)

// ProvideCatalogService provides the catalog query and mutation service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	feed := do.MustInvoke[*pubsub.Topic[domain.PopulatedBook]](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, feed, log.Logger), nil
}

// ProvideAuthService provides the user and token service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokens, log.Logger), nil
}

// ProvideSchema builds the executable GraphQL schema.
func ProvideSchema(i do.Injector) (*graphql.Schema, error) {
	catalog := do.MustInvoke[*service.CatalogService](i)
	authService := do.MustInvoke[*service.AuthService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return graph.NewSchema(graph.NewResolver(catalog, authService, log.Logger))
}

// StreamHandle wraps the subscription stream handler with Shutdownable.
type StreamHandle struct {
	*sse.Handler
}

// Shutdown implements do.Shutdownable.
func (h *StreamHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideStreamHandler provides the GraphQL over SSE handler.
func ProvideStreamHandler(i do.Injector) (*StreamHandle, error) {
	schema := do.MustInvoke[*graphql.Schema](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &StreamHandle{Handler: sse.NewHandler(schema, log.Logger)}, nil
}
