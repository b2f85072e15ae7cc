package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/api"
	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/graph"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/ratelimit"
	"github.com/librarycatalog/catalog-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideRateLimiter provides the per-IP GraphQL limiter, or nil when limiting is disabled.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Server.RateLimit <= 0 {
		return nil, nil
	}
	return ratelimit.PerInterval(cfg.Server.RateLimit, time.Minute), nil
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	authService := do.MustInvoke[*service.AuthService](i)
	schema := do.MustInvoke[*graphql.Schema](i)
	stream := do.MustInvoke[*StreamHandle](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	handler := api.NewServer(api.Deps{
		Store:       storeHandle.Store,
		Bus:         busHandle.Bus,
		Auth:        authService,
		GraphQL:     graph.NewHandler(schema, log.Logger),
		Stream:      stream.Handler,
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Open subscription streams never go idle, so Shutdown would wait on them.
	srv.RegisterOnShutdown(stream.Close)

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	log.Info("Server running",
		"addr", srv.Addr,
		"graphql", "/graphql",
		"subscriptions", "/graphql/stream",
	)

	return &HTTPServerHandle{Server: srv}, nil
}
