package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/store"
	"github.com/librarycatalog/catalog-server/internal/store/memory"
	"github.com/librarycatalog/catalog-server/internal/store/mongo"
	"github.com/librarycatalog/catalog-server/internal/store/sqlite"
)

// StoreHandle wraps the configured store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the store selected by the configuration.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	log.WithField("driver", cfg.Storage.Driver).Info("Store ready")
	return &StoreHandle{Store: st}, nil
}

// OpenStore opens the store backend named by cfg.Storage.Driver.
func OpenStore(cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.StoreMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil

	case config.StoreBadger:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.Open(filepath.Join(cfg.Storage.DataPath, "db"), log.Logger)

	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.Open(filepath.Join(cfg.Storage.DataPath, "catalog.db"), log.Logger)

	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return mongo.Connect(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, log.Logger)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Storage.Driver)
	}
}
