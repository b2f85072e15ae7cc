package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/service"
)

// BusHandle wraps the configured event bus with shutdown capability.
type BusHandle struct {
	pubsub.Bus
}

// Shutdown implements do.Shutdownable.
func (h *BusHandle) Shutdown() error {
	return h.Close()
}

// ProvideBus connects the event bus selected by the configuration.
func ProvideBus(i do.Injector) (*BusHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	bus, err := openBus(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("Event bus ready", "driver", cfg.Events.Driver)
	return &BusHandle{Bus: bus}, nil
}

func openBus(cfg *config.Config, log *logger.Logger) (pubsub.Bus, error) {
	switch cfg.Events.Driver {
	case config.BusMemory:
		return pubsub.NewBroker(log.Logger), nil

	case config.BusRedis:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		rdb, err := pubsub.NewRedisClient(ctx, cfg.Events.RedisAddr, cfg.Events.RedisPassword)
		if err != nil {
			return nil, err
		}
		return pubsub.NewRedisBus(rdb, log.Logger), nil

	case config.BusAMQP:
		return pubsub.DialAMQP(cfg.Events.RabbitMQURL, log.Logger)

	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.Events.Driver)
	}
}

// ProvideBookAddedTopic provides the typed bookAdded feed on top of the bus.
func ProvideBookAddedTopic(i do.Injector) (*pubsub.Topic[domain.PopulatedBook], error) {
	bus := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return pubsub.NewTopic[domain.PopulatedBook](bus.Bus, service.TopicBookAdded, log.Logger), nil
}
