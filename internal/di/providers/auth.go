package providers

import (
	"github.com/samber/do/v2"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/logger"
)

// AuthKey wraps the token key bytes.
type AuthKey []byte

// ProvideAuthKey derives the key from the configured secret or loads the key file.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.ResolveKey(cfg.Auth.Secret, cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}

	source := "key file"
	if cfg.Auth.Secret != "" {
		source = "secret"
	}
	log.Info("Authentication key loaded",
		"source", source,
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(authKey, cfg.Auth.TokenDuration)
}
