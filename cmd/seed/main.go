// Package main loads the starter catalog, and optionally a user, into the configured store.
//
// Usage:
//
//	go run ./cmd/seed --store sqlite --data-path ./data
//	go run ./cmd/seed user --username mluukkai --favorite-genre refactoring --password secret-pass
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/config"
	"github.com/librarycatalog/catalog-server/internal/di/providers"
	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/logger"
	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/seed"
	"github.com/librarycatalog/catalog-server/internal/service"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// configFlags mirror the server flags that pick the store. They are inherited by subcommands.
var configFlags = []string{"env-file", "store", "data-path", "mongodb-uri", "mongodb-database", "secret"}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env-file", Usage: "Path to .env file", Value: ".env"},
		&cli.StringFlag{Name: "store", Usage: "Store driver: badger, sqlite, mongo"},
		&cli.StringFlag{Name: "data-path", Usage: "Directory of the embedded stores"},
		&cli.StringFlag{Name: "mongodb-uri", Usage: "MongoDB connection string"},
		&cli.StringFlag{Name: "mongodb-database", Usage: "MongoDB database name"},
		&cli.StringFlag{Name: "secret", Usage: "Token secret, needed only to match the server's key source"},
	}
}

func main() {
	app := &cli.Command{
		Name:   "seed",
		Usage:  "Load the starter catalog into the configured store",
		Flags:  storeFlags(),
		Action: seedCatalog,
		Commands: []*cli.Command{
			{
				Name:  "user",
				Usage: "Create a user that can log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "Username", Required: true},
					&cli.StringFlag{Name: "favorite-genre", Usage: "Favorite genre", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Required: true},
				},
				Action: seedUser,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg   *config.Config
	log   *logger.Logger
	store store.Store
}

func open(cmd *cli.Command) (*env, error) {
	var args []string
	for _, name := range configFlags {
		if cmd.IsSet(name) {
			args = append(args, "-"+name+"="+cmd.String(name))
		}
	}

	cfg, err := config.Load(args)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == config.StoreMemory {
		return nil, errors.New("the memory store does not outlive this command; pick badger, sqlite or mongo")
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	st, err := providers.OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: st}, nil
}

func seedCatalog(ctx context.Context, cmd *cli.Command) error {
	e, err := open(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	bus := pubsub.NewBroker(e.log.Logger)
	defer bus.Close()
	feed := pubsub.NewTopic[domain.PopulatedBook](bus, service.TopicBookAdded, e.log.Logger)

	seeder := seed.New(e.store, service.NewCatalogService(e.store, feed, e.log.Logger), e.log.Logger)
	res, err := seeder.Catalog(ctx, seed.Authors, seed.Books)
	if err != nil {
		return err
	}

	fmt.Printf("added %d books, skipped %d, set %d birth years\n", res.BooksAdded, res.BooksSkipped, res.AuthorsUpdated)
	return nil
}

func seedUser(ctx context.Context, cmd *cli.Command) error {
	e, err := open(cmd)
	if err != nil {
		return err
	}
	defer e.store.Close()

	key, err := auth.ResolveKey(e.cfg.Auth.Secret, e.cfg.Storage.DataPath)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(key, e.cfg.Auth.TokenDuration)
	if err != nil {
		return err
	}

	password := cmd.String("password")
	user, err := service.NewAuthService(e.store, tokens, e.log.Logger).CreateUser(ctx, service.CreateUserInput{
		Username:      cmd.String("username"),
		FavoriteGenre: cmd.String("favorite-genre"),
		Password:      &password,
	})
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
	return nil
}
