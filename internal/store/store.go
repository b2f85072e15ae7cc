package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/librarycatalog/catalog-server/internal/domain"
)

// DB is the embedded Badger Store.
type DB struct {
	db     *badger.DB
	logger *slog.Logger

	authors *Entity[domain.Author]
	books   *Entity[domain.Book]
	users   *Entity[domain.User]
}

// Open opens (or creates) the Badger database at path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty for the server log
	opts.SyncWrites = true       // Sync writes to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return newDB(db, logger), nil
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return newDB(db, logger), nil
}

func newDB(db *badger.DB, logger *slog.Logger) *DB {
	return &DB{
		db:      db,
		logger:  logger,
		authors: NewEntity(db, AuthorSchema),
		books:   NewEntity(db, BookSchema),
		users:   NewEntity(db, UserSchema),
	}
}

// Authors returns the authors collection.
func (s *DB) Authors() Collection[domain.Author] { return s.authors }

// Books returns the books collection.
func (s *DB) Books() Collection[domain.Book] { return s.books }

// Users returns the users collection.
func (s *DB) Users() Collection[domain.User] { return s.users }

// Ping reports whether the database is still open.
func (s *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close gracefully closes the database.
func (s *DB) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

var _ Store = (*DB)(nil)
