package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/store"
)

func newAuthorTable(db *sql.DB) *table[domain.Author] {
	return &table[domain.Author]{
		db:      db,
		name:    "authors",
		columns: []string{"id", "name", "born"},
		schema:  store.AuthorSchema,
		scan: func(s scanner) (*domain.Author, error) {
			var (
				a    domain.Author
				born sql.NullInt64
			)
			if err := s.Scan(&a.ID, &a.Name, &born); err != nil {
				return nil, err
			}
			if born.Valid {
				year := int(born.Int64)
				a.Born = &year
			}
			return &a, nil
		},
		args: func(a *domain.Author) ([]any, error) {
			return []any{a.ID, a.Name, nullInt(a.Born)}, nil
		},
	}
}

func newBookTable(db *sql.DB) *table[domain.Book] {
	return &table[domain.Book]{
		db:      db,
		name:    "books",
		columns: []string{"id", "title", "published", "author", "genres"},
		schema:  store.BookSchema,
		scan: func(s scanner) (*domain.Book, error) {
			var (
				b      domain.Book
				genres string
			)
			if err := s.Scan(&b.ID, &b.Title, &b.Published, &b.AuthorID, &genres); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(genres), &b.Genres); err != nil {
				return nil, fmt.Errorf("decode genres of book %s: %w", b.ID, err)
			}
			if b.Genres == nil {
				b.Genres = []string{}
			}
			return &b, nil
		},
		args: func(b *domain.Book) ([]any, error) {
			genres := b.Genres
			if genres == nil {
				genres = []string{}
			}
			encoded, err := json.Marshal(genres)
			if err != nil {
				return nil, fmt.Errorf("encode genres: %w", err)
			}
			return []any{b.ID, b.Title, b.Published, b.AuthorID, string(encoded)}, nil
		},
	}
}

func newUserTable(db *sql.DB) *table[domain.User] {
	return &table[domain.User]{
		db:      db,
		name:    "users",
		columns: []string{"id", "username", "favorite_genre", "password_hash"},
		schema:  store.UserSchema,
		scan: func(s scanner) (*domain.User, error) {
			var (
				u    domain.User
				hash sql.NullString
			)
			if err := s.Scan(&u.ID, &u.Username, &u.FavoriteGenre, &hash); err != nil {
				return nil, err
			}
			u.PasswordHash = hash.String
			return &u, nil
		},
		args: func(u *domain.User) ([]any, error) {
			return []any{u.ID, u.Username, u.FavoriteGenre, nullString(u.PasswordHash)}, nil
		},
	}
}
