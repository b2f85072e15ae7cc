package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/librarycatalog/catalog-server/internal/store"
)

type scanner interface {
	Scan(dest ...any) error
}

// table maps one collection onto one SQL table. columns[0] is the primary key
// and every index name in schema is also a column name.
type table[T any] struct {
	db      *sql.DB
	name    string
	columns []string
	schema  store.Schema[T]
	scan    func(scanner) (*T, error)
	args    func(*T) ([]any, error) // values in column order
}

func (t *table[T]) selectFrom() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name
}

// translate maps driver errors onto the store sentinels.
func (t *table[T]) translate(err error, doc *T) error {
	if err == nil || !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return err
	}
	for _, idx := range t.schema.Indexes {
		if idx.Unique && strings.Contains(err.Error(), t.name+"."+idx.Name) {
			return store.IndexConflict(idx.Name, idx.Key(doc))
		}
	}
	return store.ErrAlreadyExists.WithCause(err)
}

func (t *table[T]) Create(ctx context.Context, doc *T) error {
	if t.schema.ID(doc) == "" {
		return fmt.Errorf("create %s: document has no id", t.name)
	}
	args, err := t.args(doc)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	query := "INSERT INTO " + t.name + " (" + strings.Join(t.columns, ", ") + ") VALUES (" + placeholders + ")"
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return t.translate(err, doc)
	}
	return nil
}

func (t *table[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := t.scan(t.db.QueryRowContext(ctx, t.selectFrom()+" WHERE "+t.columns[0]+" = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (t *table[T]) FindOne(ctx context.Context, index, value string) (*T, error) {
	if _, ok := t.schema.Index(index); !ok {
		return nil, store.ErrUnknownIndex.WithMessage("unknown index " + t.name + "." + index)
	}

	query := t.selectFrom() + " WHERE " + index + " = ? ORDER BY rowid LIMIT 1"
	doc, err := t.scan(t.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (t *table[T]) FindAll(ctx context.Context, index, value string) iter.Seq2[*T, error] {
	if _, ok := t.schema.Index(index); !ok {
		return func(yield func(*T, error) bool) {
			yield(nil, store.ErrUnknownIndex.WithMessage("unknown index "+t.name+"."+index))
		}
	}
	return t.query(ctx, t.selectFrom()+" WHERE "+index+" = ? ORDER BY rowid", value)
}

func (t *table[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return t.query(ctx, t.selectFrom()+" ORDER BY rowid")
}

func (t *table[T]) query(ctx context.Context, query string, args ...any) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		rows, err := t.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query %s: %w", t.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			doc, err := t.scan(rows)
			if !yield(doc, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (t *table[T]) Update(ctx context.Context, doc *T) error {
	args, err := t.args(doc)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(t.columns)-1)
	for _, col := range t.columns[1:] {
		sets = append(sets, col+" = ?")
	}
	query := "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE " + t.columns[0] + " = ?"

	// Move the id from the front to the WHERE clause.
	res, err := t.db.ExecContext(ctx, query, append(args[1:], args[0])...)
	if err != nil {
		return t.translate(err, doc)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *table[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}
