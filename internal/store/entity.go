package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// multiSep separates the indexed value from the document id in non-unique index keys.
const multiSep = "\x1f"

// Entity is a Badger-backed Collection. Documents live under prefix+id; unique
// index entries map prefix+"idx:"+name+":"+value to the id, non-unique entries
// are empty keys ending in the id so a prefix scan finds every match.
type Entity[T any] struct {
	db     *badger.DB
	prefix string
	schema Schema[T]
}

// NewEntity creates an Entity for the given schema.
func NewEntity[T any](db *badger.DB, schema Schema[T]) *Entity[T] {
	return &Entity[T]{
		db:     db,
		prefix: schema.Name + ":",
		schema: schema,
	}
}

type indexEntry struct {
	name   string
	value  string
	unique bool
	key    string
}

func (e *Entity[T]) docKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexPrefix(name, value string, unique bool) string {
	k := e.prefix + "idx:" + name + ":" + value
	if !unique {
		k += multiSep
	}
	return k
}

func (e *Entity[T]) entries(doc *T) []indexEntry {
	id := e.schema.ID(doc)
	out := make([]indexEntry, 0, len(e.schema.Indexes))
	for _, idx := range e.schema.Indexes {
		value := idx.Key(doc)
		if value == "" {
			continue
		}
		key := e.indexPrefix(idx.Name, value, idx.Unique)
		if !idx.Unique {
			key += id
		}
		out = append(out, indexEntry{name: idx.Name, value: value, unique: idx.Unique, key: key})
	}
	return out
}

func (e *Entity[T]) readDoc(txn *badger.Txn, id string) (*T, error) {
	key := lookupKey(e.prefix, id)
	defer releaseKey(key)

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var doc T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// Create inserts doc, checking the primary key and every unique index in one transaction.
func (e *Entity[T]) Create(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := e.schema.ID(doc)
	if id == "" {
		return fmt.Errorf("create %s: document has no id", e.schema.Name)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	entries := e.entries(doc)
	err = e.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(e.docKey(id))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		for _, ent := range entries {
			if !ent.unique {
				continue
			}
			_, err := txn.Get([]byte(ent.key))
			if err == nil {
				return IndexConflict(ent.name, ent.value)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}

		if err := txn.Set(e.docKey(id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		for _, ent := range entries {
			val := []byte{}
			if ent.unique {
				val = []byte(id)
			}
			if err := txn.Set([]byte(ent.key), val); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
		return nil
	})

	// A concurrent transaction wrote one of the keys we checked.
	if errors.Is(err, badger.ErrConflict) {
		return ErrAlreadyExists.WithCause(err)
	}
	return err
}

// Get retrieves a document by id.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *T
	err := e.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = e.readDoc(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindOne retrieves the document whose index value equals value.
func (e *Entity[T]) FindOne(ctx context.Context, index, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, ok := e.schema.Index(index)
	if !ok {
		return nil, ErrUnknownIndex.WithMessage("unknown index " + e.schema.Name + "." + index)
	}
	if !idx.Unique {
		for doc, err := range e.FindAll(ctx, index, value) {
			return doc, err
		}
		return nil, ErrNotFound
	}

	key := lookupKey(e.prefix, "idx:", index, ":", value)
	defer releaseKey(key)

	var doc *T
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		doc, err = e.readDoc(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindAll yields every document whose index value equals value.
func (e *Entity[T]) FindAll(ctx context.Context, index, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		idx, ok := e.schema.Index(index)
		if !ok {
			yield(nil, ErrUnknownIndex.WithMessage("unknown index "+e.schema.Name+"."+index))
			return
		}
		if idx.Unique {
			doc, err := e.FindOne(ctx, index, value)
			if errors.Is(err, ErrNotFound) {
				return
			}
			yield(doc, err)
			return
		}

		prefix := []byte(e.indexPrefix(index, value, false))
		_ = e.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				id := string(it.Item().Key()[len(prefix):])
				doc, err := e.readDoc(txn, id)
				if !yield(doc, err) || err != nil {
					return nil
				}
			}
			return nil
		})
	}
}

// Update replaces an existing document and rewrites its index entries.
func (e *Entity[T]) Update(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := e.schema.ID(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	err = e.db.Update(func(txn *badger.Txn) error {
		old, err := e.readDoc(txn, id)
		if err != nil {
			return err
		}

		oldKeys := make(map[string]bool)
		for _, ent := range e.entries(old) {
			oldKeys[ent.key] = true
		}
		newEntries := e.entries(doc)
		newKeys := make(map[string]bool, len(newEntries))
		for _, ent := range newEntries {
			newKeys[ent.key] = true
		}

		// Check new unique values before touching anything.
		for _, ent := range newEntries {
			if !ent.unique || oldKeys[ent.key] {
				continue
			}
			_, err := txn.Get([]byte(ent.key))
			if err == nil {
				return IndexConflict(ent.name, ent.value)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}

		for key := range oldKeys {
			if newKeys[key] {
				continue
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}

		if err := txn.Set(e.docKey(id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		for _, ent := range newEntries {
			if oldKeys[ent.key] {
				continue
			}
			val := []byte{}
			if ent.unique {
				val = []byte(id)
			}
			if err := txn.Set([]byte(ent.key), val); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
		return nil
	})

	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict.WithCause(err)
	}
	return err
}

// List yields every document in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				if e.isIndexKey(it.Item().Key()) {
					continue
				}

				var doc T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &doc)
				})
				if err != nil {
					yield(nil, fmt.Errorf("failed to unmarshal document: %w", err))
					return err
				}

				if !yield(&doc, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// Count returns the number of documents without decoding them.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(e.prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if !e.isIndexKey(it.Item().Key()) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (e *Entity[T]) isIndexKey(key []byte) bool {
	return strings.HasPrefix(string(key[len(e.prefix):]), "idx:")
}
