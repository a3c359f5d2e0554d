package badgerfx

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Read decodes the JSON value stored under key.
func Read[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var entity T
	if valErr := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); valErr != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, valErr)
	}

	return &entity, nil
}

// Write stores entity as JSON under key.
func Write(txn *badger.Txn, key string, entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if setErr := txn.Set([]byte(key), data); setErr != nil {
		return fmt.Errorf("failed to set %s: %w", key, setErr)
	}

	return nil
}

// Delete removes key, a missing key is not an error.
func Delete(txn *badger.Txn, key string) error {
	if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

type ListOptions struct {
	Reverse bool
	// Zero means no limit
	Limit int
}

// List decodes the JSON values of all keys under prefix in key order, or in
// reverse key order when requested.
func List[T any](txn *badger.Txn, prefix string, options ListOptions) ([]T, error) {
	var entities []T

	err := Scan(txn, prefix, options, func(_ string, val []byte) error {
		var entity T
		if err := json.Unmarshal(val, &entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}

		entities = append(entities, entity)

		return nil
	})

	return entities, err
}

// Scan calls fn for every key under prefix.
func Scan(txn *badger.Txn, prefix string, options ListOptions, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = options.Reverse
	if options.Limit > 0 {
		opts.PrefetchSize = options.Limit
	}

	validPrefix := []byte(prefix)
	seekPrefix := []byte(prefix)
	if options.Reverse {
		seekPrefix = append(seekPrefix, SeekEnd)
	}

	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Seek(seekPrefix); it.ValidForPrefix(validPrefix); it.Next() {
		if options.Limit > 0 && count >= options.Limit {
			break
		}

		item := it.Item()
		if err := item.Value(func(val []byte) error {
			return fn(string(item.Key()), val)
		}); err != nil {
			return err
		}

		count++
	}

	return nil
}
