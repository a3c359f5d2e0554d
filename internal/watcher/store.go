package watcher

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const stateKey = "watcher:state"

// Store keeps the watcher state in badger between runs.
type Store struct {
	db *badger.DB

	logger *zap.Logger
}

func NewStore(db *badger.DB, logger *zap.Logger) *Store {
	return &Store{
		db: db,

		logger: logger,
	}
}

// Load restores w from the database. A missing state leaves w empty.
func (s *Store) Load(w *Watcher) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return w.Load(bytes.NewReader(val))
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		s.logger.Info("no watcher state stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load watcher state: %w", err)
	}

	s.logger.Info("watcher state loaded", zap.Int("records", w.Len()))

	return nil
}

// Save persists w.
func (s *Store) Save(w *Watcher) error {
	var buf bytes.Buffer
	if err := w.Dump(&buf); err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKey), buf.Bytes())
	}); err != nil {
		return fmt.Errorf("failed to save watcher state: %w", err)
	}

	return nil
}
