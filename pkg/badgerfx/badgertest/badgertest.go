// Package badgertest opens throwaway databases for tests.
package badgertest

import (
	"testing"

	"github.com/arcyd/arcyd/pkg/badgerfx"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// New returns an in-memory database closed with the test.
func New(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badgerfx.New(badgerfx.Config{InMemory: true}, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
