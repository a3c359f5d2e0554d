// Package watcher remembers a fingerprint of the content behind each key it
// is asked about, so callers can skip work when nothing changed.
package watcher

import (
	"context"
	"crypto/sha1" //nolint:gosec //fingerprint only
	"encoding/hex"
	"fmt"
	"maps"
	"sync"
	"time"
)

// RequestFunc returns the current content behind key.
type RequestFunc func(ctx context.Context, key string) ([]byte, error)

// Record is what the watcher remembers about one key.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	FetchedAt   time.Time `json:"fetched_at"`
	Checks      int       `json:"checks"`
}

type Watcher struct {
	request RequestFunc
	now     func() time.Time

	mu      sync.Mutex
	records map[string]Record
}

func New(request RequestFunc) *Watcher {
	return &Watcher{
		request: request,
		now:     time.Now,
		records: make(map[string]Record),
	}
}

// HasURLRecentlyChanged fetches key, stores its fingerprint and reports
// whether it differs from the previous one. A key seen for the first time
// has changed. On a fetch error the stored record is left untouched.
func (w *Watcher) HasURLRecentlyChanged(ctx context.Context, key string) (bool, error) {
	content, err := w.request(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, key, err)
	}

	fingerprint := Fingerprint(content)

	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.records[key]
	w.records[key] = Record{
		Fingerprint: fingerprint,
		FetchedAt:   w.now().UTC(),
		Checks:      old.Checks + 1,
	}

	return !ok || old.Fingerprint != fingerprint, nil
}

// Records returns a copy of everything the watcher remembers.
func (w *Watcher) Records() map[string]Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	return maps.Clone(w.records)
}

func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.records)
}

// Fingerprint returns the hex sha1 of content.
func Fingerprint(content []byte) string {
	sum := sha1.Sum(content) //nolint:gosec //fingerprint only
	return hex.EncodeToString(sum[:])
}
