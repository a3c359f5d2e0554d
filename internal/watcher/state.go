package watcher

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
)

const stateVersion = 1

type state struct {
	Version int               `json:"version"`
	Records map[string]Record `json:"records"`
}

// Dump writes the records as versioned JSON.
func (w *Watcher) Dump(out io.Writer) error {
	w.mu.Lock()
	s := state{Version: stateVersion, Records: maps.Clone(w.records)}
	w.mu.Unlock()

	if err := json.NewEncoder(out).Encode(s); err != nil {
		return fmt.Errorf("failed to encode watcher state: %w", err)
	}

	return nil
}

// Load replaces the records with the ones read from in. Unknown fields are
// ignored and the legacy flat form mapping keys to fingerprints is accepted.
func (w *Watcher) Load(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read watcher state: %w", err)
	}

	records, err := decodeState(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.records = records
	w.mu.Unlock()

	return nil
}

func decodeState(data []byte) (map[string]Record, error) {
	records := make(map[string]Record)
	if len(data) == 0 {
		return records, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	_, hasVersion := raw["version"]
	_, hasRecords := raw["records"]
	// a flat file may watch a url literally named "records"
	if hasVersion && hasRecords {
		var s state
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		if s.Version > stateVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidState, s.Version)
		}

		maps.Copy(records, s.Records)

		return records, nil
	}

	for key, value := range raw {
		var fingerprint string
		if err := json.Unmarshal(value, &fingerprint); err != nil {
			// a flat form only holds strings, skip what is not ours
			continue
		}
		records[key] = Record{Fingerprint: fingerprint}
	}

	return records, nil
}
