package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the persisted result of the last successful full fetch.
// It is owned exclusively by the gateway; other components read the tables
// the gateway hands out, never the snapshot itself.
type Snapshot struct {
	PriceData     PriceTable `msgpack:"price_data"`
	Tickers       []string   `msgpack:"tickers"`
	DownloadTime  time.Time  `msgpack:"download_time"`
	FailedTickers []string   `msgpack:"failed_tickers"`
}

// SnapshotStore persists snapshots to a single msgpack file with a fixed
// expiry window.
type SnapshotStore struct {
	path   string
	expiry time.Duration
	log    zerolog.Logger
}

// NewSnapshotStore creates a snapshot store at the given path.
func NewSnapshotStore(path string, expiry time.Duration, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		path:   path,
		expiry: expiry,
		log:    log.With().Str("component", "snapshot_store").Logger(),
	}
}

// Load reads the current snapshot. A missing or unreadable file returns
// (nil, nil): cache absence is not an error, it just forces a fetch.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		s.log.Warn().Err(err).Msg("Failed to read cache snapshot, ignoring it")
		return nil, nil
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		s.log.Warn().Err(err).Msg("Failed to decode cache snapshot, ignoring it")
		return nil, nil
	}
	return &snap, nil
}

// Valid reports whether the snapshot can serve a request for the given
// tickers: it must be younger than the expiry window and its ticker set must
// be a superset of the request. A stale snapshot is invalid even when the
// ticker set matches.
func (s *SnapshotStore) Valid(snap *Snapshot, requested []string) bool {
	if snap == nil {
		return false
	}
	if time.Since(snap.DownloadTime) >= s.expiry {
		return false
	}
	cached := make(map[string]struct{}, len(snap.Tickers))
	for _, tk := range snap.Tickers {
		cached[tk] = struct{}{}
	}
	for _, tk := range requested {
		if _, ok := cached[tk]; !ok {
			return false
		}
	}
	return true
}

// Save persists the snapshot, overwriting any prior one. The write goes
// through a temp file and an atomic rename so concurrent readers never see a
// torn snapshot.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.log.Info().Int("tickers", len(snap.Tickers)).Msg("Cache snapshot saved")
	return nil
}
