package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// snapshotVersion is bumped whenever the on-disk layout changes in a
// way the reader cannot absorb.
const snapshotVersion = 1

// snapshot is the on-disk layout of the ticket set. Timestamps
// round-trip through time.Time's RFC 3339 JSON form, which is lossless
// well past second precision.
type snapshot struct {
	Version int      `json:"version"`
	Tickets []Ticket `json:"tickets"`
}

// writeSnapshot serializes the ticket set and replaces the file at
// path atomically, so a crash mid-write never leaves a truncated file
// for the next startup to read.
func writeSnapshot(path string, tickets []Ticket) error {
	data, err := json.MarshalIndent(snapshot{Version: snapshotVersion, Tickets: tickets}, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// readSnapshot loads and validates a snapshot file.
func readSnapshot(path string) ([]Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d in %s", snap.Version, path)
	}
	return snap.Tickets, nil
}
