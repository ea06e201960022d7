package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a single log entry captured from slog. Component is the
// daemon subsystem that produced it (gateway, reminder, api, ...).
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries. It backs the
// logs endpoint so operators can inspect recent activity without
// access to the process stdout.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	head    int // index of the oldest entry
	n       int
}

// New creates a ring buffer that holds up to size entries.
func New(size int) *Buffer {
	return &Buffer{entries: make([]Entry, size)}
}

// Write appends an entry, evicting the oldest when full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n < len(b.entries) {
		b.entries[(b.head+b.n)%len(b.entries)] = e
		b.n++
		return
	}
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Query returns entries matching the given filters, oldest first.
// A zero since means no time filter, an empty component matches all
// components, and limit <= 0 returns all matches. When limit trims
// the result it keeps the most recent entries.
func (b *Buffer) Query(since time.Time, minLevel slog.Level, component string, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Entry
	for i := 0; i < b.n; i++ {
		e := b.entries[(b.head+i)%len(b.entries)]

		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		if ParseLevel(e.Level) < minLevel {
			continue
		}
		if component != "" && e.Component != component {
			continue
		}
		result = append(result, e)
	}

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// ParseLevel converts a level string back to slog.Level. Unknown
// strings map to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
