package sink

import (
	"context"
	"time"
)

// Sink is the interface for the chat platform the daemon nudges
// through. All calls are network calls and must honor ctx; callers
// never hold the ticket store's lock while one is in flight.
type Sink interface {
	// Post publishes a message and returns its platform timestamp.
	Post(ctx context.Context, channel, text string, buttons ...Button) (string, error)
	// Update rewrites an existing message in place.
	Update(ctx context.Context, channel, ts, text string) error
	// Reactions returns the set of reaction names currently on a message.
	Reactions(ctx context.Context, channel, ts string) ([]string, error)
	// FindMessage looks for a message around the claimed timestamp,
	// within the given tolerance window. It returns the confirmed
	// timestamp, or "" when no message is there; an error means the
	// lookup itself failed.
	FindMessage(ctx context.Context, channel, around string, window time.Duration) (string, error)
	// Ping checks that the platform is reachable with our credentials.
	Ping(ctx context.Context) error
}

// Button is an interactive element attached to a posted message.
type Button struct {
	ActionID string // stable identifier reported back on click
	Label    string // button text
	Value    string // opaque payload, typically a ticket ID
}
