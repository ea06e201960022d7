package source

import "context"

// Status is a ticketing-system status collapsed to the only
// distinction the reminder engine cares about.
type Status string

const (
	StatusOpen   Status = "open"
	StatusSolved Status = "solved"
)

// Source reads authoritative ticket status from the ticketing system.
// It is an optional reconciliation path: reaction events and polled
// reactions already cover completion, this catches tickets closed
// directly in the ticketing system without anyone touching Slack.
type Source interface {
	// StatusOf resolves the status of a batch of ticket IDs. IDs the
	// system no longer knows may be absent from the result.
	StatusOf(ctx context.Context, ids []string) (map[string]Status, error)
}
