// Package directory resolves ticketing-system assignee identifiers to
// Slack user IDs through a static lookup table. Resolution fails
// closed: a ticket for an unknown assignee is rejected rather than
// tracked without anyone to nudge.
package directory

import "strings"

// Directory maps assignee emails to Slack user IDs.
type Directory struct {
	users map[string]string
}

// New builds a directory from an email → Slack user ID map. Emails are
// matched case-insensitively.
func New(users map[string]string) *Directory {
	normalized := make(map[string]string, len(users))
	for email, id := range users {
		normalized[strings.ToLower(strings.TrimSpace(email))] = id
	}
	return &Directory{users: normalized}
}

// Resolve returns the Slack user ID for an assignee email.
func (d *Directory) Resolve(email string) (string, bool) {
	id, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	return id, ok
}

// Len returns the number of known assignees.
func (d *Directory) Len() int { return len(d.users) }
