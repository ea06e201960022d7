package ticket

import "time"

// Ticket is one externally tracked support ticket shadowed with a
// reminder lifecycle. A ticket's presence in the Store is what "open"
// means; resolved tickets are deleted, never retained.
type Ticket struct {
	// ID is the opaque identifier from the ticketing system.
	ID string `json:"id"`
	// Channel is the Slack channel holding the announcement message.
	Channel string `json:"channel"`
	// MessageTS is the Slack timestamp of the announcement message.
	// Reassigned at most once, when the original announcement cannot
	// be located and a placeholder is posted instead.
	MessageTS string `json:"message_ts"`
	// AssigneeEmail is the human-readable assignee identifier from the
	// ticketing system.
	AssigneeEmail string `json:"assignee_email"`
	// AssigneeID is the resolved Slack user ID for the assignee.
	AssigneeID string `json:"assignee_id"`

	CreatedAt      time.Time `json:"created_at"`
	LastReminderAt time.Time `json:"last_reminder_at"`
	ReminderCount  int       `json:"reminder_count"`

	// Escalation tickets get a tighter reminder cadence and trigger a
	// channel-wide notice after repeated reminders. Set at creation.
	Escalation bool `json:"escalation,omitempty"`

	// URL is a display link back to the ticketing system.
	URL string `json:"url,omitempty"`
}
