// Package gateway validates and normalizes inbound ticket
// registrations before they reach the store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nudgebot-io/nudgebot/internal/directory"
	"github.com/nudgebot-io/nudgebot/internal/sink"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

// DoneActionID identifies the "mark done" button attached to
// announcements this daemon posts itself.
const DoneActionID = "ticket_done"

// ConfirmWindow is the tolerance around a claimed message timestamp
// when confirming the announcement exists. Ticketing webhooks truncate
// Slack's microsecond timestamps to whole seconds, so ±1s of skew is
// normal.
const ConfirmWindow = time.Second

var (
	// ErrMissingFields rejects a registration without a ticket ID or
	// assignee.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUnknownAssignee rejects an assignee the directory cannot
	// resolve to a Slack user.
	ErrUnknownAssignee = errors.New("unknown assignee")
	// ErrUpstream means even the fallback announcement could not be
	// posted; the ticket is not tracked and the caller must know.
	ErrUpstream = errors.New("upstream failure")
)

// Request is a normalized ticket registration.
type Request struct {
	TicketID   string `json:"ticket_id"`
	Assignee   string `json:"assignee"`
	Channel    string `json:"channel,omitempty"`
	MessageTS  string `json:"message_ts,omitempty"`
	Escalation bool   `json:"escalation,omitempty"`
	URL        string `json:"ticket_url,omitempty"`
}

// Routes is the channel-routing policy: where announcements land when
// the registration doesn't name a channel.
type Routes struct {
	Default    string
	Escalation string // falls back to Default when empty
}

// channelFor applies the routing policy.
func (r Routes) channelFor(req Request) string {
	if req.Channel != "" {
		return req.Channel
	}
	if req.Escalation && r.Escalation != "" {
		return r.Escalation
	}
	return r.Default
}

// Gateway turns registration requests into tracked tickets.
type Gateway struct {
	store  *ticket.Store
	dir    *directory.Directory
	sink   sink.Sink
	routes Routes
	logger *slog.Logger
	now    func() time.Time
}

// New creates a gateway.
func New(store *ticket.Store, dir *directory.Directory, snk sink.Sink, routes Routes, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:  store,
		dir:    dir,
		sink:   snk,
		routes: routes,
		logger: logger,
		now:    time.Now,
	}
}

// Register validates a registration and begins tracking the ticket.
// A registration for an already-tracked ID replaces it outright.
//
// When the claimed announcement message cannot be confirmed on Slack,
// or the lookup itself fails, a placeholder announcement is posted and
// used instead. Only a failure to post even the placeholder aborts the
// registration.
func (g *Gateway) Register(ctx context.Context, req Request) error {
	if req.TicketID == "" || req.Assignee == "" {
		return ErrMissingFields
	}

	assigneeID, ok := g.dir.Resolve(req.Assignee)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAssignee, req.Assignee)
	}

	channel := g.routes.channelFor(req)
	ts, err := g.announcementTS(ctx, req, channel, assigneeID)
	if err != nil {
		return err
	}

	now := g.now()
	g.store.Register(ticket.Ticket{
		ID:             req.TicketID,
		Channel:        channel,
		MessageTS:      ts,
		AssigneeEmail:  req.Assignee,
		AssigneeID:     assigneeID,
		CreatedAt:      now,
		LastReminderAt: now,
		Escalation:     req.Escalation,
		URL:            req.URL,
	})
	g.logger.Info("ticket registered",
		"ticket", req.TicketID,
		"assignee", assigneeID,
		"channel", channel,
		"escalation", req.Escalation,
	)
	return nil
}

// announcementTS confirms the claimed announcement message, or posts a
// placeholder and returns its timestamp.
func (g *Gateway) announcementTS(ctx context.Context, req Request, channel, assigneeID string) (string, error) {
	if req.MessageTS != "" {
		found, err := g.sink.FindMessage(ctx, channel, req.MessageTS, ConfirmWindow)
		if err != nil {
			g.logger.Warn("announcement lookup failed, posting placeholder",
				"ticket", req.TicketID, "error", err)
		} else if found != "" {
			return found, nil
		} else {
			g.logger.Warn("announcement message not found, posting placeholder",
				"ticket", req.TicketID, "claimed_ts", req.MessageTS)
		}
	}

	text := fmt.Sprintf("New ticket *%s* assigned to <@%s>.", req.TicketID, assigneeID)
	if req.URL != "" {
		text += fmt.Sprintf(" <%s|View ticket>", req.URL)
	}
	if req.Escalation {
		text = ":rotating_light: " + text
	}
	ts, err := g.sink.Post(ctx, channel, text, sink.Button{
		ActionID: DoneActionID,
		Label:    "Mark done",
		Value:    req.TicketID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: post announcement: %v", ErrUpstream, err)
	}
	return ts, nil
}
