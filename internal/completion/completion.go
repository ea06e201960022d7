// Package completion decides when a tracked ticket is resolved.
//
// Three independent signals can resolve a ticket: a reaction event on
// its announcement message, an explicit completion call, and the
// polled reaction check during a reminder sweep. All of them funnel
// into Store.Remove, so they race safely: the first signal wins and
// the rest observe the ticket already gone, which is success, not an
// error.
package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nudgebot-io/nudgebot/internal/sink"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

// DefaultDoneReaction is the reaction name that marks a ticket done.
const DefaultDoneReaction = "white_check_mark"

// Evaluator recognizes completion signals and removes resolved
// tickets from the store.
type Evaluator struct {
	store        *ticket.Store
	sink         sink.Sink
	doneReaction string
	logger       *slog.Logger
}

// New creates an evaluator. An empty doneReaction selects
// DefaultDoneReaction.
func New(store *ticket.Store, snk sink.Sink, doneReaction string, logger *slog.Logger) *Evaluator {
	if doneReaction == "" {
		doneReaction = DefaultDoneReaction
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:        store,
		sink:         snk,
		doneReaction: doneReaction,
		logger:       logger,
	}
}

// DoneReaction returns the reaction name that resolves a ticket.
func (e *Evaluator) DoneReaction() string {
	return e.doneReaction
}

// HandleReaction processes an inbound reaction event and reports
// whether it resolved a ticket. Reactions other than the done marker,
// and reactions on messages we don't track, are ignored.
func (e *Evaluator) HandleReaction(channel, ts, reaction string) bool {
	if reaction != e.doneReaction {
		return false
	}
	t, ok := e.store.FindByMessage(channel, ts)
	if !ok {
		return false
	}
	if !e.store.Remove(t.ID) {
		return false
	}
	e.logger.Info("ticket resolved by reaction", "ticket", t.ID, "reaction", reaction)
	return true
}

// Complete resolves a ticket by ID (explicit completion call or a
// clicked "mark done" button). It reports whether the ticket was
// tracked. On removal the announcement message is rewritten to show
// resolution; that rewrite is best effort.
func (e *Evaluator) Complete(ctx context.Context, id string) bool {
	t, ok := e.store.Get(id)
	if !ok {
		return false
	}
	if !e.store.Remove(id) {
		return false
	}
	e.logger.Info("ticket resolved explicitly", "ticket", id)

	text := fmt.Sprintf(":%s: Ticket *%s* has been resolved.", e.doneReaction, id)
	if err := e.sink.Update(ctx, t.Channel, t.MessageTS, text); err != nil {
		e.logger.Warn("announcement update failed", "ticket", id, "error", err)
	}
	return true
}

// Poll reads the reactions currently on the ticket's announcement and
// resolves it when the done marker is present. This is the fallback
// for reaction events missed between sweeps (e.g. during downtime).
// A failed reaction read keeps the ticket; the next sweep retries.
func (e *Evaluator) Poll(ctx context.Context, t ticket.Ticket) bool {
	reactions, err := e.sink.Reactions(ctx, t.Channel, t.MessageTS)
	if err != nil {
		e.logger.Warn("reaction poll failed", "ticket", t.ID, "error", err)
		return false
	}
	for _, r := range reactions {
		if r == e.doneReaction {
			if e.store.Remove(t.ID) {
				e.logger.Info("ticket resolved by polled reaction", "ticket", t.ID)
			}
			return true
		}
	}
	return false
}
