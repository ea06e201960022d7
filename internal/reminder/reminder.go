// Package reminder runs the periodic sweep that nudges assignees of
// lingering tickets and escalates the ones nobody picks up.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nudgebot-io/nudgebot/internal/completion"
	"github.com/nudgebot-io/nudgebot/internal/sink"
	"github.com/nudgebot-io/nudgebot/internal/source"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

// DefaultPeriod is the sweep interval.
const DefaultPeriod = 10 * time.Minute

// Policy holds the reminder cadence and escalation threshold.
type Policy struct {
	// Normal is the minimum time between reminders for a regular ticket.
	Normal time.Duration
	// Escalation is the tighter cadence for escalation tickets.
	Escalation time.Duration
	// EscalateAfter is the reminder count at which the channel-wide
	// escalation notice fires.
	EscalateAfter int
}

// DefaultPolicy matches the reference cadence: 4h normal, 2h
// escalation, channel notice after 3 reminders.
var DefaultPolicy = Policy{
	Normal:        4 * time.Hour,
	Escalation:    2 * time.Hour,
	EscalateAfter: 3,
}

// IntervalFor returns the reminder interval for a ticket.
func (p Policy) IntervalFor(t ticket.Ticket) time.Duration {
	if t.Escalation {
		return p.Escalation
	}
	return p.Normal
}

// Scheduler sweeps all open tickets on a fixed period. One sweep at a
// time: if a tick is still running when the next is due, the next is
// skipped rather than run concurrently.
type Scheduler struct {
	store  *ticket.Store
	eval   *completion.Evaluator
	sink   sink.Sink
	source source.Source // nil disables reconciliation
	policy Policy
	period time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scheduler. src may be nil.
func New(store *ticket.Store, eval *completion.Evaluator, snk sink.Sink, src source.Source, policy Policy, period time.Duration, logger *slog.Logger) *Scheduler {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		eval:   eval,
		sink:   snk,
		source: src,
		policy: policy,
		period: period,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the periodic sweep until ctx is cancelled, then waits for
// an in-flight sweep to finish before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	cl := cronLogger{s.logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.period), func() { s.Sweep(ctx) })
	if err != nil {
		return fmt.Errorf("reminder: schedule sweep: %w", err)
	}

	c.Start()
	s.logger.Info("reminder sweep scheduled", "period", s.period.String())

	<-ctx.Done()
	<-c.Stop().Done() // let the current sweep finish
	s.logger.Info("reminder sweep stopped")
	return ctx.Err()
}

// Sweep walks every open ticket once: resolve if the done reaction is
// there, otherwise remind if due, otherwise leave it alone. One
// ticket's failure never touches the others.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()

	if s.source != nil {
		s.reconcile(ctx)
	}

	for _, t := range s.store.ListOpen() {
		if ctx.Err() != nil {
			return
		}
		if s.eval.Poll(ctx, t) {
			continue
		}
		if now.Sub(t.LastReminderAt) < s.policy.IntervalFor(t) {
			continue
		}

		if err := s.remind(ctx, t); err != nil {
			// Counters untouched: the next tick retries this ticket.
			s.logger.Error("reminder send failed", "ticket", t.ID, "error", err)
			continue
		}

		count, ok := s.store.MarkReminded(t.ID, now)
		if !ok {
			// Resolved while we were sending. Fine.
			continue
		}
		s.logger.Info("reminder sent", "ticket", t.ID, "count", count)

		// The escalation notice fires exactly once, when the counter
		// crosses the threshold, not on every tick past it.
		if count == s.policy.EscalateAfter {
			s.broadcast(ctx, t, count)
		}
	}
}

// reconcile removes tickets the ticketing system already considers
// solved. Failures are logged and the sweep proceeds on the signals it
// still has.
func (s *Scheduler) reconcile(ctx context.Context) {
	open := s.store.ListOpen()
	if len(open) == 0 {
		return
	}
	ids := make([]string, len(open))
	for i, t := range open {
		ids[i] = t.ID
	}

	statuses, err := s.source.StatusOf(ctx, ids)
	if err != nil {
		s.logger.Warn("ticket source reconciliation failed", "error", err)
		return
	}
	for _, t := range open {
		if statuses[t.ID] == source.StatusSolved {
			if s.eval.Complete(ctx, t.ID) {
				s.logger.Info("ticket resolved by ticket source", "ticket", t.ID)
			}
		}
	}
}

func (s *Scheduler) remind(ctx context.Context, t ticket.Ticket) error {
	var text string
	if t.Escalation {
		text = fmt.Sprintf(":rotating_light: <@%s> Escalated ticket *%s* is still open — please handle it or mark it done.", t.AssigneeID, t.ID)
	} else {
		text = fmt.Sprintf(":bell: <@%s> Ticket *%s* is still waiting on you — react with :%s: when it's done.", t.AssigneeID, t.ID, s.eval.DoneReaction())
	}
	if t.URL != "" {
		text += fmt.Sprintf(" <%s|View ticket>", t.URL)
	}
	_, err := s.sink.Post(ctx, t.Channel, text)
	return err
}

// broadcast posts the channel-wide escalation notice. Distinct from
// the per-assignee reminder; a failure here is logged and not retried,
// since the counter has already moved past the threshold.
func (s *Scheduler) broadcast(ctx context.Context, t ticket.Ticket, count int) {
	text := fmt.Sprintf("<!here> Ticket *%s* (assigned to <@%s>) has been reminded %d times without resolution and needs attention.", t.ID, t.AssigneeID, count)
	if _, err := s.sink.Post(ctx, t.Channel, text); err != nil {
		s.logger.Error("escalation broadcast failed", "ticket", t.ID, "error", err)
		return
	}
	s.logger.Info("escalation broadcast sent", "ticket", t.ID, "count", count)
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
