// Package slacksink implements sink.Sink against the Slack Web API.
package slacksink

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/nudgebot-io/nudgebot/internal/sink"
)

// DefaultTimeout bounds every outbound Slack call so a slow API never
// stalls the reminder sweep or a request handler.
const DefaultTimeout = 10 * time.Second

// Option configures a Sink.
type Option func(*Sink)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) { s.timeout = d }
}

// WithClient sets a custom Slack client (tests).
func WithClient(c *slack.Client) Option {
	return func(s *Sink) { s.api = c }
}

// Sink talks to Slack over the Web API.
type Sink struct {
	api     *slack.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Slack sink.
func New(botToken string, logger *slog.Logger, opts ...Option) (*Sink, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		api:     slack.New(botToken),
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sink) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Post publishes a message, optionally with interactive buttons
// rendered as a Block Kit actions block.
func (s *Sink) Post(ctx context.Context, channel, text string, buttons ...sink.Button) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(buttons) > 0 {
		blocks := []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		}
		elements := make([]slack.BlockElement, 0, len(buttons))
		for _, b := range buttons {
			label := slack.NewTextBlockObject(slack.PlainTextType, b.Label, false, false)
			elements = append(elements, slack.NewButtonBlockElement(b.ActionID, b.Value, label))
		}
		blocks = append(blocks, slack.NewActionBlock("", elements...))
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	_, ts, err := s.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	return ts, nil
}

// Update rewrites an existing message in place.
func (s *Sink) Update(ctx context.Context, channel, ts, text string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, _, _, err := s.api.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack: update message: %w", err)
	}
	return nil
}

// Reactions returns the names of all reactions currently on a message.
func (s *Sink) Reactions(ctx context.Context, channel, ts string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	reactions, err := s.api.GetReactionsContext(ctx, slack.NewRefToMessage(channel, ts), slack.NewGetReactionsParameters())
	if err != nil {
		return nil, fmt.Errorf("slack: get reactions: %w", err)
	}
	names := make([]string, 0, len(reactions))
	for _, r := range reactions {
		names = append(names, r.Name)
	}
	return names, nil
}

// FindMessage confirms that a message exists around the claimed
// timestamp. Slack timestamps carry microsecond precision while
// callers often only have whole seconds, so the lookup spans
// around ± window and an exact match wins over a near one.
func (s *Sink) FindMessage(ctx context.Context, channel, around string, window time.Duration) (string, error) {
	claimed, err := parseTS(around)
	if err != nil {
		return "", fmt.Errorf("slack: find message: bad timestamp %q: %w", around, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Oldest:    formatTS(claimed - window.Seconds()),
		Latest:    formatTS(claimed + window.Seconds()),
		Inclusive: true,
		Limit:     20,
	})
	if err != nil {
		return "", fmt.Errorf("slack: conversation history: %w", err)
	}

	best := ""
	bestDelta := math.Inf(1)
	for _, msg := range resp.Messages {
		if msg.Timestamp == around {
			return around, nil
		}
		got, err := parseTS(msg.Timestamp)
		if err != nil {
			continue
		}
		if delta := math.Abs(got - claimed); delta < bestDelta {
			best = msg.Timestamp
			bestDelta = delta
		}
	}
	return best, nil
}

// Ping verifies the API is reachable with our token.
func (s *Sink) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	return nil
}

// parseTS converts a Slack "seconds.micros" timestamp to float seconds.
func parseTS(ts string) (float64, error) {
	return strconv.ParseFloat(ts, 64)
}

// formatTS renders float seconds in Slack's timestamp form.
func formatTS(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 6, 64)
}
