package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nudgebot-io/nudgebot/internal/directory"
	"github.com/nudgebot-io/nudgebot/internal/sink"
	"github.com/nudgebot-io/nudgebot/internal/ticket"
)

type post struct {
	channel string
	text    string
	buttons []sink.Button
}

type mockSink struct {
	posts      []post
	postErr    error
	findResult string
	findErr    error
	finds      int
}

func (m *mockSink) Post(_ context.Context, channel, text string, buttons ...sink.Button) (string, error) {
	if m.postErr != nil {
		return "", m.postErr
	}
	m.posts = append(m.posts, post{channel, text, buttons})
	return "1712349999.000500", nil
}

func (m *mockSink) Update(context.Context, string, string, string) error { return nil }

func (m *mockSink) Reactions(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (m *mockSink) FindMessage(_ context.Context, _, _ string, _ time.Duration) (string, error) {
	m.finds++
	return m.findResult, m.findErr
}

func (m *mockSink) Ping(context.Context) error { return nil }

func newGateway(ms *mockSink) (*Gateway, *ticket.Store) {
	store := ticket.NewStore("", nil)
	dir := directory.New(map[string]string{"mira@example.com": "U0MIRA"})
	g := New(store, dir, ms, Routes{Default: "C0SUPPORT", Escalation: "C0URGENT"}, nil)
	return g, store
}

func TestRegisterMissingFields(t *testing.T) {
	g, store := newGateway(&mockSink{})

	for _, req := range []Request{
		{Assignee: "mira@example.com"},
		{TicketID: "T1"},
		{},
	} {
		if err := g.Register(context.Background(), req); !errors.Is(err, ErrMissingFields) {
			t.Errorf("Register(%+v) = %v, want ErrMissingFields", req, err)
		}
	}
	if store.Len() != 0 {
		t.Error("store changed by rejected registration")
	}
}

func TestRegisterUnknownAssignee(t *testing.T) {
	g, store := newGateway(&mockSink{})

	err := g.Register(context.Background(), Request{
		TicketID: "T1",
		Assignee: "nobody@x.com",
	})
	if !errors.Is(err, ErrUnknownAssignee) {
		t.Errorf("err = %v, want ErrUnknownAssignee", err)
	}
	if _, ok := store.Get("T1"); ok {
		t.Error("ticket tracked despite unknown assignee")
	}
}

func TestRegisterConfirmedMessage(t *testing.T) {
	ms := &mockSink{findResult: "1712345678.000100"}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:  "T42",
		Assignee:  "mira@example.com",
		MessageTS: "1712345678.000100",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := store.Get("T42")
	if !ok {
		t.Fatal("ticket not tracked")
	}
	if got.MessageTS != "1712345678.000100" {
		t.Errorf("MessageTS = %q", got.MessageTS)
	}
	if got.AssigneeID != "U0MIRA" {
		t.Errorf("AssigneeID = %q", got.AssigneeID)
	}
	if got.ReminderCount != 0 {
		t.Errorf("ReminderCount = %d", got.ReminderCount)
	}
	if got.Channel != "C0SUPPORT" {
		t.Errorf("Channel = %q", got.Channel)
	}
	// Confirmed message: no placeholder posted.
	if len(ms.posts) != 0 {
		t.Errorf("posts = %d, want 0", len(ms.posts))
	}
}

func TestRegisterSkewedTimestampConfirmed(t *testing.T) {
	// The lookup finds the real message 1s away from the claimed ts;
	// the confirmed timestamp wins.
	ms := &mockSink{findResult: "1712345679.000200"}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:  "T1",
		Assignee:  "mira@example.com",
		MessageTS: "1712345678.000000",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, _ := store.Get("T1")
	if got.MessageTS != "1712345679.000200" {
		t.Errorf("MessageTS = %q, want confirmed ts", got.MessageTS)
	}
}

func TestRegisterFallbackWhenMessageMissing(t *testing.T) {
	ms := &mockSink{findResult: ""} // lookup succeeds, finds nothing
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:  "T1",
		Assignee:  "mira@example.com",
		MessageTS: "1712345678.000100",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if len(ms.posts) != 1 {
		t.Fatalf("posts = %d, want 1 placeholder", len(ms.posts))
	}
	if len(ms.posts[0].buttons) != 1 || ms.posts[0].buttons[0].ActionID != DoneActionID {
		t.Errorf("placeholder buttons = %+v", ms.posts[0].buttons)
	}
	got, _ := store.Get("T1")
	if got.MessageTS != "1712349999.000500" {
		t.Errorf("MessageTS = %q, want placeholder ts", got.MessageTS)
	}
}

func TestRegisterFallbackWhenLookupFails(t *testing.T) {
	ms := &mockSink{findErr: errors.New("slack 500")}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:  "T1",
		Assignee:  "mira@example.com",
		MessageTS: "1712345678.000100",
	})
	if err != nil {
		t.Fatalf("Register: %v, want placeholder path", err)
	}
	if len(ms.posts) != 1 {
		t.Errorf("posts = %d, want 1", len(ms.posts))
	}
	if _, ok := store.Get("T1"); !ok {
		t.Error("ticket not tracked")
	}
}

func TestRegisterNoMessageTS(t *testing.T) {
	ms := &mockSink{}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID: "T1",
		Assignee: "mira@example.com",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	// No claimed ts → no lookup, straight to announcement post.
	if ms.finds != 0 {
		t.Errorf("finds = %d, want 0", ms.finds)
	}
	if len(ms.posts) != 1 {
		t.Errorf("posts = %d, want 1", len(ms.posts))
	}
	if _, ok := store.Get("T1"); !ok {
		t.Error("ticket not tracked")
	}
}

func TestRegisterUpstreamFailure(t *testing.T) {
	ms := &mockSink{postErr: errors.New("slack down")}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID: "T1",
		Assignee: "mira@example.com",
	})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
	// Never silently dropped: the caller got the error and the store
	// holds nothing.
	if store.Len() != 0 {
		t.Error("ticket tracked despite upstream failure")
	}
}

func TestRegisterEscalationRouting(t *testing.T) {
	ms := &mockSink{}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:   "T1",
		Assignee:   "mira@example.com",
		Escalation: true,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, _ := store.Get("T1")
	if got.Channel != "C0URGENT" {
		t.Errorf("Channel = %q, want escalation channel", got.Channel)
	}
	if !got.Escalation {
		t.Error("Escalation flag not set")
	}
}

func TestRegisterExplicitChannelWins(t *testing.T) {
	ms := &mockSink{}
	g, store := newGateway(ms)

	err := g.Register(context.Background(), Request{
		TicketID:   "T1",
		Assignee:   "mira@example.com",
		Channel:    "C0CUSTOM",
		Escalation: true,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, _ := store.Get("T1")
	if got.Channel != "C0CUSTOM" {
		t.Errorf("Channel = %q", got.Channel)
	}
}

func TestReRegistrationReplaces(t *testing.T) {
	ms := &mockSink{findResult: "1.000100"}
	g, store := newGateway(ms)

	if err := g.Register(context.Background(), Request{
		TicketID: "T1", Assignee: "mira@example.com", MessageTS: "1.000100",
	}); err != nil {
		t.Fatal(err)
	}
	count, _ := store.MarkReminded("T1", time.Now())
	if count != 1 {
		t.Fatalf("count = %d", count)
	}

	// Re-registration creates a fresh lifecycle.
	if err := g.Register(context.Background(), Request{
		TicketID: "T1", Assignee: "mira@example.com", MessageTS: "1.000100",
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get("T1")
	if got.ReminderCount != 0 {
		t.Errorf("ReminderCount = %d, want 0 after re-registration", got.ReminderCount)
	}
}
