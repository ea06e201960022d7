package ticket

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTicket(id string) Ticket {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return Ticket{
		ID:             id,
		Channel:        "C0SUPPORT",
		MessageTS:      "1712345678.000100",
		AssigneeEmail:  "mira@example.com",
		AssigneeID:     "U0MIRA",
		CreatedAt:      now,
		LastReminderAt: now,
	}
}

func TestRegisterAndGet(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	got, ok := s.Get("T1")
	if !ok {
		t.Fatal("ticket not found after Register")
	}
	if got.AssigneeID != "U0MIRA" {
		t.Errorf("AssigneeID = %q", got.AssigneeID)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestRegisterOverwrites(t *testing.T) {
	s := NewStore("", nil)
	first := newTicket("T1")
	first.ReminderCount = 5
	s.Register(first)

	// Re-registering the same ID is last-writer-wins, no merge.
	s.Register(newTicket("T1"))

	got, _ := s.Get("T1")
	if got.ReminderCount != 0 {
		t.Errorf("ReminderCount = %d, want 0 (fresh record)", got.ReminderCount)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestRemoveIdempotent(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	if !s.Remove("T1") {
		t.Error("first Remove = false")
	}
	if s.Remove("T1") {
		t.Error("second Remove = true, want false")
	}
	if s.Remove("never-existed") {
		t.Error("Remove of unknown id = true")
	}
}

func TestFindByMessage(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	if _, ok := s.FindByMessage("C0SUPPORT", "1712345678.000100"); !ok {
		t.Error("expected match on announcement message")
	}
	if _, ok := s.FindByMessage("C0SUPPORT", "9999999999.000000"); ok {
		t.Error("unexpected match on foreign message")
	}
	if _, ok := s.FindByMessage("C0OTHER", "1712345678.000100"); ok {
		t.Error("unexpected match in wrong channel")
	}
}

func TestListOpenInsertionOrder(t *testing.T) {
	s := NewStore("", nil)
	for _, id := range []string{"T3", "T1", "T2"} {
		s.Register(newTicket(id))
	}
	s.Remove("T1")

	open := s.ListOpen()
	if len(open) != 2 {
		t.Fatalf("len = %d", len(open))
	}
	if open[0].ID != "T3" || open[1].ID != "T2" {
		t.Errorf("order = %s, %s", open[0].ID, open[1].ID)
	}
}

func TestMarkReminded(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	at := time.Now()
	for want := 1; want <= 3; want++ {
		count, ok := s.MarkReminded("T1", at)
		if !ok {
			t.Fatalf("MarkReminded #%d: ok = false", want)
		}
		if count != want {
			t.Errorf("count = %d, want %d", count, want)
		}
	}

	got, _ := s.Get("T1")
	if !got.LastReminderAt.Equal(at) {
		t.Errorf("LastReminderAt = %v, want %v", got.LastReminderAt, at)
	}
}

func TestMarkRemindedAfterRemoval(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))
	s.Remove("T1")

	if _, ok := s.MarkReminded("T1", time.Now()); ok {
		t.Error("MarkReminded on removed ticket: ok = true")
	}
}

func TestReassignMessage(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	if !s.ReassignMessage("T1", "C0SUPPORT", "1712349999.000500") {
		t.Fatal("ReassignMessage = false")
	}
	got, _ := s.Get("T1")
	if got.MessageTS != "1712349999.000500" {
		t.Errorf("MessageTS = %q", got.MessageTS)
	}
	if s.ReassignMessage("ghost", "C0SUPPORT", "1.0") {
		t.Error("ReassignMessage on unknown id = true")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore("", nil)
	s.Register(newTicket("T1"))

	got, _ := s.Get("T1")
	got.ReminderCount = 99

	again, _ := s.Get("T1")
	if again.ReminderCount != 0 {
		t.Error("mutating a returned ticket leaked into the store")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")

	s := NewStore(path, nil)
	normal := newTicket("T1")
	escalated := newTicket("T2")
	escalated.Escalation = true
	escalated.URL = "https://tickets.example.com/T2"
	escalated.ReminderCount = 2
	escalated.LastReminderAt = time.Date(2026, 3, 14, 13, 30, 0, 500000000, time.UTC)
	s.Register(normal)
	s.Register(escalated)

	restored := NewStore(path, nil)
	restored.Load()

	if restored.Len() != 2 {
		t.Fatalf("restored Len = %d", restored.Len())
	}
	got, ok := restored.Get("T2")
	if !ok {
		t.Fatal("T2 missing after restore")
	}
	if !got.Escalation {
		t.Error("Escalation flag lost")
	}
	if got.ReminderCount != 2 {
		t.Errorf("ReminderCount = %d", got.ReminderCount)
	}
	if got.URL != "https://tickets.example.com/T2" {
		t.Errorf("URL = %q", got.URL)
	}
	if !got.LastReminderAt.Equal(escalated.LastReminderAt) {
		t.Errorf("LastReminderAt = %v, want %v", got.LastReminderAt, escalated.LastReminderAt)
	}

	open := restored.ListOpen()
	if open[0].ID != "T1" || open[1].ID != "T2" {
		t.Errorf("restore lost insertion order: %s, %s", open[0].ID, open[1].ID)
	}
}

func TestSnapshotRoundTripEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")

	s := NewStore(path, nil)
	s.Register(newTicket("T1"))
	s.Remove("T1")

	restored := NewStore(path, nil)
	restored.Load()
	if restored.Len() != 0 {
		t.Errorf("restored Len = %d, want 0", restored.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), nil)
	s.Load()
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, nil)
	s.Load()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after corrupt snapshot", s.Len())
	}

	// The store must stay usable and overwrite the bad file.
	s.Register(newTicket("T1"))
	restored := NewStore(path, nil)
	restored.Load()
	if restored.Len() != 1 {
		t.Errorf("restored Len = %d", restored.Len())
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	if err := os.WriteFile(path, []byte(`{"version":99,"tickets":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, nil)
	s.Load()
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
}
