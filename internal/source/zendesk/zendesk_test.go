package zendesksrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nudgebot-io/nudgebot/internal/source"
)

func TestStatusOf(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tickets":[
			{"id":42,"status":"open"},
			{"id":43,"status":"solved"},
			{"id":44,"status":"closed"}
		]}`))
	}))
	defer srv.Close()

	z, err := New(srv.URL, "bot@example.com", "tok123", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	statuses, err := z.StatusOf(context.Background(), []string{"42", "43", "44"})
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}

	if gotPath != "/api/v2/tickets/show_many.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "bot@example.com/token" {
		t.Errorf("basic auth user = %q", gotAuth)
	}
	if statuses["42"] != source.StatusOpen {
		t.Errorf("42 = %q", statuses["42"])
	}
	if statuses["43"] != source.StatusSolved {
		t.Errorf("43 = %q", statuses["43"])
	}
	if statuses["44"] != source.StatusSolved {
		t.Errorf("44 = %q", statuses["44"])
	}
}

func TestStatusOfAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	z, _ := New(srv.URL, "bot@example.com", "tok123", WithHTTPClient(srv.Client()))
	if _, err := z.StatusOf(context.Background(), []string{"42"}); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "a@b.c", "tok"); err == nil {
		t.Error("expected error for missing base url")
	}
	if _, err := New("https://acme.zendesk.com", "", ""); err == nil {
		t.Error("expected error for missing credentials")
	}
}
