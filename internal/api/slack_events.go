package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nudgebot-io/nudgebot/internal/gateway"
)

// signatureTolerance bounds the age of a signed Slack request, to
// keep replayed payloads out.
const signatureTolerance = 5 * time.Minute

// requireSlackSignature verifies Slack's v0 request signature before
// the handler body runs. With no signing secret configured it warns
// once and allows, matching the API-key behavior.
func (s *Server) requireSlackSignature(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
			return
		}

		if s.cfg.SigningSecret == "" {
			s.warnNoSecret.Do(func() {
				s.logger.Warn("no slack signing secret configured, slack endpoints are unauthenticated")
			})
		} else if !verifySlackSignature(body, s.cfg.SigningSecret,
			r.Header.Get("X-Slack-Signature"),
			r.Header.Get("X-Slack-Request-Timestamp"),
			time.Now()) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad signature"})
			return
		}

		r2 := r.Clone(r.Context())
		r2.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r2)
	}
}

// verifySlackSignature checks Slack's "v0=<hex>" HMAC-SHA256 over
// "v0:<timestamp>:<body>".
func verifySlackSignature(body []byte, secret, signature, timestamp string, now time.Time) bool {
	if signature == "" || timestamp == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeSlackSignature generates a request signature for tests and
// external callers.
func ComputeSlackSignature(body []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// slackEvent is the subset of the Slack Events API envelope this
// daemon cares about.
type slackEvent struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	Event     struct {
		Type     string `json:"type"`
		Reaction string `json:"reaction"`
		Item     struct {
			Type    string `json:"type"`
			Channel string `json:"channel"`
			TS      string `json:"ts"`
		} `json:"item"`
	} `json:"event"`
}

// handleSlackEvents processes the Slack Events API callback. Reaction
// events are fire-and-forget: the response is 200 regardless of
// whether the reaction resolved anything.
func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	var ev slackEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	switch ev.Type {
	case "url_verification":
		writeJSON(w, http.StatusOK, map[string]string{"challenge": ev.Challenge})
		return
	case "event_callback":
		if ev.Event.Type == "reaction_added" && ev.Event.Item.Type == "message" {
			if s.completer.HandleReaction(ev.Event.Item.Channel, ev.Event.Item.TS, ev.Event.Reaction) {
				s.logger.Debug("reaction event resolved a ticket",
					"channel", ev.Event.Item.Channel, "ts", ev.Event.Item.TS)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

// blockActionPayload is the subset of Slack's interactivity payload
// for button clicks.
type blockActionPayload struct {
	Type    string `json:"type"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// handleSlackInteractions processes Block Kit button clicks. A click
// on the "mark done" button is an explicit completion for the ticket
// in the button's value.
func (s *Server) handleSlackInteractions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	raw := r.PostFormValue("payload")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payload"})
		return
	}

	var payload blockActionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if payload.Type == "block_actions" {
		for _, action := range payload.Actions {
			if action.ActionID == gateway.DoneActionID && action.Value != "" {
				s.completer.Complete(r.Context(), action.Value)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}
