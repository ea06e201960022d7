// Package zendesksrc implements source.Source against the Zendesk
// Tickets API.
package zendesksrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nudgebot-io/nudgebot/internal/source"
)

// showManyLimit is Zendesk's cap on ids per show_many call.
const showManyLimit = 100

// Client reads ticket status from Zendesk.
type Client struct {
	client   *http.Client
	baseURL  string
	email    string
	apiToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(z *Client) { z.client = c }
}

// New creates a Zendesk client. baseURL is the subdomain root, e.g.
// https://acme.zendesk.com. Auth is the email/token scheme.
func New(baseURL, email, apiToken string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("zendesk: base url is required")
	}
	if email == "" || apiToken == "" {
		return nil, fmt.Errorf("zendesk: email and api token are required")
	}
	z := &Client{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		email:    email,
		apiToken: apiToken,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z, nil
}

type showManyResponse struct {
	Tickets []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"tickets"`
}

// StatusOf resolves ticket statuses in batches. Zendesk's
// solved/closed/deleted all collapse to StatusSolved.
func (z *Client) StatusOf(ctx context.Context, ids []string) (map[string]source.Status, error) {
	result := make(map[string]source.Status, len(ids))
	for start := 0; start < len(ids); start += showManyLimit {
		end := min(start+showManyLimit, len(ids))
		if err := z.fetchBatch(ctx, ids[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (z *Client) fetchBatch(ctx context.Context, ids []string, result map[string]source.Status) error {
	endpoint := fmt.Sprintf("%s/api/v2/tickets/show_many.json?ids=%s",
		z.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("zendesk: create request: %w", err)
	}
	req.SetBasicAuth(z.email+"/token", z.apiToken)

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("zendesk: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("zendesk: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zendesk: api error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed showManyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("zendesk: unmarshal response: %w", err)
	}

	for _, t := range parsed.Tickets {
		result[strconv.FormatInt(t.ID, 10)] = mapStatus(t.Status)
	}
	return nil
}

func mapStatus(s string) source.Status {
	switch s {
	case "solved", "closed", "deleted":
		return source.StatusSolved
	default:
		return source.StatusOpen
	}
}
