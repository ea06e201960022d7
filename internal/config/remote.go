package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteOptions holds parameters for fetching config over HTTP, for
// fleets that manage nudgebot settings centrally.
type RemoteOptions struct {
	URL    string // e.g. https://ops.example.com/nudgebot/config.json
	APIKey string // optional Bearer token
}

// LoadFromRemote fetches the configuration JSON from a remote endpoint
// and returns the parsed, validated Config.
func LoadFromRemote(opts RemoteOptions) (*Config, error) {
	req, err := http.NewRequest("GET", opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("config: create request: %w", err)
	}
	if opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: fetch %s: %w", opts.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("config: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var cfg Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse remote config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
