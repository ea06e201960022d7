package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level nudgebot configuration.
type Config struct {
	Slack     SlackConfig       `json:"slack"`
	Channels  ChannelsConfig    `json:"channels"`
	Reminders RemindersConfig   `json:"reminders"`
	Directory map[string]string `json:"directory"` // assignee email → Slack user ID
	Ticketing *TicketingConfig  `json:"ticketing,omitempty"`
	API       APIConfig         `json:"api"`
	DataDir   string            `json:"data_dir"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken      string `json:"bot_token"`                // xoxb-... Bot User OAuth Token
	SigningSecret string `json:"signing_secret,omitempty"` // request verification for /slack/* endpoints
	DoneReaction  string `json:"done_reaction,omitempty"`  // default white_check_mark
}

// ChannelsConfig is the channel routing policy for announcements and
// reminders.
type ChannelsConfig struct {
	Default    string `json:"default"`
	Escalation string `json:"escalation,omitempty"` // falls back to Default
}

// RemindersConfig holds the reminder cadence. Zero values take the
// built-in defaults.
type RemindersConfig struct {
	SweepMinutes    int `json:"sweep_minutes,omitempty"`    // default 10
	NormalHours     int `json:"normal_hours,omitempty"`     // default 4
	EscalationHours int `json:"escalation_hours,omitempty"` // default 2
	EscalateAfter   int `json:"escalate_after,omitempty"`   // default 3
}

// SweepPeriod returns the interval between scheduler sweeps.
func (r RemindersConfig) SweepPeriod() time.Duration {
	return time.Duration(r.SweepMinutes) * time.Minute
}

// NormalInterval returns the reminder interval for regular tickets.
func (r RemindersConfig) NormalInterval() time.Duration {
	return time.Duration(r.NormalHours) * time.Hour
}

// EscalationInterval returns the reminder interval for escalation tickets.
func (r RemindersConfig) EscalationInterval() time.Duration {
	return time.Duration(r.EscalationHours) * time.Hour
}

// TicketingConfig enables periodic reconciliation against the
// ticketing system.
type TicketingConfig struct {
	BaseURL  string `json:"base_url"` // e.g. https://acme.zendesk.com
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from NUDGE_-prefixed environment
// variables. The assignee directory comes from the JSON file named by
// NUDGE_DIRECTORY_FILE, a flat email → Slack ID map.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Slack: SlackConfig{
			BotToken:      os.Getenv("NUDGE_SLACK_BOT_TOKEN"),
			SigningSecret: os.Getenv("NUDGE_SLACK_SIGNING_SECRET"),
			DoneReaction:  os.Getenv("NUDGE_DONE_REACTION"),
		},
		Channels: ChannelsConfig{
			Default:    os.Getenv("NUDGE_CHANNEL_ID"),
			Escalation: os.Getenv("NUDGE_ESCALATION_CHANNEL_ID"),
		},
		Reminders: RemindersConfig{
			SweepMinutes:    getenvInt("NUDGE_SWEEP_MINUTES", 0),
			NormalHours:     getenvInt("NUDGE_NORMAL_HOURS", 0),
			EscalationHours: getenvInt("NUDGE_ESCALATION_HOURS", 0),
			EscalateAfter:   getenvInt("NUDGE_ESCALATE_AFTER", 0),
		},
		API: APIConfig{
			Host: os.Getenv("NUDGE_API_HOST"),
			Port: getenvInt("NUDGE_API_PORT", 0),
			Key:  os.Getenv("NUDGE_API_KEY"),
		},
		DataDir: os.Getenv("NUDGE_DATA_DIR"),
	}

	if path := os.Getenv("NUDGE_DIRECTORY_FILE"); path != "" {
		dir, err := loadDirectoryFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Directory = dir
	}

	if baseURL := os.Getenv("NUDGE_ZENDESK_URL"); baseURL != "" {
		cfg.Ticketing = &TicketingConfig{
			BaseURL:  baseURL,
			Email:    os.Getenv("NUDGE_ZENDESK_EMAIL"),
			APIToken: os.Getenv("NUDGE_ZENDESK_TOKEN"),
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDirectoryFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read directory file %s: %w", path, err)
	}
	var dir map[string]string
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("config: parse directory file %s: %w", path, err)
	}
	return dir, nil
}

func (c *Config) applyDefaults() {
	if c.Reminders.SweepMinutes == 0 {
		c.Reminders.SweepMinutes = 10
	}
	if c.Reminders.NormalHours == 0 {
		c.Reminders.NormalHours = 4
	}
	if c.Reminders.EscalationHours == 0 {
		c.Reminders.EscalationHours = 2
	}
	if c.Reminders.EscalateAfter == 0 {
		c.Reminders.EscalateAfter = 3
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}

// Validate checks for required fields and consistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Slack.BotToken == "" {
		errs = append(errs, "slack.bot_token is required")
	}
	if c.Channels.Default == "" {
		errs = append(errs, "channels.default is required")
	}
	if len(c.Directory) == 0 {
		errs = append(errs, "directory must map at least one assignee email to a slack user ID")
	}

	if c.Reminders.SweepMinutes < 0 || c.Reminders.NormalHours < 0 ||
		c.Reminders.EscalationHours < 0 || c.Reminders.EscalateAfter < 0 {
		errs = append(errs, "reminders values must not be negative")
	}

	if c.Ticketing != nil {
		if c.Ticketing.BaseURL == "" {
			errs = append(errs, "ticketing.base_url is required")
		}
		if c.Ticketing.Email == "" || c.Ticketing.APIToken == "" {
			errs = append(errs, "ticketing.email and ticketing.api_token are required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
