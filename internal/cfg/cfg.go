// Package cfg holds the server configuration, registered as flags and
// fillable from VERDICT_-prefixed environment variables.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Config adds verdict-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	AcceptThreshold       float64
	AdapterTimeoutMS      int
	DeadlineMS            int
	CacheTTLSeconds       int
	CacheCapacity         int
	ProviderPriority      string
	RemoteAdapters        string
	ClaudeAPIKey          string
	ClaudeModel           string
	DatabaseURL           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.Float64Var(&c.AcceptThreshold, "accept-threshold", 0.7, "minimum confidence to accept a racing adapter result early (0..1)")
	fs.IntVar(&c.AdapterTimeoutMS, "adapter-timeout-ms", 3000, "per-adapter call timeout in milliseconds")
	fs.IntVar(&c.DeadlineMS, "deadline-ms", 5000, "overall orchestration deadline in milliseconds")
	fs.IntVar(&c.CacheTTLSeconds, "cache-ttl-seconds", 300, "response cache TTL in seconds (0 disables the cache)")
	fs.IntVar(&c.CacheCapacity, "cache-capacity", 1024, "response cache capacity in entries (0 disables the cache)")
	fs.StringVar(&c.ProviderPriority, "provider-priority", "", "comma-separated adapter names used as the final tie-break order")
	fs.StringVar(&c.RemoteAdapters, "remote-adapters", "", "comma-separated name=url pairs of additional analysis backends")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude analysis backend (empty = backend disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for critical-diagnosis notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if !(c.AcceptThreshold > 0 && c.AcceptThreshold <= 1) {
		errs = append(errs, fmt.Errorf("invalid ACCEPT_THRESHOLD %g (must be in (0..1])", c.AcceptThreshold))
	}
	if c.AdapterTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("invalid ADAPTER_TIMEOUT_MS %d (must be positive)", c.AdapterTimeoutMS))
	}
	if c.DeadlineMS <= 0 {
		errs = append(errs, fmt.Errorf("invalid DEADLINE_MS %d (must be positive)", c.DeadlineMS))
	}
	if c.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid CACHE_TTL_SECONDS %d (must be >= 0)", c.CacheTTLSeconds))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("invalid CACHE_CAPACITY %d (must be >= 0)", c.CacheCapacity))
	}

	if _, err := c.RemoteEndpoints(); err != nil {
		errs = append(errs, err)
	}

	// A Claude key without a model cannot be acted on
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Priority returns the configured provider priority as a list.
func (c *Config) Priority() []string {
	if strings.TrimSpace(c.ProviderPriority) == "" {
		return nil
	}
	parts := strings.Split(c.ProviderPriority, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RemoteEndpoint is one configured remote analysis backend.
type RemoteEndpoint struct {
	Name string
	URL  string
}

// RemoteEndpoints parses the remote-adapters flag into endpoint pairs.
func (c *Config) RemoteEndpoints() ([]RemoteEndpoint, error) {
	if strings.TrimSpace(c.RemoteAdapters) == "" {
		return nil, nil
	}

	var out []RemoteEndpoint
	seen := make(map[string]bool)
	for _, pair := range strings.Split(c.RemoteAdapters, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid REMOTE_ADAPTERS entry %q (expected name=url)", pair)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("invalid REMOTE_ADAPTERS url %q (must be http or https)", url)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate REMOTE_ADAPTERS name %q", name)
		}
		seen[name] = true
		out = append(out, RemoteEndpoint{Name: name, URL: url})
	}
	return out, nil
}

// AdapterTimeout returns the per-adapter timeout as a duration.
func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutMS) * time.Millisecond
}

// Deadline returns the overall orchestration deadline as a duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMS) * time.Millisecond
}

// CacheTTL returns the response cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
