package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Redis   RedisConfig   `json:"redis,omitempty"`
	Twitter TwitterConfig `json:"twitter"`
	Sources SourcesConfig `json:"sources,omitempty"`

	// Schedule controls the daily tweet planner and the periodic checks.
	Schedule ScheduleConfig `json:"schedule"`

	// Queue controls the job queue worker and per-type posting limits.
	Queue QueueConfig `json:"queue"`

	API APIConfig `json:"api,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RedisConfig selects the queue store backend.
//
// URL is a redis:// connection URL. Values like "${REDIS_URL}" are expanded
// from the environment at load time. An empty URL selects the in-process
// memory store (useful for dry runs and tests).
type RedisConfig struct {
	URL string `json:"url,omitempty"`
	// ConnectTimeout is a Go duration string (e.g. "5s").
	ConnectTimeout string `json:"connect_timeout,omitempty"`
}

// TwitterConfig holds the posting credentials and platform accounts.
//
// Credential fields support "${ENV_NAME}" expansion so secrets can stay out
// of the config file. Live=false runs the bot with a dry-run poster that
// only logs what it would have posted.
type TwitterConfig struct {
	Live bool `json:"live"`

	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret"`
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_secret"`
	BearerToken  string `json:"bearer_token,omitempty"`

	// Accounts watched for news and token events.
	HyperliquidAccounts []string `json:"hyperliquid_accounts,omitempty"`
	LiquidLaunchAccount string   `json:"liquidlaunch_account,omitempty"`

	// RatePerMin caps outbound API calls. Default 15.
	RatePerMin int `json:"rate_per_min,omitempty"`
}

// SourcesConfig points at the market-data APIs.
// All durations are Go duration strings (e.g. "500ms", "1h").
type SourcesConfig struct {
	HyperliquidURL string `json:"hyperliquid_url,omitempty"`
	CoinGeckoURL   string `json:"coingecko_url,omitempty"`

	// MetadataTTL controls how long exchange metadata is cached. Default "1h".
	MetadataTTL string `json:"metadata_ttl,omitempty"`
	// EventsTTL controls how long launch/graduation lookups are cached. Default "1h".
	EventsTTL string `json:"events_ttl,omitempty"`
}

// ScheduleConfig controls the daily plan and the periodic enqueue jobs.
type ScheduleConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`

	TweetsPerDayMin int `json:"tweets_per_day_min,omitempty"`
	TweetsPerDayMax int `json:"tweets_per_day_max,omitempty"`

	// Active posting window, hours in the schedule timezone [0..23].
	ActiveHoursStart int `json:"active_hours_start,omitempty"`
	ActiveHoursEnd   int `json:"active_hours_end,omitempty"`

	// ContentDistribution maps tweet source name to a percentage weight.
	// Weights should sum to 100; they are normalized if they don't.
	ContentDistribution map[string]int `json:"content_distribution,omitempty"`

	// Periodic check intervals (Go duration strings).
	SignalCheckInterval string `json:"signal_check_interval,omitempty"` // default "15m"
	TokenEventInterval  string `json:"token_event_interval,omitempty"`  // default "30m"
	PumpInterval        string `json:"pump_interval,omitempty"`         // default "1m"
}

// QueueConfig controls the worker and per-job-type posting limits.
type QueueConfig struct {
	// Limits maps a rate-limit key (normally the job type) to its caps.
	// Keys without an entry fall back to a conservative default.
	Limits map[string]LimitConfig `json:"limits,omitempty"`
}

// LimitConfig is the per-key posting budget.
type LimitConfig struct {
	PerDay  int `json:"per_day"`
	PerHour int `json:"per_hour"`
	// MinInterval is a Go duration string (e.g. "30m").
	MinInterval string `json:"min_interval,omitempty"`
	// MaxRetries bounds retry attempts for jobs of this type. Default 1.
	MaxRetries *int `json:"max_retries,omitempty"`
}

// APIConfig controls the local HTTP control plane.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8085"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Pprof mounts the runtime profiler under /debug on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}

// Validate checks cross-field constraints that strict decoding can't express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Twitter.Live {
		for _, f := range []struct{ name, val string }{
			{"twitter.api_key", cfg.Twitter.APIKey},
			{"twitter.api_secret", cfg.Twitter.APISecret},
			{"twitter.access_token", cfg.Twitter.AccessToken},
			{"twitter.access_secret", cfg.Twitter.AccessSecret},
		} {
			if strings.TrimSpace(f.val) == "" {
				return fmt.Errorf("%s is required when twitter.live is true", f.name)
			}
		}
	}

	if cfg.Schedule.Enabled {
		if cfg.Schedule.TweetsPerDayMin < 0 || cfg.Schedule.TweetsPerDayMax < 0 {
			return errors.New("schedule.tweets_per_day_min/max must be >= 0")
		}
		if cfg.Schedule.TweetsPerDayMax != 0 &&
			cfg.Schedule.TweetsPerDayMin > cfg.Schedule.TweetsPerDayMax {
			return errors.New("schedule.tweets_per_day_min must be <= tweets_per_day_max")
		}
		for _, h := range []int{cfg.Schedule.ActiveHoursStart, cfg.Schedule.ActiveHoursEnd} {
			if h < 0 || h > 23 {
				return errors.New("schedule.active_hours_start/end must be in [0, 23]")
			}
		}
		for _, d := range []struct{ path, raw string }{
			{"schedule.signal_check_interval", cfg.Schedule.SignalCheckInterval},
			{"schedule.token_event_interval", cfg.Schedule.TokenEventInterval},
			{"schedule.pump_interval", cfg.Schedule.PumpInterval},
		} {
			if _, err := ParseDurationField(d.path, d.raw); err != nil {
				return err
			}
		}
	}

	for key, lim := range cfg.Queue.Limits {
		if lim.PerDay < 0 || lim.PerHour < 0 {
			return fmt.Errorf("queue.limits.%s: per_day/per_hour must be >= 0", key)
		}
		if _, err := ParseDurationField("queue.limits."+key+".min_interval", lim.MinInterval); err != nil {
			return err
		}
		if lim.MaxRetries != nil && *lim.MaxRetries < 0 {
			return fmt.Errorf("queue.limits.%s: max_retries must be >= 0", key)
		}
	}

	if _, err := ParseDurationField("redis.connect_timeout", cfg.Redis.ConnectTimeout); err != nil {
		return err
	}
	for _, d := range []struct{ path, raw string }{
		{"sources.metadata_ttl", cfg.Sources.MetadataTTL},
		{"sources.events_ttl", cfg.Sources.EventsTTL},
		{"api.read_timeout", cfg.API.ReadTimeout},
		{"api.write_timeout", cfg.API.WriteTimeout},
		{"api.idle_timeout", cfg.API.IdleTimeout},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	return nil
}
