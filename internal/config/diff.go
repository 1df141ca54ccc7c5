package config

import (
	"reflect"
	"sort"
	"strings"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like API keys).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Redis (never log the URL; it can embed a password)
	if strings.TrimSpace(oldCfg.Redis.URL) != strings.TrimSpace(newCfg.Redis.URL) ||
		strings.TrimSpace(oldCfg.Redis.ConnectTimeout) != strings.TrimSpace(newCfg.Redis.ConnectTimeout) {
		changed = append(changed, "redis")
		attrs = append(attrs,
			logx.Bool("redis.url_set", strings.TrimSpace(newCfg.Redis.URL) != ""),
			logx.String("redis.connect_timeout", strings.TrimSpace(newCfg.Redis.ConnectTimeout)),
		)
	}

	// Twitter (never log credentials)
	if oldCfg.Twitter.Live != newCfg.Twitter.Live ||
		oldCfg.Twitter.RatePerMin != newCfg.Twitter.RatePerMin ||
		!reflect.DeepEqual(oldCfg.Twitter.HyperliquidAccounts, newCfg.Twitter.HyperliquidAccounts) ||
		strings.TrimSpace(oldCfg.Twitter.LiquidLaunchAccount) != strings.TrimSpace(newCfg.Twitter.LiquidLaunchAccount) ||
		credsChanged(oldCfg.Twitter, newCfg.Twitter) {
		changed = append(changed, "twitter")
		attrs = append(attrs,
			logx.Bool("twitter.live", newCfg.Twitter.Live),
			logx.Int("twitter.rate_per_min", newCfg.Twitter.RatePerMin),
			logx.Int("twitter.hyperliquid_accounts", len(newCfg.Twitter.HyperliquidAccounts)),
			logx.Bool("twitter.creds_set", strings.TrimSpace(newCfg.Twitter.APIKey) != ""),
		)
	}

	// Sources
	if !reflect.DeepEqual(oldCfg.Sources, newCfg.Sources) {
		changed = append(changed, "sources")
		attrs = append(attrs,
			logx.String("sources.hyperliquid_url", strings.TrimSpace(newCfg.Sources.HyperliquidURL)),
			logx.String("sources.coingecko_url", strings.TrimSpace(newCfg.Sources.CoinGeckoURL)),
		)
	}

	// Schedule
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Bool("schedule.enabled", newCfg.Schedule.Enabled),
			logx.String("schedule.timezone", strings.TrimSpace(newCfg.Schedule.Timezone)),
			logx.Int("schedule.tweets_per_day_min", newCfg.Schedule.TweetsPerDayMin),
			logx.Int("schedule.tweets_per_day_max", newCfg.Schedule.TweetsPerDayMax),
		)
	}

	// Queue limits
	if !reflect.DeepEqual(oldCfg.Queue, newCfg.Queue) {
		changed = append(changed, "queue")
		attrs = append(attrs,
			logx.Int("queue.limit_keys", len(newCfg.Queue.Limits)),
		)
	}

	// API
	if !reflect.DeepEqual(oldCfg.API, newCfg.API) {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", strings.TrimSpace(newCfg.API.Addr)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// credsChanged compares only set/unset status, not values, so the summary
// never depends on secret bytes.
func credsChanged(o, n TwitterConfig) bool {
	set := func(s string) bool { return strings.TrimSpace(s) != "" }
	return set(o.APIKey) != set(n.APIKey) ||
		set(o.APISecret) != set(n.APISecret) ||
		set(o.AccessToken) != set(n.AccessToken) ||
		set(o.AccessSecret) != set(n.AccessSecret) ||
		set(o.BearerToken) != set(n.BearerToken)
}
