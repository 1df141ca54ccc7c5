package app

import (
	"time"

	"github.com/hypexbt/hypexbt/internal/config"
	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/scheduler"
)

// mapLimits converts the config's per-type caps into limiter limits and
// retry policies. Config validation already vetted the duration strings, so
// parse errors here fall back to defaults instead of failing the reload.
func mapLimits(cfg *config.Config) (map[string]queue.Limit, map[string]queue.RetryPolicy) {
	limits := make(map[string]queue.Limit, len(cfg.Queue.Limits))
	policies := make(map[string]queue.RetryPolicy, len(cfg.Queue.Limits))

	for key, lc := range cfg.Queue.Limits {
		lim := queue.DefaultLimit()
		if lc.PerDay > 0 {
			lim.PerDay = lc.PerDay
		}
		if lc.PerHour > 0 {
			lim.PerHour = lc.PerHour
		}
		if d, err := config.ParseDurationField("queue.limits."+key+".min_interval", lc.MinInterval); err == nil && d > 0 {
			lim.MinInterval = d
		}
		limits[key] = lim

		p := queue.DefaultRetryPolicy()
		if lc.MaxRetries != nil {
			p.MaxRetries = *lc.MaxRetries
		}
		policies[key] = p
	}
	return limits, policies
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	sc := cfg.Schedule
	out := scheduler.Config{
		Enabled:  sc.Enabled,
		Timezone: sc.Timezone,
		Plan: scheduler.PlanConfig{
			TweetsPerDayMin: sc.TweetsPerDayMin,
			TweetsPerDayMax: sc.TweetsPerDayMax,
			ActiveHourStart: sc.ActiveHoursStart,
			ActiveHourEnd:   sc.ActiveHoursEnd,
			MinGap:          30 * time.Minute,
			Distribution:    sc.ContentDistribution,
		},
	}
	if out.Plan.TweetsPerDayMin <= 0 && out.Plan.TweetsPerDayMax <= 0 {
		out.Plan.TweetsPerDayMin, out.Plan.TweetsPerDayMax = 3, 6
	}
	if out.Plan.ActiveHourEnd <= 0 {
		out.Plan.ActiveHourStart, out.Plan.ActiveHourEnd = 8, 22
	}

	out.SignalCheckInterval = durationOr("schedule.signal_check_interval", sc.SignalCheckInterval, 15*time.Minute)
	out.TokenEventInterval = durationOr("schedule.token_event_interval", sc.TokenEventInterval, 30*time.Minute)
	out.PumpInterval = durationOr("schedule.pump_interval", sc.PumpInterval, time.Minute)
	return out
}

func durationOr(path, raw string, def time.Duration) time.Duration {
	d, err := config.ParseDurationOrDefault(path, raw, def)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
