package scheduler

import (
	"math/rand"
	"sort"
	"time"
)

// PlanConfig shapes one day's posting plan.
type PlanConfig struct {
	TweetsPerDayMin int
	TweetsPerDayMax int
	ActiveHourStart int // inclusive, 0..23
	ActiveHourEnd   int // inclusive, 0..23
	MinGap          time.Duration
	// Distribution maps content source to a percentage weight. Weights
	// need not sum to 100; they are normalized.
	Distribution map[string]int
}

// Slot is one planned posting moment.
type Slot struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Done   bool      `json:"done"`
}

// BuildPlan lays out a day's posting slots. The active window is divided
// into equal segments with one slot jittered inside each, which spreads
// posts across the day while keeping them off a rigid grid. Slots closer
// than MinGap to their predecessor get pushed forward; a window too short
// for the requested count yields fewer slots instead of spilling past it.
func BuildPlan(day time.Time, cfg PlanConfig, rng *rand.Rand) []Slot {
	count := cfg.TweetsPerDayMin
	if spread := cfg.TweetsPerDayMax - cfg.TweetsPerDayMin; spread > 0 {
		count += rng.Intn(spread + 1)
	}
	if count <= 0 {
		return nil
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), cfg.ActiveHourStart, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), cfg.ActiveHourEnd, 59, 59, 0, day.Location())
	if !end.After(start) {
		return nil
	}

	window := end.Sub(start)
	// A window shorter than count gaps can't honor MinGap. Shrinking count
	// until each segment is at least MinGap wide means the gap pass below can
	// never push a slot past the window end.
	if cfg.MinGap > 0 {
		fit := int(window / cfg.MinGap)
		if fit < 1 {
			fit = 1
		}
		if count > fit {
			count = fit
		}
	}
	segment := window / time.Duration(count)

	slots := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		jitter := time.Duration(rng.Int63n(int64(segment)))
		slots = append(slots, Slot{
			At:     start.Add(time.Duration(i)*segment + jitter),
			Source: pickSource(cfg.Distribution, rng),
		})
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].At.Before(slots[j].At) })
	for i := 1; i < len(slots); i++ {
		if gap := slots[i].At.Sub(slots[i-1].At); gap < cfg.MinGap {
			slots[i].At = slots[i-1].At.Add(cfg.MinGap)
		}
	}
	return slots
}

// pickSource draws a content source from the weighted distribution.
func pickSource(dist map[string]int, rng *rand.Rand) string {
	keys := make([]string, 0, len(dist))
	total := 0
	for k, w := range dist {
		if w > 0 {
			keys = append(keys, k)
			total += w
		}
	}
	if total == 0 {
		return ""
	}
	sort.Strings(keys) // map order is random; keep draws reproducible per seed

	n := rng.Intn(total)
	for _, k := range keys {
		n -= dist[k]
		if n < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}
