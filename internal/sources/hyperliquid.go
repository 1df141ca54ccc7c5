package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

const defaultHyperliquidURL = "https://api.hyperliquid.xyz"

// flexFloat decodes JSON numbers that some APIs ship as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Asset is one tradeable coin from the exchange metadata.
type Asset struct {
	Name string `json:"name"`
}

// Ticker is the current market snapshot for one coin.
type Ticker struct {
	MidPrice     flexFloat `json:"midPrice"`
	Change24h    flexFloat `json:"change24h"`
	Volume24h    flexFloat `json:"volume24h"`
	OpenInterest flexFloat `json:"openInterest"`
}

// Candle is one OHLC bar.
type Candle struct {
	Open  flexFloat `json:"open"`
	High  flexFloat `json:"high"`
	Low   flexFloat `json:"low"`
	Close flexFloat `json:"close"`
	Time  int64     `json:"time"`
}

// CoinStat is one coin's contribution to the daily stats.
type CoinStat struct {
	Coin         string  `json:"coin"`
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"`
	Volume24h    float64 `json:"volume_24h"`
	OpenInterest float64 `json:"open_interest"`
}

// DailyStats aggregates the whole exchange for the daily recap tweet.
type DailyStats struct {
	TotalVolume24h    float64    `json:"total_volume_24h"`
	TotalOpenInterest float64    `json:"total_open_interest"`
	TopGainers        []CoinStat `json:"top_gainers"`
	TopLosers         []CoinStat `json:"top_losers"`
	Timestamp         time.Time  `json:"timestamp"`
}

// Signals carries the EMA momentum state of one coin on two timeframes.
// Signal values are 1 (bullish), -1 (bearish), 0 (neutral).
type Signals struct {
	Coin      string  `json:"coin"`
	Price     float64 `json:"price"`
	Signal15m int     `json:"15m_signal"`
	Change15m bool    `json:"15m_signal_change"`
	Signal1h  int     `json:"1h_signal"`
	Change1h  bool    `json:"1h_signal_change"`
}

// Hyperliquid reads exchange data. Metadata is cached (default 1h) because
// the coin universe changes rarely; everything else is fetched live behind
// a 2 req/s throttle.
type Hyperliquid struct {
	httpc   *http.Client
	limiter *rate.Limiter
	baseURL string
	log     logx.Logger

	metaTTL time.Duration

	mu       sync.Mutex
	universe []Asset
	metaAt   time.Time
}

func NewHyperliquid(baseURL string, metaTTL time.Duration, log logx.Logger) *Hyperliquid {
	if baseURL == "" {
		baseURL = defaultHyperliquidURL
	}
	if metaTTL <= 0 {
		metaTTL = time.Hour
	}
	return &Hyperliquid{
		httpc:   &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		baseURL: baseURL,
		log:     log,
		metaTTL: metaTTL,
	}
}

// Universe returns the tradeable coin names, serving the cache when fresh
// and falling back to a stale cache when the API is down.
func (h *Hyperliquid) Universe(ctx context.Context, forceRefresh bool) ([]Asset, error) {
	h.mu.Lock()
	if !forceRefresh && h.universe != nil && time.Since(h.metaAt) < h.metaTTL {
		out := h.universe
		h.mu.Unlock()
		return out, nil
	}
	h.mu.Unlock()

	var resp []struct {
		Universe []Asset `json:"universe"`
	}
	if err := h.get(ctx, "/info", &resp); err != nil {
		h.mu.Lock()
		cached := h.universe
		h.mu.Unlock()
		if cached != nil {
			h.log.Warn("metadata fetch failed; using cached universe", logx.Err(err))
			return cached, nil
		}
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("hyperliquid metadata: empty response")
	}

	h.mu.Lock()
	h.universe = resp[0].Universe
	h.metaAt = time.Now()
	out := h.universe
	h.mu.Unlock()

	h.log.Info("fetched exchange metadata", logx.Int("coins", len(out)))
	return out, nil
}

func (h *Hyperliquid) Ticker(ctx context.Context, coin string) (Ticker, error) {
	var t Ticker
	if err := h.get(ctx, "/ticker?coin="+url.QueryEscape(coin), &t); err != nil {
		return Ticker{}, fmt.Errorf("ticker %s: %w", coin, err)
	}
	return t, nil
}

func (h *Hyperliquid) Candles(ctx context.Context, coin, interval string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("coin", coin)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var candles []Candle
	if err := h.get(ctx, "/candles_snapshot?"+q.Encode(), &candles); err != nil {
		return nil, fmt.Errorf("candles %s %s: %w", coin, interval, err)
	}
	return candles, nil
}

// DailyStats walks the whole universe and aggregates volume, open interest,
// and movers. Per-coin failures are skipped so one bad ticker doesn't kill
// the recap.
func (h *Hyperliquid) DailyStats(ctx context.Context) (*DailyStats, error) {
	assets, err := h.Universe(ctx, false)
	if err != nil {
		return nil, err
	}

	stats := &DailyStats{Timestamp: time.Now().UTC()}
	for _, a := range assets {
		t, err := h.Ticker(ctx, a.Name)
		if err != nil {
			h.log.Warn("skipping coin in daily stats", logx.String("coin", a.Name), logx.Err(err))
			continue
		}

		stats.TotalVolume24h += float64(t.Volume24h)
		stats.TotalOpenInterest += float64(t.OpenInterest)

		cs := CoinStat{
			Coin:         a.Name,
			Price:        float64(t.MidPrice),
			ChangePct:    float64(t.Change24h) * 100,
			Volume24h:    float64(t.Volume24h),
			OpenInterest: float64(t.OpenInterest),
		}
		if cs.ChangePct > 0 {
			stats.TopGainers = append(stats.TopGainers, cs)
		} else {
			stats.TopLosers = append(stats.TopLosers, cs)
		}
	}

	sort.Slice(stats.TopGainers, func(i, j int) bool {
		return stats.TopGainers[i].ChangePct > stats.TopGainers[j].ChangePct
	})
	sort.Slice(stats.TopLosers, func(i, j int) bool {
		return stats.TopLosers[i].ChangePct < stats.TopLosers[j].ChangePct
	})
	return stats, nil
}

// MomentumSignals computes the 9/21 EMA crossover state on the 15m and 1h
// timeframes plus whether the latest candle flipped either signal.
func (h *Hyperliquid) MomentumSignals(ctx context.Context, coin string) (*Signals, error) {
	t, err := h.Ticker(ctx, coin)
	if err != nil {
		return nil, err
	}
	c15, err := h.Candles(ctx, coin, "15m", 100)
	if err != nil {
		return nil, err
	}
	c1h, err := h.Candles(ctx, coin, "1h", 100)
	if err != nil {
		return nil, err
	}

	close15 := closes(c15)
	close1h := closes(c1h)

	return &Signals{
		Coin:      coin,
		Price:     float64(t.MidPrice),
		Signal15m: emaSignal(close15),
		Change15m: signalChanged(close15),
		Signal1h:  emaSignal(close1h),
		Change1h:  signalChanged(close1h),
	}, nil
}

func closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = float64(c.Close)
	}
	return out
}

// ema is the standard recursive exponential moving average seeded with the
// first price.
func ema(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	out := make([]float64, len(prices))
	out[0] = prices[0]
	k := 2.0 / float64(period+1)
	for i := 1; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// emaSignal reports the fast/slow crossover state at the latest bar.
func emaSignal(prices []float64) int {
	if len(prices) < 2 {
		return 0
	}
	fast := ema(prices, 9)
	slow := ema(prices, 21)
	switch {
	case fast[len(fast)-1] > slow[len(slow)-1]:
		return 1
	case fast[len(fast)-1] < slow[len(slow)-1]:
		return -1
	default:
		return 0
	}
}

// signalChanged reports whether the latest bar flipped the crossover state
// relative to the bar before it.
func signalChanged(prices []float64) bool {
	if len(prices) < 3 {
		return false
	}
	return emaSignal(prices) != emaSignal(prices[:len(prices)-1])
}

func (h *Hyperliquid) get(ctx context.Context, path string, out any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := h.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("hyperliquid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hyperliquid api: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
