package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// TokenFundamentals is the market snapshot behind the fundamentals tweet.
type TokenFundamentals struct {
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	FDV               float64 `json:"fully_diluted_valuation"`
	CirculatingSupply float64 `json:"circulating_supply"`
	TotalSupply       float64 `json:"total_supply"`
	PriceChange24h    float64 `json:"price_change_percentage_24h"`
}

// CoinGecko resolves exchange symbols to CoinGecko IDs through a daily
// coin-list cache and fetches market fundamentals. The free tier is touchy
// about request rates, hence the 1.5s spacing between calls.
type CoinGecko struct {
	httpc   *http.Client
	limiter *rate.Limiter
	baseURL string
	log     logx.Logger

	mu      sync.Mutex
	symToID map[string]string
	coinsAt time.Time
}

func NewCoinGecko(baseURL string, log logx.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	return &CoinGecko{
		httpc:   &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
		baseURL: baseURL,
		log:     log,
	}
}

// Fundamentals fetches the market snapshot for an exchange symbol.
func (c *CoinGecko) Fundamentals(ctx context.Context, symbol string) (*TokenFundamentals, error) {
	id, err := c.coinID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", id)

	var rows []TokenFundamentals
	if err := c.get(ctx, "/coins/markets?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("coingecko markets %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("coingecko: no market data for %s", symbol)
	}
	f := rows[0]
	f.Symbol = strings.ToUpper(f.Symbol)
	return &f, nil
}

// coinID maps an exchange symbol to a CoinGecko coin ID. The coin list is
// cached for a day; on conflicts the first listing wins, which matches the
// majors the bot actually tweets about.
func (c *CoinGecko) coinID(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToLower(symbol)

	c.mu.Lock()
	if c.symToID != nil && time.Since(c.coinsAt) < 24*time.Hour {
		id, ok := c.symToID[symbol]
		c.mu.Unlock()
		if !ok {
			return "", fmt.Errorf("coingecko: unknown symbol %q", symbol)
		}
		return id, nil
	}
	c.mu.Unlock()

	var coins []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	}
	if err := c.get(ctx, "/coins/list", &coins); err != nil {
		return "", fmt.Errorf("coingecko coin list: %w", err)
	}

	m := make(map[string]string, len(coins))
	for _, coin := range coins {
		s := strings.ToLower(coin.Symbol)
		if _, exists := m[s]; !exists {
			m[s] = coin.ID
		}
	}

	c.mu.Lock()
	c.symToID = m
	c.coinsAt = time.Now()
	c.mu.Unlock()
	c.log.Info("fetched coingecko coin list", logx.Int("coins", len(m)))

	id, ok := m[symbol]
	if !ok {
		return "", fmt.Errorf("coingecko: unknown symbol %q", symbol)
	}
	return id, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("coingecko: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
