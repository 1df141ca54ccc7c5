// Package sources holds the market-data clients the tweet generators read
// from: the Hyperliquid exchange API, LiquidLaunch token events, and
// CoinGecko fundamentals. Each client throttles its own outbound calls and
// keeps a small TTL cache so generator retries don't hammer the APIs.
package sources
