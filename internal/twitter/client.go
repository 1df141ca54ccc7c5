// Package twitter is a minimal X API v2 client covering what the bot
// needs: posting, retweeting, quote tweets, and reading user timelines.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

const defaultBaseURL = "https://api.twitter.com/2"

// MaxTweetLength is the platform's hard cap on post length.
const MaxTweetLength = 280

type Config struct {
	// AccessToken is the OAuth2 user-context token used for write calls.
	AccessToken string
	// BearerToken is the app-only token used for read calls; falls back to
	// AccessToken when empty.
	BearerToken string

	// RatePerMin caps outbound API calls. Default 15.
	RatePerMin int

	// BaseURL overrides the API root (tests).
	BaseURL string
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("twitter api %d: %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("twitter api %d: %s", e.StatusCode, e.Title)
}

// Business reports whether the rejection is a content/request problem that
// retrying the same payload cannot fix. 429 and 5xx are transient.
func (e *APIError) Business() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// Tweet is one timeline entry.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
	} `json:"public_metrics"`
}

// Client talks to the X API. All calls share one token-bucket limiter so
// the bot stays inside the platform's request budget regardless of which
// component is calling.
type Client struct {
	writeHTTP *http.Client
	readHTTP  *http.Client
	limiter   *rate.Limiter
	baseURL   string
	log       logx.Logger

	mu     sync.Mutex
	selfID string
}

func New(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 15
	}

	newHTTP := func(token string) *http.Client {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c := oauth2.NewClient(context.Background(), src)
		c.Timeout = 30 * time.Second
		return c
	}

	readToken := cfg.BearerToken
	if readToken == "" {
		readToken = cfg.AccessToken
	}

	return &Client{
		writeHTTP: newHTTP(cfg.AccessToken),
		readHTTP:  newHTTP(readToken),
		limiter:   rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
		baseURL:   base,
		log:       log,
	}
}

// ClampTweet bounds text to the platform limit, truncating with an ellipsis.
func ClampTweet(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxTweetLength {
		return text
	}
	return string(runes[:MaxTweetLength-3]) + "..."
}

// PostTweet publishes text and returns the new post's ID.
func (c *Client) PostTweet(ctx context.Context, text string) (string, error) {
	body := map[string]any{"text": ClampTweet(text)}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, c.writeHTTP, http.MethodPost, "/tweets", body, &resp); err != nil {
		return "", err
	}
	c.log.Info("tweet posted", logx.String("tweet_id", resp.Data.ID), logx.Int("len", len(text)))
	return resp.Data.ID, nil
}

// Retweet reposts tweetID as the authenticated user.
func (c *Client) Retweet(ctx context.Context, tweetID string) error {
	uid, err := c.userID(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"tweet_id": tweetID}
	if err := c.do(ctx, c.writeHTTP, http.MethodPost, "/users/"+uid+"/retweets", body, nil); err != nil {
		return err
	}
	c.log.Info("retweeted", logx.String("tweet_id", tweetID))
	return nil
}

// QuoteTweet posts comment quoting tweetID.
func (c *Client) QuoteTweet(ctx context.Context, tweetID, comment string) (string, error) {
	body := map[string]any{
		"text":           ClampTweet(comment),
		"quote_tweet_id": tweetID,
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, c.writeHTTP, http.MethodPost, "/tweets", body, &resp); err != nil {
		return "", err
	}
	c.log.Info("quote tweet posted", logx.String("tweet_id", resp.Data.ID), logx.String("quoted", tweetID))
	return resp.Data.ID, nil
}

// UserTimeline returns the most recent count tweets of username.
func (c *Client) UserTimeline(ctx context.Context, username string, count int) ([]Tweet, error) {
	if count <= 0 {
		count = 10
	}
	if count > 100 {
		count = 100
	}

	uid, err := c.lookupUser(ctx, username)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(count))
	q.Set("tweet.fields", "created_at,public_metrics")

	var resp struct {
		Data []Tweet `json:"data"`
	}
	path := "/users/" + uid + "/tweets?" + q.Encode()
	if err := c.do(ctx, c.readHTTP, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) userID(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.selfID != "" {
		id := c.selfID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, c.writeHTTP, http.MethodGet, "/users/me", nil, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.selfID = resp.Data.ID
	c.mu.Unlock()
	return resp.Data.ID, nil
}

func (c *Client) lookupUser(ctx context.Context, username string) (string, error) {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	path := "/users/by/username/" + url.PathEscape(strings.TrimPrefix(username, "@"))
	if err := c.do(ctx, c.readHTTP, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("twitter request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Title: resp.Status}
		var e struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &e) == nil {
			if e.Title != "" {
				apiErr.Title = e.Title
			}
			apiErr.Detail = e.Detail
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
