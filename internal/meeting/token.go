package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therapistbooster/booking-platform/pkg/logging"
)

const tokenCacheKey = "zoom:oauth:access_token"

// TokenSource fetches server-to-server OAuth tokens for the Zoom API and
// caches them in Redis until shortly before expiry. With no Redis configured
// it falls back to an in-process cache.
type TokenSource struct {
	accountID    string
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	redis        *redis.Client
	logger       *logging.Logger

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
	ttl      time.Duration
}

// NewTokenSource creates a Zoom token source.
func NewTokenSource(accountID, clientID, clientSecret string, rdb *redis.Client, logger *logging.Logger) *TokenSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenSource{
		accountID:    accountID,
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://zoom.us",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		redis:        rdb,
		logger:       logger,
	}
}

// WithBaseURL overrides the OAuth endpoint (for testing).
func (t *TokenSource) WithBaseURL(baseURL string) *TokenSource {
	if baseURL != "" {
		t.baseURL = strings.TrimRight(baseURL, "/")
	}
	return t
}

// Token returns a valid access token, refreshing when the cache is cold.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := t.fromCache(ctx); ok {
		return tok, nil
	}

	tok, expiresIn, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	// Refresh a minute early so in-flight requests never carry a dying token.
	ttl := time.Duration(expiresIn)*time.Second - time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	t.store(ctx, tok, ttl)
	return tok, nil
}

func (t *TokenSource) fromCache(ctx context.Context) (string, bool) {
	if t.redis != nil {
		tok, err := t.redis.Get(ctx, tokenCacheKey).Result()
		if err == nil && tok != "" {
			return tok, true
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			t.logger.Error("zoom token cache read failed", "error", err)
		}
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached != "" && time.Since(t.cachedAt) < t.ttl {
		return t.cached, true
	}
	return "", false
}

func (t *TokenSource) store(ctx context.Context, tok string, ttl time.Duration) {
	if t.redis != nil {
		if err := t.redis.Set(ctx, tokenCacheKey, tok, ttl).Err(); err != nil {
			t.logger.Error("zoom token cache write failed", "error", err)
		}
		return
	}

	t.mu.Lock()
	t.cached = tok
	t.cachedAt = time.Now()
	t.ttl = ttl
	t.mu.Unlock()
}

func (t *TokenSource) fetch(ctx context.Context) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", t.accountID)

	endpoint := t.baseURL + "/oauth/token?" + form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", 0, fmt.Errorf("meeting: zoom token request: %w", err)
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("meeting: zoom token http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("meeting: zoom token status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("meeting: zoom token decode: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("meeting: zoom token response missing access_token")
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}
