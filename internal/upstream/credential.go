package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/aiverse/server/internal/observability"
)

const (
	defaultSafetyMargin    = 60 * time.Second
	defaultTokenLifetime   = time.Hour
	grantTypeClientCredent = "client_credentials"
)

// Clock is the time source of a CredentialCache.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CredentialConfig describes a client-credentials token endpoint.
type CredentialConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// SafetyMargin is subtracted from the issued lifetime (default 60s).
	SafetyMargin time.Duration
	// DefaultLifetime is assumed when the endpoint omits expires_in (default 1h).
	DefaultLifetime time.Duration
}

// ValidateCredentialConfig validates the CredentialConfig
func ValidateCredentialConfig(config CredentialConfig) error {
	if config.ClientID == "" || config.ClientSecret == "" {
		return errors.New("client id and client secret are required")
	}
	if config.TokenURL == "" {
		return errors.New("token URL is required")
	}
	if _, err := url.ParseRequestURI(config.TokenURL); err != nil {
		return fmt.Errorf("invalid token URL: %w", err)
	}
	if config.SafetyMargin < 0 {
		return fmt.Errorf("safety margin must not be negative, got %s", config.SafetyMargin)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CredentialCache holds one bearer token for one upstream and refreshes it
// before it expires. Refresh is serialised: callers arriving while a refresh
// is in flight wait for it and reuse its token.
type CredentialCache struct {
	config  CredentialConfig
	caller  *Caller
	clock   Clock
	metrics *observability.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewCredentialCache creates a cache that exchanges credentials through caller.
func NewCredentialCache(config CredentialConfig, caller *Caller, clock Clock, metrics *observability.Metrics, logger *zap.Logger) (*CredentialCache, error) {
	if err := ValidateCredentialConfig(config); err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	if config.SafetyMargin == 0 {
		config.SafetyMargin = defaultSafetyMargin
	}
	if config.DefaultLifetime <= 0 {
		config.DefaultLifetime = defaultTokenLifetime
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialCache{
		config:  config,
		caller:  caller,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Token returns a bearer token that is valid at the moment of return.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.clock.Now().Before(c.token.Expiry) {
		return c.token.AccessToken, nil
	}

	token, err := c.exchange(ctx)
	if err != nil {
		c.metrics.ObserveCredentialRefresh(c.caller.Name(), "error")
		return "", err
	}
	c.metrics.ObserveCredentialRefresh(c.caller.Name(), "success")
	c.token = token
	return token.AccessToken, nil
}

// Expiry reports when the cached token stops being reused. Zero when empty.
func (c *CredentialCache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return time.Time{}
	}
	return c.token.Expiry
}

// Invalidate drops the cached token, forcing the next Token call to refresh.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *CredentialCache) exchange(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", grantTypeClientCredent)
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	resp, err := c.caller.Call(ctx, Request{
		Method:   MethodPost,
		Endpoint: c.config.TokenURL,
		Payload:  form,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}

	var body tokenResponse
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access_token", ErrCredentialUnavailable)
	}

	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = c.config.DefaultLifetime
	}
	margin := c.config.SafetyMargin
	if margin >= lifetime {
		margin = lifetime / 2
	}

	now := c.clock.Now()
	token := &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		Expiry:      now.Add(lifetime - margin),
	}

	c.logger.Info("Refreshed upstream credential",
		zap.String("upstream", c.caller.Name()),
		zap.Duration("lifetime", lifetime),
		zap.Time("expires_at", token.Expiry))
	return token, nil
}
