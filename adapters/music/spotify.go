package music

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/observability"
	"github.com/aiverse/server/internal/upstream"
)

const (
	defaultTokenURL   = "https://accounts.spotify.com/api/token"
	defaultAPIBaseURL = "https://api.spotify.com/v1"
)

// SpotifyConfig holds configuration for the Spotify search adapter
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	// Market restricts results to one ISO 3166-1 country when set
	Market     string
	Credential upstream.CredentialConfig
}

// Spotify implements MusicSearch against the Spotify Web API using the
// client-credentials flow.
type Spotify struct {
	caller      *upstream.Caller
	credentials *upstream.CredentialCache
	cache       repositories.TrackCache
	apiBaseURL  string
	market      string
	logger      *zap.Logger
}

var _ repositories.MusicSearch = (*Spotify)(nil)

type searchResponse struct {
	Tracks struct {
		Items []struct {
			Name         string `json:"name"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"tracks"`
}

// ValidateSpotifyConfig validates the SpotifyConfig
func ValidateSpotifyConfig(config SpotifyConfig) error {
	if config.ClientID == "" || config.ClientSecret == "" {
		return fmt.Errorf("spotify client id and secret are required")
	}
	if config.Market != "" && len(config.Market) != 2 {
		return fmt.Errorf("market must be a two letter country code, got %q", config.Market)
	}
	return nil
}

// NewSpotify creates a Spotify search client. cache may be nil.
func NewSpotify(config SpotifyConfig, caller *upstream.Caller, clock upstream.Clock, metrics *observability.Metrics, cache repositories.TrackCache, logger *zap.Logger) (*Spotify, error) {
	if err := ValidateSpotifyConfig(config); err != nil {
		return nil, err
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
		logger.Info("Using default token URL", zap.String("tokenURL", tokenURL))
	}

	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	credentialConfig := config.Credential
	credentialConfig.ClientID = config.ClientID
	credentialConfig.ClientSecret = config.ClientSecret
	credentialConfig.TokenURL = tokenURL

	credentials, err := upstream.NewCredentialCache(credentialConfig, caller, clock, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential cache: %w", err)
	}

	return &Spotify{
		caller:      caller,
		credentials: credentials,
		cache:       cache,
		apiBaseURL:  apiBaseURL,
		market:      strings.ToUpper(config.Market),
		logger:      logger,
	}, nil
}

// SearchTrack returns the Spotify URL of the top track match for query
func (s *Spotify) SearchTrack(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}

	if s.cache != nil {
		if trackURL, ok := s.cache.Get(ctx, query); ok {
			s.logger.Debug("Track cache hit", zap.String("query", query))
			return trackURL, nil
		}
	}

	trackURL, err := s.search(ctx, query)
	if upstream.StatusCode(err) == http.StatusUnauthorized {
		// the token was revoked before its expiry; exchange a new one once
		s.credentials.Invalidate()
		trackURL, err = s.search(ctx, query)
	}
	if err != nil {
		return "", err
	}

	if trackURL != "" && s.cache != nil {
		s.cache.Set(ctx, query, trackURL)
	}
	return trackURL, nil
}

func (s *Spotify) search(ctx context.Context, query string) (string, error) {
	token, err := s.credentials.Token(ctx)
	if err != nil {
		return "", err
	}

	params := map[string]string{
		"q":     query,
		"type":  "track",
		"limit": "1",
	}
	if s.market != "" {
		params["market"] = s.market
	}

	resp, err := s.caller.Call(ctx, upstream.Request{
		Method:   upstream.MethodGet,
		Endpoint: s.apiBaseURL + "/search",
		Headers:  map[string]string{"Authorization": "Bearer " + token},
		Payload:  params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to search track: %w", err)
	}

	var body searchResponse
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	if len(body.Tracks.Items) == 0 {
		s.logger.Info("No track found", zap.String("query", query))
		return "", nil
	}

	trackURL := body.Tracks.Items[0].ExternalURLs.Spotify
	if trackURL == "" {
		return "", errors.New("track has no spotify URL")
	}
	return trackURL, nil
}
