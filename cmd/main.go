package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aiverse/server/adapters/audio"
	"github.com/aiverse/server/adapters/llm"
	"github.com/aiverse/server/adapters/memory"
	"github.com/aiverse/server/adapters/mongo"
	"github.com/aiverse/server/adapters/music"
	"github.com/aiverse/server/adapters/tts"
	"github.com/aiverse/server/domain/repositories"
	"github.com/aiverse/server/internal/api"
	"github.com/aiverse/server/internal/auth"
	"github.com/aiverse/server/internal/cache"
	"github.com/aiverse/server/internal/config"
	"github.com/aiverse/server/internal/normalize"
	"github.com/aiverse/server/internal/observability"
	"github.com/aiverse/server/internal/upstream"
	"github.com/aiverse/server/internal/websocket"
	"github.com/aiverse/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(config.Options{
		EnvFile:    os.Getenv("AIVERSE_ENV_FILE"),
		ConfigFile: os.Getenv("AIVERSE_CONFIG_FILE"),
	})
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics := observability.NewMetrics()
	retrier := upstream.NewRetrier(upstream.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Jitter:       cfg.Retry.Jitter,
	}, logger, upstream.WithMetrics(metrics))

	// Initialize adapters
	var generator repositories.ContentGenerator
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}, retrier, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using canned responses")
		generator = llm.NewMockGemini()
	}

	var redisClient *redis.Client
	var trackCache repositories.TrackCache
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		trackCache = cache.NewTrackCache(redisClient, cfg.Redis.TrackTTL)
	}

	var search repositories.MusicSearch
	if cfg.Spotify.Enabled() {
		spotify, err := music.NewSpotify(music.SpotifyConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			TokenURL:     cfg.Spotify.TokenURL,
			APIBaseURL:   cfg.Spotify.APIBaseURL,
			Market:       cfg.Spotify.Market,
			Credential:   upstream.CredentialConfig{SafetyMargin: cfg.Spotify.SafetyMargin},
		}, upstream.NewCaller("spotify", nil, retrier, logger), upstream.SystemClock{}, metrics, trackCache, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Spotify", zap.Error(err))
		}
		search = spotify
	} else {
		logger.Warn("Spotify credentials not set, music suggestions will have no links")
	}

	var mongoClient *mongo.Client
	var users repositories.UserRepository
	switch {
	case cfg.Mongo.URI != "":
		mongoClient, err = mongo.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		userRepo := mongo.NewUserRepository(mongoClient.Database, logger)
		if err := userRepo.EnsureIndexes(ctx); err != nil {
			logger.Fatal("Failed to create user indexes", zap.Error(err))
		}
		users = userRepo
	case cfg.Auth.JWTSecret != "":
		logger.Warn("MONGODB_URI not set, accounts are kept in memory")
		users = memory.NewUserRepository()
	default:
		logger.Warn("MONGODB_URI and JWT_SECRET not set, accounts are disabled")
	}

	var accounts api.AccountManager
	var tokens *auth.TokenManager
	if users != nil {
		tokens, err = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			logger.Fatal("Failed to initialize tokens", zap.Error(err))
		}
		accounts = usecase.NewAccountService(users, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, logger)
	}

	var voice api.VoiceCloner
	var hub *websocket.Hub
	if cfg.ElevenLabs.APIKey != "" {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabs.APIKey,
			APIBaseURL:   cfg.ElevenLabs.APIBaseURL,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			ChunkSize:    cfg.ElevenLabs.ChunkSize,
			Stability:    cfg.ElevenLabs.Stability,
			Clarity:      cfg.ElevenLabs.Clarity,
		}, upstream.NewCaller("elevenlabs", nil, retrier, logger), logger)
		if err != nil {
			logger.Fatal("Failed to initialize Eleven Labs", zap.Error(err))
		}
		voice = usecase.NewVoiceService(elevenLabs, audio.NewWAVEncoder(cfg.Server.TempDir, logger), users, logger)

		hub = websocket.NewHub(elevenLabs, cfg.ElevenLabs.VoiceID, logger)
		go hub.Run(ctx)
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, voice features are disabled")
	}

	// Initialize usecase services
	normalizer := normalize.NewNormalizer(metrics, logger)
	captions := usecase.NewCaptionService(generator, normalizer, users, logger)
	suggestions := usecase.NewMusicService(generator, search, normalizer, users, logger)
	posts := usecase.NewPostService(generator, search, users, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	cookieMaxAge := 0
	if tokens != nil {
		cookieMaxAge = int(tokens.TTL().Seconds())
	}

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Captions:     captions,
		Music:        suggestions,
		Posts:        posts,
		Voice:        voice,
		Accounts:     accounts,
		Hub:          hub,
		Auth:         auth.NewMiddleware(tokens, cfg.Auth.CookieName),
		Metrics:      metrics,
		CookieSecure: cfg.Auth.CookieSecure,
		CookieMaxAge: cookieMaxAge,
		Logger:       logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.Bool("accounts", accounts != nil),
		zap.Bool("voice", voice != nil),
		zap.Bool("music_links", search != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if mongoClient != nil {
		_ = mongoClient.Close(shutdownCtx)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.Server.ShutdownTimeout
}
