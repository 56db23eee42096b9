package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/internal/auth"
	"github.com/aiverse/server/internal/observability"
	"github.com/aiverse/server/internal/websocket"
	"github.com/aiverse/server/usecase"
)

const defaultUploadLimit = 20 << 20

type CaptionGenerator interface {
	Generate(ctx context.Context, in usecase.CaptionInput) ([]string, error)
}

type MusicSuggester interface {
	Suggest(ctx context.Context, in usecase.MusicInput) ([]entities.MusicSuggestion, error)
}

type PostGenerator interface {
	Generate(ctx context.Context, in usecase.PostInput) (*entities.PostKit, error)
}

type VoiceCloner interface {
	Languages() []string
	Clone(ctx context.Context, in usecase.VoiceInput) ([]byte, error)
}

type AccountManager interface {
	Register(ctx context.Context, name, email, password string) (*entities.User, error)
	Login(ctx context.Context, email, password string) (*entities.User, string, error)
	Profile(ctx context.Context, userID string) (*entities.User, error)
	UpdateProfile(ctx context.Context, userID string, update entities.ProfileUpdate) error
}

// Dependencies are the services behind the HTTP surface.
// Accounts, Hub and Auth may be nil when their backing stores are not configured.
type Dependencies struct {
	Captions CaptionGenerator
	Music    MusicSuggester
	Posts    PostGenerator
	Voice    VoiceCloner
	Accounts AccountManager

	Hub     *websocket.Hub
	Auth    *auth.Middleware
	Metrics *observability.Metrics

	CookieSecure bool
	// CookieMaxAge in seconds
	CookieMaxAge int
	UploadLimit  int64

	Logger *zap.Logger
}

type handlers struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewMiddleware(nil, "")
	}
	if deps.UploadLimit <= 0 {
		deps.UploadLimit = defaultUploadLimit
	}
	h := &handlers{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "aiverse-server",
		})
	})
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	api := e.Group("/api")

	// Content generation APIs
	api.POST("/generate-captions", h.generateCaptions, deps.Auth.OptionalUser)
	api.POST("/music-suggestions", h.musicSuggestions, deps.Auth.OptionalUser)
	api.POST("/generate-post", h.generatePost, deps.Auth.OptionalUser)

	// Voice APIs
	v1 := api.Group("/v1")
	v1.GET("/languages", h.languages)
	v1.POST("/clone-voice", h.cloneVoice, deps.Auth.OptionalUser)
	v1.GET("/ws/speech", h.speechStream, deps.Auth.OptionalUser)

	// Account APIs
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)
	api.GET("/auth/me", h.me, deps.Auth.RequireUser)
	api.GET("/user/profile", h.getProfile, deps.Auth.RequireUser)
	api.PUT("/user/profile", h.updateProfile, deps.Auth.RequireUser)
}

func userID(c echo.Context) string {
	if claims := auth.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func unavailable(c echo.Context, feature string) error {
	return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "service_unavailable",
		Message: feature + " is not configured on this server",
	})
}

// speechStream upgrades to the PCM streaming WebSocket
func (h *handlers) speechStream(c echo.Context) error {
	if h.Hub == nil {
		return unavailable(c, "Speech streaming")
	}
	return websocket.HandleWebSocket(h.Hub, c, userID(c), h.Logger)
}
