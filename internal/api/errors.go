package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiverse/server/internal/upstream"
	"github.com/aiverse/server/usecase"
)

// respondError maps use-case and upstream errors to a status code and body.
// noResult is the wording used when nothing usable came back.
func respondError(c echo.Context, logger *zap.Logger, err error, noResult string) error {
	status, body := classify(err, noResult)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		logger.Warn("Request rejected",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}
	return c.JSON(status, body)
}

func classify(err error, noResult string) (int, ErrorResponse) {
	switch {
	case errors.Is(err, usecase.ErrInvalidVibe),
		errors.Is(err, usecase.ErrInvalidLanguage),
		errors.Is(err, usecase.ErrInvalidImage),
		errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, usecase.ErrUnsupportedVoiceLanguage):
		return http.StatusBadRequest, ErrorResponse{Error: capitalize(err.Error())}
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials"}
	case errors.Is(err, usecase.ErrUserExists):
		return http.StatusConflict, ErrorResponse{Error: "User already exists"}
	case errors.Is(err, usecase.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "User not found"}
	case errors.Is(err, usecase.ErrNoResult):
		return http.StatusInternalServerError, ErrorResponse{Error: noResult}
	case errors.Is(err, upstream.ErrCredentialUnavailable),
		errors.Is(err, upstream.ErrUpstreamUnavailable):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "Upstream service unavailable",
			Message: "The AI provider did not respond, please try again later",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
