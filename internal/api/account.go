package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/internal/auth"
)

func (h *handlers) register(c echo.Context) error {
	if h.Accounts == nil {
		return unavailable(c, "Accounts")
	}

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return badRequest(c, "Missing required fields")
	}

	user, err := h.Accounts.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Logger, err, "")
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		Message: "User created successfully",
		UserID:  user.ID.Hex(),
	})
}

func (h *handlers) login(c echo.Context) error {
	if h.Accounts == nil {
		return unavailable(c, "Accounts")
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Missing email or password")
	}

	user, token, err := h.Accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Logger, err, "")
	}

	c.SetCookie(&http.Cookie{
		Name:     h.Auth.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   h.CookieMaxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	h.Logger.Info("User logged in", zap.String("userID", user.ID.Hex()))
	return c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		User:    summarize(user),
	})
}

func (h *handlers) logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     h.Auth.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// me answers from the token alone, without a database round trip
func (h *handlers) me(c echo.Context) error {
	claims := auth.ClaimsFrom(c)
	return c.JSON(http.StatusOK, UserResponse{User: UserSummary{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
		Plan:  entities.PlanFree,
	}})
}

func (h *handlers) getProfile(c echo.Context) error {
	if h.Accounts == nil {
		return unavailable(c, "Accounts")
	}

	user, err := h.Accounts.Profile(c.Request().Context(), userID(c))
	if err != nil {
		return respondError(c, h.Logger, err, "")
	}
	return c.JSON(http.StatusOK, ProfileResponse{User: profileView(user)})
}

func (h *handlers) updateProfile(c echo.Context) error {
	if h.Accounts == nil {
		return unavailable(c, "Accounts")
	}

	var req ProfileUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	err := h.Accounts.UpdateProfile(c.Request().Context(), userID(c), entities.ProfileUpdate{
		Name:        req.Name,
		Avatar:      req.Avatar,
		Preferences: req.Preferences,
		Profile:     req.Profile,
	})
	if err != nil {
		return respondError(c, h.Logger, err, "")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}
