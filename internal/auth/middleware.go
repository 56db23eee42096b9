package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultCookieName = "auth-token"
	claimsContextKey  = "auth.claims"
)

// Middleware authenticates echo requests from the session cookie or a bearer header
type Middleware struct {
	tokens     *TokenManager
	cookieName string
}

func NewMiddleware(tokens *TokenManager, cookieName string) *Middleware {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Middleware{tokens: tokens, cookieName: cookieName}
}

func (m *Middleware) CookieName() string { return m.cookieName }

// RequireUser rejects requests without a valid token
func (m *Middleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := m.authenticate(c)
		if claims == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error":   "unauthorized",
				"message": "Not authenticated",
			})
		}
		c.Set(claimsContextKey, claims)
		return next(c)
	}
}

// OptionalUser attaches claims when a valid token is present and never rejects
func (m *Middleware) OptionalUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims := m.authenticate(c); claims != nil {
			c.Set(claimsContextKey, claims)
		}
		return next(c)
	}
}

func (m *Middleware) authenticate(c echo.Context) *JWTClaims {
	if m == nil || m.tokens == nil {
		return nil
	}
	token := ""
	if cookie, err := c.Cookie(m.cookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	if token == "" {
		return nil
	}
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

// ClaimsFrom returns the claims stored by the middleware, or nil
func ClaimsFrom(c echo.Context) *JWTClaims {
	claims, _ := c.Get(claimsContextKey).(*JWTClaims)
	return claims
}
