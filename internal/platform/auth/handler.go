package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/platform/metrics"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler serves the login, session check and logout endpoints.
type Handler struct {
	creds        *Credentials
	sessions     *SessionManager
	secureCookie bool
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewHandler creates an auth handler. secureCookie sets the Secure flag on
// the session cookie and should be true whenever the app is served over TLS.
func NewHandler(creds *Credentials, sessions *SessionManager, secureCookie bool, logger zerolog.Logger) *Handler {
	return &Handler{
		creds:        creds,
		sessions:     sessions,
		secureCookie: secureCookie,
		logger:       logger.With().Str("component", "auth").Logger(),
	}
}

// WithMetrics counts login outcomes on m.
func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.metrics = m
	return h
}

// RegisterRoutes registers the auth endpoints. loginMW (e.g. a stricter rate
// limiter) applies to the login route only.
//
//	POST /api/auth/login
//	GET  /api/auth/check
//	POST /api/auth/logout
func (h *Handler) RegisterRoutes(g *echo.Group, loginMW ...echo.MiddlewareFunc) {
	g.POST("/login", h.Login, loginMW...)
	g.GET("/check", h.Check)
	g.POST("/logout", h.Logout)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.creds.Verify(req.Username, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.metrics.LoginAttempt(false)
			h.logger.Warn().Str("remote_ip", c.RealIP()).Msg("login rejected")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, expires, err := h.sessions.Issue(req.Username)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue session")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start session")
	}

	c.SetCookie(h.cookie(token, expires, int(h.sessions.TTL().Seconds())))
	h.metrics.LoginAttempt(true)
	h.logger.Info().Str("user", req.Username).Msg("login")
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Check handles GET /api/auth/check.
func (h *Handler) Check(c echo.Context) error {
	if _, err := h.sessions.Verify(tokenFromRequest(c.Request())); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]bool{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]bool{"authenticated": true})
}

// Logout handles POST /api/auth/logout. The cookie is cleared and a valid
// session is revoked so a copied token stops working too.
func (h *Handler) Logout(c echo.Context) error {
	if claims, err := h.sessions.Verify(tokenFromRequest(c.Request())); err == nil {
		h.sessions.Revoke(claims)
		h.logger.Info().Str("user", claims.User).Msg("logout")
	}
	c.SetCookie(h.cookie("", time.Unix(0, 0), -1))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
