package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HSTSMaxAge is one year, in seconds.
const HSTSMaxAge = 365 * 24 * 60 * 60

// SecurityConfig configures CORS and the response hardening headers.
type SecurityConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	// HSTSMaxAge is sent only when non-zero; set it when cookies are secure.
	HSTSMaxAge int
}

// NewCORS allows the JSON API and form posts from AllowedOrigins. With no
// origins configured the API is same-origin only.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	if len(config.AllowedOrigins) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: config.AllowCredentials,
		MaxAge:           600,
	})
}

// NewSecureHeaders adds nosniff, frame denial and (optionally) HSTS to every response.
func NewSecureHeaders(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            config.HSTSMaxAge,
	})
}

// NewBodyLimit rejects bodies over limit (echo size syntax, e.g. "10M") with 413.
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
