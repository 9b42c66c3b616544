// Package v1 implements the /api/v1 JSON endpoints: account sign-up and
// login, field advice from the tabular models and banana leaf diagnosis.
package v1

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/datastore"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/notification"
	"github.com/agrisense/farm-advisor/internal/security"
)

// FieldAdvisor runs the tabular model chain.
type FieldAdvisor interface {
	Run(ctx context.Context, reading features.FieldReading) (advisor.Prediction, error)
}

// LeafDiagnoser diagnoses raw image bytes.
type LeafDiagnoser interface {
	Diagnose(ctx context.Context, data []byte) (leafscan.Diagnosis, error)
}

// Authenticator registers and checks accounts.
type Authenticator interface {
	SignUp(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (*datastore.User, error)
}

// Notifier accepts advisory events for asynchronous delivery.
type Notifier interface {
	Publish(e *notification.Event) bool
}

// Dependencies are the services the controller is built on. Notifier is optional.
// AuthRateLimit caps sign-up and login requests per client IP per second.
type Dependencies struct {
	Advisor        FieldAdvisor
	Leaf           LeafDiagnoser
	Auth           Authenticator
	Sessions       *security.SessionManager
	Notifier       Notifier
	MaxUploadBytes int64
	AuthRateLimit  rate.Limit
}

// Controller owns the /api/v1 route group.
type Controller struct {
	Group *echo.Group

	advisor        FieldAdvisor
	leaf           LeafDiagnoser
	auth           Authenticator
	sessions       *security.SessionManager
	notifier       Notifier
	maxUploadBytes int64
	authRateLimit  rate.Limit
	logger         logger.Logger
}

const (
	defaultMaxUploadBytes = 8 << 20
	defaultAuthRateLimit  = rate.Limit(10)
)

// New validates deps and registers the v1 routes on e.
func New(e *echo.Echo, deps Dependencies) (*Controller, error) {
	switch {
	case deps.Advisor == nil:
		return nil, errors.Newf("field advisor is required").Component("api").Category(errors.CategoryConfiguration).Build()
	case deps.Leaf == nil:
		return nil, errors.Newf("leaf diagnoser is required").Component("api").Category(errors.CategoryConfiguration).Build()
	case deps.Auth == nil:
		return nil, errors.Newf("authenticator is required").Component("api").Category(errors.CategoryConfiguration).Build()
	case deps.Sessions == nil:
		return nil, errors.Newf("session manager is required").Component("api").Category(errors.CategoryConfiguration).Build()
	}

	c := &Controller{
		Group:          e.Group("/api/v1"),
		advisor:        deps.Advisor,
		leaf:           deps.Leaf,
		auth:           deps.Auth,
		sessions:       deps.Sessions,
		notifier:       deps.Notifier,
		maxUploadBytes: deps.MaxUploadBytes,
		authRateLimit:  deps.AuthRateLimit,
		logger:         GetLogger(),
	}
	if c.maxUploadBytes <= 0 {
		c.maxUploadBytes = defaultMaxUploadBytes
	}
	if c.authRateLimit <= 0 {
		c.authRateLimit = defaultAuthRateLimit
	}

	c.initAuthRoutes()
	c.initAdviceRoutes()
	return c, nil
}

func (c *Controller) initAuthRoutes() {
	g := c.Group.Group("/auth")

	// Credential checks are throttled per client IP; status polling is not.
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(c.authRateLimit))
	g.POST("/signup", c.SignUp, limiter)
	g.POST("/login", c.Login, limiter)
	g.POST("/logout", c.Logout, c.AuthMiddleware)
	g.GET("/status", c.GetAuthStatus)
}

func (c *Controller) initAdviceRoutes() {
	g := c.Group.Group("/advice", c.AuthMiddleware)
	g.POST("/field", c.FieldAdvice)
	g.POST("/leaf", c.LeafAdvice)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse builds an ErrorResponse. Server errors do not expose err's text.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	switch {
	case code >= http.StatusInternalServerError:
		errorStr = http.StatusText(code)
	case err != nil:
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// HandleError logs err under a correlation ID and writes an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code, correlationID(ctx))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
		logger.Int("status", code),
		logger.String("message", message),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}

	log := c.logger.WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// correlationID reuses the request ID when the RequestID middleware ran.
func correlationID(ctx echo.Context) string {
	if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()[:8]
}

// statusFor maps an error category to an HTTP status code.
func statusFor(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryImageDecode:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) notify(e *notification.Event) {
	if c.notifier == nil {
		return
	}
	if !c.notifier.Publish(e) {
		c.logger.Debug("Advisory event not queued", logger.String("kind", string(e.Kind)))
	}
}
