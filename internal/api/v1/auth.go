package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrisense/farm-advisor/internal/auth"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/security"
)

// sessionContextKey is the echo context key AuthMiddleware stores the session under.
const sessionContextKey = "session"

// AuthRequest is the sign-up and login body. Form posts bind as well as JSON.
type AuthRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AuthResponse reports the outcome of an authentication call.
type AuthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthStatus is the body of GET /auth/status.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// SignUp handles POST /api/v1/auth/signup.
func (c *Controller) SignUp(ctx echo.Context) error {
	var req AuthRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid sign-up request", http.StatusBadRequest)
	}

	if err := c.auth.SignUp(ctx.Request().Context(), req.Username, req.Password); err != nil {
		code := statusFor(err)
		return c.HandleError(ctx, err, authMessage(err, "Sign-up failed"), code)
	}

	return ctx.JSON(http.StatusCreated, AuthResponse{
		Success:   true,
		Message:   "Account created successfully! You can now log in.",
		Username:  req.Username,
		Timestamp: time.Now(),
	})
}

// Login handles POST /api/v1/auth/login. An unknown user and a wrong password
// produce the same response.
func (c *Controller) Login(ctx echo.Context) error {
	var req AuthRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid login request", http.StatusBadRequest)
	}

	user, err := c.auth.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.HandleError(ctx, err, authMessage(err, "Login failed"), statusFor(err))
	}

	sess, err := c.sessions.Create(ctx.Response(), ctx.Request(), user.Username)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create session", http.StatusInternalServerError)
	}

	c.logger.Info("User logged in",
		logger.String("username", sess.Username),
		logger.String("ip", ctx.RealIP()))

	return ctx.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Message:   fmt.Sprintf("Welcome back, %s 👋", sess.Username),
		Username:  sess.Username,
		Timestamp: time.Now(),
	})
}

// Logout handles POST /api/v1/auth/logout.
func (c *Controller) Logout(ctx echo.Context) error {
	sess := sessionFrom(ctx)
	if err := c.sessions.Clear(ctx.Response(), ctx.Request()); err != nil {
		return c.HandleError(ctx, err, "Failed to clear session", http.StatusInternalServerError)
	}

	c.logger.Info("User logged out", logger.String("username", sess.Username))
	return ctx.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Message:   "Logged out",
		Timestamp: time.Now(),
	})
}

// GetAuthStatus handles GET /api/v1/auth/status.
func (c *Controller) GetAuthStatus(ctx echo.Context) error {
	sess := c.sessions.Get(ctx.Request())
	return ctx.JSON(http.StatusOK, AuthStatus{
		Authenticated: sess.Authenticated,
		Username:      sess.Username,
	})
}

// AuthMiddleware rejects requests without an authenticated session and makes
// the session available to the handler.
func (c *Controller) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess := c.sessions.Get(ctx.Request())
		if !sess.Authenticated {
			return c.HandleError(ctx, nil, "Please log in to continue", http.StatusUnauthorized)
		}
		ctx.Set(sessionContextKey, sess)
		return next(ctx)
	}
}

func sessionFrom(ctx echo.Context) security.Session {
	sess, _ := ctx.Get(sessionContextKey).(security.Session)
	return sess
}

// authMessage returns the user-facing text for an auth.Service error.
func authMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, auth.ErrBlankCredentials):
		return auth.ErrBlankCredentials.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrUserExists):
		return auth.ErrUserExists.Error() + ". Try logging in."
	default:
		return fallback
	}
}
