// Package security owns the explicit login session carried by every request.
package security

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// SessionName is the cookie name.
const SessionName = "farm_advisor_session"

// DefaultSessionMaxAge applies when the configured max age is zero.
const DefaultSessionMaxAge = 7 * 24 * time.Hour

const (
	keyID            = "id"
	keyUsername      = "username"
	keyAuthenticated = "authenticated"
	keyCreatedAt     = "created_at"
)

// Session is the authentication state of one browser. The zero value is an
// anonymous, unauthenticated session.
type Session struct {
	ID            string    `json:"-"`
	Username      string    `json:"username,omitempty"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"-"`
}

// SessionManager creates, reads and clears sessions in a signed and encrypted cookie.
type SessionManager struct {
	store sessions.Store
}

// NewSessionManager derives cookie keys from secret.
func NewSessionManager(secret string, maxAge time.Duration, secure bool) *SessionManager {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	store := sessions.NewCookieStore(deriveKey(secret, "hash"), deriveKey(secret, "block"))
	store.Options = buildSessionOptions(secure, int(maxAge.Seconds()))
	return &SessionManager{store: store}
}

// NewSessionManagerWithStore uses an existing gorilla store.
func NewSessionManagerWithStore(store sessions.Store) *SessionManager {
	return &SessionManager{store: store}
}

func buildSessionOptions(secure bool, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// deriveKey returns a 32-byte key, valid both for HMAC and AES-256.
func deriveKey(secret, purpose string) []byte {
	sum := sha256.Sum256([]byte(purpose + ":" + secret))
	return sum[:]
}

// Get returns the session attached to r. A missing, expired or tampered
// cookie yields the anonymous session.
func (m *SessionManager) Get(r *http.Request) Session {
	s, err := m.store.Get(r, SessionName)
	if err != nil {
		GetLogger().Debug("Ignoring unreadable session cookie", logger.Error(err))
		return Session{}
	}
	return fromValues(s.Values)
}

// Create starts an authenticated session for username. A new ID is issued on
// every login.
func (m *SessionManager) Create(w http.ResponseWriter, r *http.Request, username string) (Session, error) {
	// a stale or tampered cookie still yields a fresh, usable session
	s, _ := m.store.Get(r, SessionName)

	sess := Session{
		ID:            uuid.NewString(),
		Username:      username,
		Authenticated: true,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	s.Values[keyID] = sess.ID
	s.Values[keyUsername] = sess.Username
	s.Values[keyAuthenticated] = true
	s.Values[keyCreatedAt] = sess.CreatedAt.Unix()

	if err := s.Save(r, w); err != nil {
		return Session{}, errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Context("operation", "save-session").
			Build()
	}
	GetLogger().Debug("Session created", logger.String("username", username), logger.String("session_id", sess.ID))
	return sess, nil
}

// Clear invalidates the session by expiring its cookie.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	s, _ := m.store.Get(r, SessionName)
	for k := range s.Values {
		delete(s.Values, k)
	}
	opts := *s.Options
	opts.MaxAge = -1
	s.Options = &opts

	if err := s.Save(r, w); err != nil {
		return errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Context("operation", "clear-session").
			Build()
	}
	return nil
}

func fromValues(values map[any]any) Session {
	var sess Session
	sess.ID, _ = values[keyID].(string)
	sess.Username, _ = values[keyUsername].(string)
	sess.Authenticated, _ = values[keyAuthenticated].(bool)
	if ts, ok := values[keyCreatedAt].(int64); ok {
		sess.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if sess.ID == "" || sess.Username == "" {
		return Session{}
	}
	return sess
}
