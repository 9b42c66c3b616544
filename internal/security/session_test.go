package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// roundTrip returns a request that carries the cookies set on rec.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionManager_Lifecycle(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(testSecret, time.Hour, false)

	anon := m.Get(httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.False(t, anon.Authenticated)
	assert.Empty(t, anon.Username)

	rec := httptest.NewRecorder()
	created, err := m.Create(rec, httptest.NewRequest(http.MethodPost, "/login", http.NoBody), "farmer")
	require.NoError(t, err)
	assert.True(t, created.Authenticated)
	assert.NotEmpty(t, created.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	got := m.Get(roundTrip(rec))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "farmer", got.Username)
	assert.True(t, got.Authenticated)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	logoutRec := httptest.NewRecorder()
	require.NoError(t, m.Clear(logoutRec, roundTrip(rec)))
	cleared := logoutRec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Negative(t, cleared[0].MaxAge)
	assert.False(t, m.Get(roundTrip(logoutRec)).Authenticated)
}

func TestSessionManager_RejectsForeignCookie(t *testing.T) {
	t.Parallel()

	issuer := NewSessionManager(testSecret, time.Hour, false)
	other := NewSessionManager("another-secret-another-secret-xx", time.Hour, false)

	rec := httptest.NewRecorder()
	_, err := issuer.Create(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody), "farmer")
	require.NoError(t, err)

	assert.False(t, other.Get(roundTrip(rec)).Authenticated)
}

func TestSessionManager_NewIDPerLogin(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(testSecret, 0, true)
	first, err := m.Create(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", http.NoBody), "a")
	require.NoError(t, err)
	second, err := m.Create(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", http.NoBody), "a")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
