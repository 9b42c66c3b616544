package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisense/farm-advisor/internal/datastore"
	"github.com/agrisense/farm-advisor/internal/errors"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindUser(ctx context.Context, username string) (*datastore.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*datastore.User)
	return user, args.Error(1)
}

func (m *mockStore) InsertUser(ctx context.Context, user *datastore.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockStore) Close() error { return nil }

type recordingObserver struct {
	logins, signUps []string
}

func (r *recordingObserver) RecordLogin(result string)  { r.logins = append(r.logins, result) }
func (r *recordingObserver) RecordSignUp(result string) { r.signUps = append(r.signUps, result) }

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestSignUp_BlankFieldsNeverReachStore(t *testing.T) {
	t.Parallel()

	tests := []struct{ username, password string }{
		{"farmer", ""},
		{"", "secret"},
		{"   ", "secret"},
		{"farmer", " \t"},
	}
	for _, tt := range tests {
		store := &mockStore{}
		obs := &recordingObserver{}
		svc := NewService(store, WithBcryptCost(bcrypt.MinCost), WithObserver(obs))

		err := svc.SignUp(context.Background(), tt.username, tt.password)
		require.ErrorIs(t, err, ErrBlankCredentials)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		assert.Equal(t, []string{ResultBlank}, obs.signUps)
		store.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "FindUser", mock.Anything, mock.Anything)
	}
}

func TestSignUp_StoresBcryptHash(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	var saved *datastore.User
	store.On("InsertUser", mock.Anything, mock.AnythingOfType("*datastore.User")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*datastore.User) }).
		Return(nil).Once()

	svc := NewService(store, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, svc.SignUp(context.Background(), "farmer", "s3cret"))

	store.AssertExpectations(t)
	require.NotNil(t, saved)
	assert.Equal(t, "farmer", saved.Username)
	assert.NotEqual(t, "s3cret", saved.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.Password), []byte("s3cret")))
}

func TestSignUp_Duplicate(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("InsertUser", mock.Anything, mock.Anything).Return(datastore.ErrUserExists).Once()
	obs := &recordingObserver{}

	svc := NewService(store, WithBcryptCost(bcrypt.MinCost), WithObserver(obs))
	err := svc.SignUp(context.Background(), "farmer", "pw")

	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, "Username already exists", err.Error())
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	assert.Equal(t, []string{ResultExists}, obs.signUps)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	user := &datastore.User{Username: "farmer", Password: hashed(t, "right")}

	tests := []struct {
		name     string
		username string
		password string
		found    *datastore.User
		findErr  error
		wantErr  error
		result   string
	}{
		{"success", "farmer", "right", user, nil, nil, ResultSuccess},
		{"wrong password", "farmer", "wrong", user, nil, ErrInvalidCredentials, ResultInvalid},
		{"unknown user", "ghost", "right", nil, datastore.ErrUserNotFound, ErrInvalidCredentials, ResultInvalid},
		{"store failure", "farmer", "right", nil, assert.AnError, assert.AnError, ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mockStore{}
			store.On("FindUser", mock.Anything, tt.username).Return(tt.found, tt.findErr).Once()
			obs := &recordingObserver{}
			svc := NewService(store, WithObserver(obs))

			got, err := svc.Login(context.Background(), tt.username, tt.password)
			assert.Equal(t, []string{tt.result}, obs.logins)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "farmer", got.Username)
		})
	}
}

func TestLogin_BlankFieldsLookLikeInvalidCredentials(t *testing.T) {
	t.Parallel()

	for _, creds := range [][2]string{{"", "pw"}, {"farmer", ""}, {"  ", "\t"}} {
		store := &mockStore{}
		obs := &recordingObserver{}
		svc := NewService(store, WithObserver(obs))

		got, err := svc.Login(context.Background(), creds[0], creds[1])
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.NotErrorIs(t, err, ErrBlankCredentials)
		assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
		assert.Nil(t, got)
		assert.Equal(t, []string{ResultBlank}, obs.logins)
		store.AssertNotCalled(t, "FindUser", mock.Anything, mock.Anything)
	}
}

func TestLogin_SameMessageForUnknownUserAndWrongPassword(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("FindUser", mock.Anything, "farmer").Return(&datastore.User{Username: "farmer", Password: hashed(t, "right")}, nil)
	store.On("FindUser", mock.Anything, "ghost").Return(nil, datastore.ErrUserNotFound)
	svc := NewService(store)

	_, wrongPassword := svc.Login(context.Background(), "farmer", "wrong")
	_, unknownUser := svc.Login(context.Background(), "ghost", "wrong")
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, "Invalid username or password", unknownUser.Error())
}

func TestEnsureUser_Idempotent(t *testing.T) {
	t.Parallel()

	store, err := datastore.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, WithBcryptCost(bcrypt.MinCost))
	created, err := svc.EnsureUser(context.Background(), "admin", "1234")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureUser(context.Background(), "admin", "other")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.Login(context.Background(), "admin", "1234")
	assert.NoError(t, err)
}
