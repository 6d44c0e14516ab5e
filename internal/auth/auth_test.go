package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/errors"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateUser(ctx context.Context, email, hash string) (*datastore.User, error) {
	args := m.Called(ctx, email, hash)
	u, _ := args.Get(0).(*datastore.User)
	return u, args.Error(1)
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*datastore.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*datastore.User)
	return u, args.Error(1)
}

func sqliteStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "auth.db")
	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockStore{}, bcrypt.MinCost)

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"missing email", RegisterRequest{Password: "secret1"}, ErrMissingFields},
		{"missing password", RegisterRequest{Email: "a@b.co"}, ErrMissingFields},
		{"no at sign", RegisterRequest{Email: "ab.co", Password: "secret1"}, ErrInvalidEmail},
		{"no domain dot", RegisterRequest{Email: "a@bco", Password: "secret1"}, ErrInvalidEmail},
		{"space inside", RegisterRequest{Email: "a b@c.co", Password: "secret1"}, ErrInvalidEmail},
		{"short password", RegisterRequest{Email: "a@b.co", Password: "12345"}, ErrPasswordTooShort},
		{"long password", RegisterRequest{Email: "a@b.co", Password: strings.Repeat("x", 73)}, ErrPasswordTooLong},
		{"mismatch", RegisterRequest{Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret2"}, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Register(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("CreateUser", mock.Anything, "new@example.com", mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret1")) == nil
	})).Return(&datastore.User{ID: 7, Email: "new@example.com"}, nil)

	svc := NewService(store, bcrypt.MinCost)
	user, err := svc.Register(context.Background(), RegisterRequest{
		Email: " new@example.com ", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	store.AssertExpectations(t)
}

func TestRegisterDuplicateAndStorageErrors(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("CreateUser", mock.Anything, "dup@example.com", mock.Anything).Return(nil, datastore.ErrDuplicateUser).Once()
	store.On("CreateUser", mock.Anything, "down@example.com", mock.Anything).Return(nil, datastore.ErrStorage).Once()

	svc := NewService(store, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "dup@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "down@example.com", Password: "secret1"})
	require.ErrorIs(t, err, datastore.ErrStorage)
	assert.NotErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterThenAuthenticate(t *testing.T) {
	t.Parallel()

	svc := NewService(sqliteStore(t), bcrypt.MinCost)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "u@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: "u@example.com", Password: "another1"})
	require.ErrorIs(t, err, ErrEmailTaken)

	user, err := svc.Authenticate(ctx, "u@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", user.Email)

	_, errWrong := svc.Authenticate(ctx, "u@example.com", "hunter23")
	_, errUnknown := svc.Authenticate(ctx, "ghost@example.com", "hunter22")
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.True(t, errors.IsCategory(errWrong, errors.CategoryAuthentication))

	_, err = svc.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestEmailIdentityIgnoresCase(t *testing.T) {
	t.Parallel()

	svc := NewService(sqliteStore(t), bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Email: " Mixed@Example.COM ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", user.Email)

	_, err = svc.Register(ctx, RegisterRequest{Email: "mixed@example.com", Password: "another1"})
	require.ErrorIs(t, err, ErrEmailTaken)

	got, err := svc.Authenticate(ctx, "MIXED@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAuthenticateStorageFailurePassesThrough(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("GetUserByEmail", mock.Anything, "x@example.com").Return(nil, datastore.ErrStorage)

	_, err := NewService(store, bcrypt.MinCost).Authenticate(context.Background(), "x@example.com", "secret1")
	require.ErrorIs(t, err, datastore.ErrStorage)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewServiceClampsCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewService(nil, 99).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewService(nil, 0).cost)
	assert.Equal(t, 12, NewService(nil, 12).cost)
}
