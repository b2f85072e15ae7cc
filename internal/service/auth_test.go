package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
)

func requireUserInput(t *testing.T, err error) map[string]any {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, domainerrors.CodeUserInput, de.Code)
	args, _ := de.Extensions()["invalidArgs"].(map[string]any)
	return args
}

func TestAuth_CreateUser(t *testing.T) {
	f := newFixture(t)

	user, err := f.auth.CreateUser(t.Context(), CreateUserInput{
		Username:      "mluukkai",
		FavoriteGenre: "refactoring",
		Password:      ptr("secret-password"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.ID, "user-"))
	assert.True(t, user.CanLogin())

	stored, err := f.store.Users().Get(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "refactoring", stored.FavoriteGenre)
	assert.True(t, auth.VerifyPassword(stored.PasswordHash, "secret-password"))
}

func TestAuth_CreateUserWithoutPassword(t *testing.T) {
	f := newFixture(t)

	user, err := f.auth.CreateUser(t.Context(), CreateUserInput{Username: "root", FavoriteGenre: "crime"})
	require.NoError(t, err)
	assert.False(t, user.CanLogin())

	_, err = f.auth.Login(t.Context(), "root", "")
	args := requireUserInput(t, err)
	assert.Equal(t, map[string]any{"username": "root"}, args)
}

func TestAuth_CreateUserInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input CreateUserInput
	}{
		{"username too short", CreateUserInput{Username: "ab", FavoriteGenre: "crime"}},
		{"missing favorite genre", CreateUserInput{Username: "abc"}},
		{"password too short", CreateUserInput{Username: "abc", FavoriteGenre: "crime", Password: ptr("short")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.auth.CreateUser(t.Context(), tt.input)
			args := requireUserInput(t, err)
			assert.Equal(t, tt.input.Username, args["username"])
			assert.NotContains(t, args, "password")

			n, _ := f.store.Users().Count(t.Context())
			assert.Zero(t, n)
		})
	}
}

func TestAuth_CreateUserDuplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.CreateUser(t.Context(), CreateUserInput{Username: "mluukkai", FavoriteGenre: "crime"})
	require.NoError(t, err)

	_, err = f.auth.CreateUser(t.Context(), CreateUserInput{Username: "mluukkai", FavoriteGenre: "agile", Password: ptr("secret-password")})
	args := requireUserInput(t, err)
	assert.Equal(t, "agile", args["favoriteGenre"])
	assert.NotContains(t, args, "password")
}

func TestAuth_Login(t *testing.T) {
	f := newFixture(t)
	user, err := f.auth.CreateUser(t.Context(), CreateUserInput{
		Username:      "mluukkai",
		FavoriteGenre: "refactoring",
		Password:      ptr("secret-password"),
	})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		token, err := f.auth.Login(t.Context(), "mluukkai", "secret-password")
		require.NoError(t, err)

		claims, err := f.tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "mluukkai", claims.Username)
	})

	for name, creds := range map[string][2]string{
		"wrong password": {"mluukkai", "not-the-password"},
		"unknown user":   {"nobody", "secret-password"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Login(t.Context(), creds[0], creds[1])
			require.Error(t, err)
			assert.Equal(t, "wrong username or password", err.Error())
			assert.Equal(t, map[string]any{"username": creds[0]}, requireUserInput(t, err))
		})
	}
}

func TestAuth_Authenticate(t *testing.T) {
	f := newFixture(t)
	user, err := f.auth.CreateUser(t.Context(), CreateUserInput{
		Username:      "mluukkai",
		FavoriteGenre: "refactoring",
		Password:      ptr("secret-password"),
	})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		token, err := f.auth.Login(t.Context(), "mluukkai", "secret-password")
		require.NoError(t, err)

		got, err := f.auth.Authenticate(t.Context(), token)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := f.auth.Authenticate(t.Context(), "v4.local.garbage")
		assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthenticated))
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("user gone", func(t *testing.T) {
		token, err := f.tokens.Generate(&domain.User{ID: "user-deleted", Username: "ghost"})
		require.NoError(t, err)

		got, err := f.auth.Authenticate(t.Context(), token)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestAuth_Me(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.auth.Me(t.Context()))

	user := &domain.User{ID: "user-1", Username: "mluukkai"}
	assert.Same(t, user, f.auth.Me(auth.WithUser(t.Context(), user)))
}
