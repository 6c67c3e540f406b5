package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateTestToken creates a JWT token with the given identity claims.
// This is useful for testing authentication and authorization.
func CreateTestToken(userID int32, superUser bool, roles []string, secret []byte) (string, error) {
	tokenAuth := jwtauth.New("HS256", secret, nil)

	claims := map[string]interface{}{
		"sub":       "user",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"user_id":   userID,
		"superuser": superUser,
		"roles":     roles,
	}

	_, tokenString, err := tokenAuth.Encode(claims)
	return tokenString, err
}

func protectedHandler(t *testing.T, got **AuthUser) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authUser, ok := AuthUserFromContext(r.Context())
		require.True(t, ok)
		*got = authUser
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthUserMiddleware(t *testing.T) {
	secret := []byte("test-jwt-secret-key")
	tokenAuth := jwtauth.New("HS256", secret, nil)

	t.Run("valid token yields an auth user", func(t *testing.T) {
		tokenString, err := CreateTestToken(42, false, []string{"Editors"}, secret)
		require.NoError(t, err)

		var got *AuthUser
		handler := Verifier(tokenAuth)(AuthUserMiddleware(protectedHandler(t, &got)))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, int32(42), got.UserID)
		assert.False(t, got.SuperUser)
		assert.Equal(t, []string{"Editors"}, got.Roles)

		actor := got.Actor()
		assert.Equal(t, int32(42), actor.UserID)
		assert.True(t, actor.HasRole("Editors"))
	})

	t.Run("token from cookie", func(t *testing.T) {
		tokenString, err := CreateTestToken(7, true, nil, secret)
		require.NoError(t, err)

		var got *AuthUser
		handler := Verifier(tokenAuth)(AuthUserMiddleware(protectedHandler(t, &got)))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: tokenString})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.True(t, got.SuperUser)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		var got *AuthUser
		handler := Verifier(tokenAuth)(AuthUserMiddleware(protectedHandler(t, &got)))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, got)
	})

	t.Run("token without user id is unauthorized", func(t *testing.T) {
		_, tokenString, err := tokenAuth.Encode(map[string]interface{}{
			"sub": "user",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		var got *AuthUser
		handler := Verifier(tokenAuth)(AuthUserMiddleware(protectedHandler(t, &got)))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	secret := []byte("test-jwt-secret-key")
	tokenAuth := jwtauth.New("HS256", secret, nil)

	run := func(t *testing.T, tokenString string, middleware func(http.Handler) http.Handler) int {
		t.Helper()
		handler := Verifier(tokenAuth)(AuthUserMiddleware(middleware(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("role holder passes", func(t *testing.T) {
		tokenString, err := CreateTestToken(1, false, []string{"Administrators"}, secret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, run(t, tokenString, RequireRole("Administrators")))
	})

	t.Run("superuser passes without the role", func(t *testing.T) {
		tokenString, err := CreateTestToken(1, true, nil, secret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, run(t, tokenString, RequireRole("Administrators")))
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		tokenString, err := CreateTestToken(1, false, []string{"Editors"}, secret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, run(t, tokenString, RequireRole("Administrators")))
	})
}
