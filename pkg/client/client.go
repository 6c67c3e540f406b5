package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-roles/pkg/policy"
	"golang.org/x/exp/slog"
)

// AuthUser is the identity carried by a verified access token.
type AuthUser struct {
	UserID      int32    `json:"user_id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	SuperUser   bool     `json:"superuser,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("user", int(u.UserID)),
		slog.Any("roles", u.Roles),
	)
}

// Actor converts the authenticated user into the identity the policy
// engine evaluates.
func (u AuthUser) Actor() policy.Actor {
	return policy.Actor{
		UserID:    u.UserID,
		SuperUser: u.SuperUser,
		Roles:     u.Roles,
	}
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation. This technique
// for defining context keys was copied from Go 1.7's new use of context in net/http.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "roles context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var AuthUserKey = &contextKey{"AuthUser"}

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware builds the AuthUser from verified token claims and puts
// it on the request context. It must run after a token verifier.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, jwtClaims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if jwtClaims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		claims := make(map[string]interface{}, len(jwtClaims))
		for k, v := range jwtClaims {
			claims[k] = v
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("Failed to parse token claims", "err", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}
		if authUser.UserID <= 0 {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		slog.Debug("Authenticated user", "userId", authUser.UserID, "roles", authUser.Roles)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthUserFromContext returns the authenticated user placed on the context by
// AuthUserMiddleware.
func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok
}

// Verifier seeks and validates a JWT from the Authorization header or the
// access token cookie.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
