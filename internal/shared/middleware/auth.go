package middleware

import (
	"context"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"bus-tracker/internal/shared/util"
)

const (
	RoleDriver     = "driver"
	RoleStudent    = "student"
	RoleCoadmin    = "coadmin"
	RoleIncharge   = "incharge"
	RoleManagement = "management"
)

const identityKey contextKey = "identity"

// Claims is what the upstream identity provider signs: an opaque subject and a role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Identity struct {
	UID  string
	Role string
}

// Authenticator validates bearer tokens with a shared HS256 secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken accepts either "Bearer <jwt>" or a bare token.
func (a *Authenticator) ParseToken(raw string) (Identity, bool) {
	tokenStr := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if tokenStr == "" {
		return Identity{}, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, false
	}

	return Identity{UID: claims.Subject, Role: strings.ToLower(claims.Role)}, true
}

// Require rejects requests without a valid token. When roles are given the
// caller's role must be one of them.
func (a *Authenticator) Require(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				util.WriteJSONError(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			id, ok := a.ParseToken(authHeader)
			if !ok {
				util.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			if len(roles) > 0 && !hasRole(id.Role, roles) {
				util.WriteJSONError(w, "role not allowed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
