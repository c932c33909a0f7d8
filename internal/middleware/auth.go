// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// TenantIDKey is the context key for tenant ID.
	TenantIDKey ContextKey = "tenant_id"
	// ActorKey is the context key for the resolved model.Actor.
	ActorKey ContextKey = "actor"
)

// Claims represents JWT claims issued by the authentication service.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Actor    string   `json:"actor"`
	Scopes   []string `json:"scope"`
}

// Identity converts the claims into the actor the engine reads.
func (c *Claims) Identity() (model.Actor, bool) {
	kind := model.ActorKind(c.Actor)
	if kind == "" {
		kind = model.ActorGuest
	}
	if !kind.Valid() {
		return model.Actor{}, false
	}
	return model.Actor{
		Kind:        kind,
		UserID:      c.Subject,
		Permissions: slices.Clone(c.Scopes),
	}, true
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				unauthorized(w, "invalid authorization header format")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			if claims.TenantID == "" {
				unauthorized(w, "token has no tenant")
				return
			}
			actor, ok := claims.Identity()
			if !ok {
				unauthorized(w, "token has an unknown actor")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.TenantID, actor)))
		})
	}
}

// Public resolves anonymous visitors of the tenant named by the URL
// parameter.
func Public(tenantParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := chi.URLParam(r, tenantParam)
			if err := ValidateTenantID(tenantID); err != nil {
				writeJSONError(w, http.StatusNotFound, "unknown tenant")
				return
			}
			actor := model.Actor{Kind: model.ActorAnonymous}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), tenantID, actor)))
		})
	}
}

// WithIdentity stores the tenant and actor on ctx.
func WithIdentity(ctx context.Context, tenantID string, actor model.Actor) context.Context {
	if info := requestInfoFrom(ctx); info != nil {
		info.tenantID = tenantID
		info.actor = string(actor.Kind)
	}
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	return context.WithValue(ctx, ActorKey, actor)
}

// GetTenantID gets tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}

// GetActor gets the resolved actor from context.
func GetActor(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(ActorKey).(model.Actor)
	return a, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="chat"`)
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
