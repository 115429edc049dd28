package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/pkg/jwt"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	RoleKey       contextKey = "role"
	userHolderKey contextKey = "user_holder"

	RoleAdmin = "admin"

	SchedulerTokenHeader = "X-Scheduler-Token"
)

type userHolder struct {
	userID uuid.UUID
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

// Auth returns middleware that validates JWT
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, jwtService)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, jwtService *jwt.Service) (*jwt.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	// Browsers cannot set headers on a websocket handshake.
	if authHeader == "" && websocketUpgrade(r) && r.URL.Query().Get("token") != "" {
		authHeader = "Bearer " + r.URL.Query().Get("token")
	}
	if authHeader == "" {
		response.Unauthorized(w, "Missing authorization header")
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		response.Unauthorized(w, "Invalid authorization header format")
		return nil, false
	}

	claims, err := jwtService.ValidateAccessToken(parts[1])
	if err != nil {
		if err == jwt.ErrExpiredToken {
			response.Unauthorized(w, "Token expired")
		} else {
			response.Unauthorized(w, "Invalid token")
		}
		return nil, false
	}

	if claims.IsBanned {
		response.Forbidden(w, "Your account has been banned")
		return nil, false
	}
	return claims, true
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		h.userID = claims.UserID
	}
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, RoleKey, claims.Role)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetRole extracts role from context
func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

// RequireRole returns middleware that checks user role
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "Insufficient permissions")
		})
	}
}

// RequireAdmin returns middleware that requires admin role
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(RoleAdmin)
}

// RequireSchedulerOrAdmin admits requests carrying the shared scheduler token,
// or a bearer token with the admin role. An empty schedulerToken disables the
// token path.
func RequireSchedulerOrAdmin(jwtService *jwt.Service, schedulerToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if provided := r.Header.Get(SchedulerTokenHeader); provided != "" {
				if schedulerToken != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(schedulerToken)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				response.Unauthorized(w, "Invalid scheduler token")
				return
			}

			claims, ok := authenticate(w, r, jwtService)
			if !ok {
				return
			}
			if claims.Role != RoleAdmin {
				response.Forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}
