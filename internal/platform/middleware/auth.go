package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// SessionValidator validates an admin session token extracted from the cookie.
type SessionValidator interface {
	ValidateToken(tokenString string) (*SessionClaims, error)
}

// SessionClaims represents the claims we expect from the session validator.
type SessionClaims struct {
	UserID    string
	Username  string
	Role      string
	SessionID string
}

// SessionCookie is the cookie carrying the admin session token.
const SessionCookie = "regnotify_session"

type contextKeyUserID struct{}
type contextKeyUsername struct{}
type contextKeyRole struct{}
type contextKeySessionID struct{}

var (
	ContextKeyUserID    = contextKeyUserID{}
	ContextKeyUsername  = contextKeyUsername{}
	ContextKeyRole      = contextKeyRole{}
	ContextKeySessionID = contextKeySessionID{}
)

// GetUserID retrieves the authenticated admin user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUsername retrieves the authenticated admin username from the context.
func GetUsername(ctx context.Context) string {
	username, ok := ctx.Value(ContextKeyUsername).(string)
	if !ok {
		return ""
	}
	return username
}

// GetRole retrieves the authenticated admin role from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	sessionID, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}
	return sessionID
}

// RequireSession guards the admin API. The session token is read from the
// session cookie and validated; claims are stored on the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Authentication required")
				return
			}

			claims, err := validator.ValidateToken(cookie.Value)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyUsername, claims.Username)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			ctx = context.WithValue(ctx, ContextKeySessionID, claims.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + description + `"}`))
}
