package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regnotify/internal/admin"
	"regnotify/internal/platform/middleware"
	dErrors "regnotify/pkg/domain-errors"
)

// AuthHandler serves the console login endpoints.
type AuthHandler struct {
	auth   *admin.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *admin.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.With("handler", "auth")}
}

// RegisterPublic mounts the unauthenticated login route.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/login", h.Login)
}

// RegisterProtected mounts the session-guarded routes.
func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Post("/logout", h.Logout)
	r.Get("/session", h.Session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Username and password are required"))
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeUnauthorized, "Invalid username or password"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"username": req.Username,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.auth.Logout(ctx, middleware.GetSessionID(ctx)); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke session", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      middleware.GetUsername(ctx),
		"role":          middleware.GetRole(ctx),
	})
}
