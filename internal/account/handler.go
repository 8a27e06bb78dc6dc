// Package account: вход, текущий пользователь, выход и смена пароля.
package account

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"slidecraft/internal/apperr"
	"slidecraft/internal/auth"
	"slidecraft/internal/httpx"
	"slidecraft/internal/middleware"
	"slidecraft/internal/models"
	"slidecraft/internal/users"
)

type Dependencies struct {
	Users          *users.Service
	Tokens         *auth.Tokens
	LoginPerMinute int
}

type Handler struct {
	d Dependencies
}

// Attach: /api/auth/*. Всё, кроме login, требует токен; смена пароля: админ.
func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	sub := r.PathPrefix("/api/auth").Subrouter()

	login := sub.Path("/login").Subrouter()
	login.Use(middleware.RateLimitByIP(d.LoginPerMinute))
	login.Methods(http.MethodPost).HandlerFunc(h.Login)

	authed := sub.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(d.Tokens, d.Users))
	authed.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	authed.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	admin := authed.NewRoute().Subrouter()
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/change-password/{id}", h.ChangePassword).Methods(http.MethodPut)
}

type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func viewOf(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	u, err := h.d.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	token, exp, err := h.d.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		httpx.WriteError(w, r, apperr.Dependency("Cannot issue token", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": exp.UTC(),
		"user":      viewOf(u),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": viewOf(u)})
}

// Logout: токены не хранятся на сервере, клиент просто забывает свой.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.d.Users.ChangePassword(r.Context(), mux.Vars(r)["id"], req.NewPassword); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
