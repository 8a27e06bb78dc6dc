package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"slidecraft/internal/auth"
	"slidecraft/internal/middleware"
	"slidecraft/internal/models"
	"slidecraft/internal/users"
)

type Dependencies struct {
	Users  *users.Service
	Tokens *auth.Tokens
}

// Attach: /api/admin/*, только для роли admin.
func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	sub := r.PathPrefix("/api/admin").Subrouter()
	sub.Use(
		middleware.Authenticate(d.Tokens, d.Users),
		middleware.RequireRole(models.RoleAdmin),
	)

	sub.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	sub.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	sub.HandleFunc("/users/{id}", h.UpdateUser).Methods(http.MethodPut)
	sub.HandleFunc("/users/{id}", h.DeleteUser).Methods(http.MethodDelete)
	sub.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
}
