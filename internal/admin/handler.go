package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"slidecraft/internal/httpx"
	"slidecraft/internal/middleware"
	"slidecraft/internal/users"
)

type Handler struct {
	d Dependencies
}

func actorID(r *http.Request) string {
	if u, ok := middleware.UserFrom(r.Context()); ok {
		return u.ID
	}
	return ""
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Users.ListWithCounts(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": list})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin employee"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	u, err := h.d.Users.Create(r.Context(), users.CreateInput{
		Username:  req.Username,
		Password:  req.Password,
		Role:      req.Role,
		CreatedBy: actorID(r),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user": map[string]any{
			"id":        u.ID,
			"username":  u.Username,
			"role":      u.Role,
			"createdAt": u.CreatedAt,
		},
	})
}

type updateUserRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=50"`
	Role     string `json:"role" validate:"omitempty,oneof=admin employee"`
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	u, err := h.d.Users.Update(r.Context(), actorID(r), mux.Vars(r)["id"], users.UpdateInput{
		Username: req.Username,
		Role:     req.Role,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    map[string]any{"id": u.ID, "username": u.Username, "role": u.Role},
	})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Users.Delete(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User and their presentations deleted successfully",
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Users.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"stats": st})
}
