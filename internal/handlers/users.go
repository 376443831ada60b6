package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eventhub/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides HTTP handlers for the caller's own profile.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers profile routes. All of them require an
// authenticated user.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Put("/me/interests", handler.UpdateInterests)
}

// Profile backs the browser-navigated profile page. It sits behind the
// page guard, which redirects instead of answering 401.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateInterestsRequest is the JSON body for replacing the caller's
// interest categories.
type UpdateInterestsRequest struct {
	Interests []string `json:"interests"`
}

// UpdateInterestsResponse echoes the stored, normalized set.
type UpdateInterestsResponse struct {
	Interests []string `json:"interests"`
}

// UpdateInterests replaces the caller's interest categories. The stored
// set is lowercased and deduplicated, so the response may differ from
// the request.
func (h *UserHandler) UpdateInterests(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateInterestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := h.users.UpdateInterests(r.Context(), userID, req.Interests)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update interests")
		return
	}

	writeJSON(w, http.StatusOK, UpdateInterestsResponse{Interests: stored})
}
