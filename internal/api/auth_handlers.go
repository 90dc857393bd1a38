package api

import (
	"errors"
	"net/http"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/types"
	"github.com/hyperengineering/farmcost/internal/validation"
)

// Login handles POST /login. On success the session token is set as an
// HttpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.metrics.ObserveLogin(false)
		WriteJSON(w, http.StatusUnauthorized, types.MessageResponse{Message: msgInvalidLogin})
		return
	}
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	h.metrics.ObserveLogin(true)

	http.SetCookie(w, h.sessionCookie(token, int(h.sessionTTL.Seconds())))
	WriteJSON(w, http.StatusOK, types.MessageResponse{Message: msgLoginOK})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromContext(r.Context())
	if token == "" {
		WriteJSON(w, http.StatusBadRequest, types.MessageResponse{Message: msgNotLoggedIn})
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		MapStoreError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	WriteJSON(w, http.StatusOK, types.MessageResponse{Message: msgLoggedOut})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	WriteJSON(w, http.StatusOK, users)
}

// AddUser handles POST /users.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req types.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := h.auth.AddUser(r.Context(), req.Username, req.Password); err != nil {
		MapStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, types.MessageResponse{Message: msgUserAdded})
}

// DeleteUser handles DELETE /users.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req types.DeleteUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if validation.IsBlank(req.Username) {
		WriteValidationErrors(w, r, []validation.ValidationError{{Field: "username", Message: "is required"}})
		return
	}
	if err := h.auth.DeleteUser(r.Context(), req.Username); err != nil {
		MapStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, types.MessageResponse{Message: msgUserDeleted})
}
