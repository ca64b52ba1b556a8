package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/session"
	"proxymart/internal/app/storage"
)

type UserHandler struct {
	session session.Manager
	users   storage.UserRepository
}

func NewUserHandler(users storage.UserRepository, sm session.Manager) *UserHandler {
	return &UserHandler{
		session: sm,
		users:   users,
	}
}

type credentials struct {
	Username string `json:"login" validate:"required,min=1,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *userProfile `json:"user"`
}

type userProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

func profileOf(u *model.User) *userProfile {
	return &userProfile{
		ID:      u.ID.String(),
		Name:    u.Name,
		Balance: u.Balance.String(),
		IsAdmin: u.IsAdmin,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Debug().Msg("Handler.User.Register")

	in := credentials{}
	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	u, err := h.users.Create(r.Context(), &model.User{
		Name:     in.Username,
		Password: in.Password,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.issueToken(w, r, u)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Debug().Msg("Handler.User.Login")

	in := credentials{}
	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	u, err := h.users.ReadByNameAndPassword(r.Context(), in.Username, in.Password)
	if err != nil {
		// An unknown name is deliberately indistinct from a bad password.
		if errors.Is(err, apperr.ErrNotFound) {
			WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		writeDomainError(w, err)
		return
	}

	h.issueToken(w, r, u)
}

// Me returns the profile of the authenticated user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := ReadContextUser(r.Context())
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	fresh, err := h.users.Read(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, profileOf(fresh), http.StatusOK)
}

// Logout revokes the presented token. Safe to call twice.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	reqHeader := r.Header.Get("Authorization")
	parts := strings.Split(reqHeader, "Bearer ")
	if len(parts) == 2 {
		h.session.Destroy(r.Context(), parts[1])
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) issueToken(w http.ResponseWriter, r *http.Request, u *model.User) {
	token, err := h.session.Create(r.Context(), u)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Add("Authorization", "Bearer "+token)

	WriteResponse(w, &authResponse{Token: token, User: profileOf(u)}, http.StatusOK)
}
