package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hongminglow/chat-be/internal/auth"
	"github.com/hongminglow/chat-be/internal/http/respond"
	"github.com/hongminglow/chat-be/internal/middleware"
	"github.com/hongminglow/chat-be/internal/models"
	"github.com/hongminglow/chat-be/internal/models/dto"
	"github.com/hongminglow/chat-be/internal/storage"
)

const searchLimit = 10

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{8,20}$`)

// AuthHandler owns register/login/logout plus the user lookup endpoints.
type AuthHandler struct {
	store  storage.UserStore
	tokens *auth.TokenManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{store: store, tokens: tokens}
}

// Register attaches auth routes to the mux. Routes after login go through authn.
func (h *AuthHandler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.Handle("POST /api/logout", authn(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /api/me", authn(http.HandlerFunc(h.handleMe)))
	mux.Handle("GET /api/users/search", authn(http.HandlerFunc(h.handleSearch)))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	phone := normalizePhone(req)
	if err := validateCredentials(req.Username, phone, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	created, err := h.store.CreateUser(r.Context(), models.User{
		Username:     strings.TrimSpace(req.Username),
		Phone:        phone,
		PasswordHash: passwordHash,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "username or phone already registered")
		default:
			slog.Error("create user failed", "err", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respond.JSON(w, http.StatusCreated, "user created successfully", created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Phone)
	}
	if identifier == "" || strings.TrimSpace(req.Password) == "" {
		respond.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}
	user, err := h.store.FindByUsernameOrPhone(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("login lookup failed", "err", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now().UTC()
	if err := h.store.TouchLastSeen(r.Context(), user.ID, now); err != nil {
		slog.Warn("update last_seen on login failed", "user_id", user.ID, "err", err)
	} else {
		user.LastSeen = now
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := h.store.TouchLastSeen(r.Context(), userID, time.Now().UTC()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("update last_seen on logout failed", "user_id", userID, "err", err)
	}
	respond.JSON(w, http.StatusOK, "logout successful", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.FindByID(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", user)
}

func (h *AuthHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respond.JSON(w, http.StatusOK, "ok", []models.PublicUser{})
		return
	}
	users, err := h.store.SearchUsers(r.Context(), query, middleware.UserIDFromContext(r.Context()), searchLimit)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func normalizePhone(req dto.RegisterRequest) string {
	if trimmed := strings.TrimSpace(req.Phone); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(req.PhoneNumber)
}

func validateCredentials(username, phone, password string) error {
	if strings.TrimSpace(username) == "" || phone == "" {
		return errors.New("username, phone, and password are required")
	}
	if !phonePattern.MatchString(phone) {
		return errors.New("invalid phone format")
	}
	if len(strings.TrimSpace(password)) < 8 || !utf8.ValidString(password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
