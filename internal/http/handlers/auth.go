package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/fashionlens/fashion-lens-be/internal/auth"
	"github.com/fashionlens/fashion-lens-be/internal/events"
	"github.com/fashionlens/fashion-lens-be/internal/http/respond"
	"github.com/fashionlens/fashion-lens-be/internal/middleware"
	"github.com/fashionlens/fashion-lens-be/internal/models"
	"github.com/fashionlens/fashion-lens-be/internal/models/dto"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

const invalidCredentials = "invalid email or password"

// SessionOptions controls the session cookie and new-account defaults.
type SessionOptions struct {
	CookieName   string
	CookieSecure bool
	InitialCoins int64
}

// AuthHandler owns register/login/profile/logout backed by the user store.
type AuthHandler struct {
	store    storage.UserStore
	tokens   *auth.TokenManager
	authn    *middleware.Authenticator
	opts     SessionOptions
	validate *validator.Validate
	events   events.Publisher
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, tokens *auth.TokenManager, authn *middleware.Authenticator, opts SessionOptions, pub events.Publisher) *AuthHandler {
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &AuthHandler{
		store:    store,
		tokens:   tokens,
		authn:    authn,
		opts:     opts,
		validate: newValidator(),
		events:   pub,
	}
}

// Register attaches auth routes to the mux under prefix.
func (h *AuthHandler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc(prefix+"/register", h.handleRegister)
	mux.HandleFunc(prefix+"/login", h.handleLogin)
	mux.Handle(prefix+"/profile", h.authn.RequireUser(http.HandlerFunc(h.handleProfile)))
	mux.HandleFunc(prefix+"/logout", h.handleLogout)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	normalizeRegister(&req)
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	// Pre-check only; the unique index decides under races.
	if _, err := h.store.FindByEmail(r.Context(), req.Email); err == nil {
		respond.Error(w, http.StatusBadRequest, "user already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("register: lookup %s: %v", req.Email, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		FullName: models.FullName{
			FirstName: req.FullName.FirstName,
			LastName:  req.FullName.LastName,
		},
		Email:        req.Email,
		Organization: req.Organization,
		Role:         models.Role(req.Role),
		Coins:        h.opts.InitialCoins,
		PasswordHash: passwordHash,
	}
	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusBadRequest, "user already exists")
		default:
			log.Printf("create user error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	token, err := h.tokens.Generate(created)
	if err != nil {
		log.Printf("register: generate token: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	events.Emit(r.Context(), h.events, events.KeyBusinessRegistered, events.BusinessRegistered{
		Event:        events.KeyBusinessRegistered,
		OccurredAt:   time.Now().UTC(),
		UserID:       created.ID,
		Organization: created.Organization,
		Role:         string(created.Role),
	})
	respond.Session(w, http.StatusCreated, "user created successfully", token, created, dto.AuthResponse{Token: token, User: created})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var req dto.LoginRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	user, err := h.store.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("login failed: no user for %s", req.Email)
			respond.Error(w, http.StatusBadRequest, invalidCredentials)
			return
		}
		log.Printf("login failed: error fetching user %s: %v", req.Email, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("login failed: wrong password for %s", req.Email)
		respond.Error(w, http.StatusBadRequest, invalidCredentials)
		return
	}
	token, err := h.tokens.Generate(user)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	http.SetCookie(w, h.sessionCookie(token, h.tokens.TTL()))
	respond.Session(w, http.StatusOK, "login successful", token, user, dto.AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respond.Session(w, http.StatusOK, "profile", "", user, dto.ProfileResponse{User: user})
}

// handleLogout only clears the cookie; issued tokens stay valid until they expire.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	respond.JSON(w, http.StatusOK, "logged out successfully", nil)
}

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		return c
	}
	c.MaxAge = int(ttl.Seconds())
	c.Expires = time.Now().Add(ttl)
	return c
}

func normalizeRegister(req *dto.RegisterRequest) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName.FirstName = strings.TrimSpace(req.FullName.FirstName)
	req.FullName.LastName = strings.TrimSpace(req.FullName.LastName)
	req.Organization = strings.TrimSpace(req.Organization)
	req.Role = strings.TrimSpace(req.Role)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
