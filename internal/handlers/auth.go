package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventhub/apiserver/config"
	"github.com/eventhub/apiserver/internal/services"
	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "session_token"

// Redirect targets used by the page guard. Both are frontend routes; the
// API only issues the redirects.
const (
	loginPath        = "/login"
	unauthorizedPath = "/unauthorized"
)

// AuthHandler provides signup/login/logout endpoints and the middleware
// that gates the rest of the API. Tokens are HS256 JWTs whose ID claim
// references a server-side session row; a token stops working the moment
// its session is closed.
type AuthHandler struct {
	users    *services.UserService
	sessions *services.SessionService
	secret   []byte

	cookieSecure bool
	cookieDomain string
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, sessions *services.SessionService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		secret:       []byte(cfg.JWTSecret),
		cookieSecure: cfg.CookieSecure,
		cookieDomain: cfg.CookieDomain,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces a valid token (bearer header or session cookie) and
// injects the subject and session ID into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, sessionID, err := h.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAuth(r.Context(), userID, sessionID)))
	})
}

// RequireRole enforces that the authenticated user holds the given role.
// Place after RequireAuth.
func (h *AuthHandler) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := h.users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			if !strings.EqualFold(user.Role, role) {
				writeError(w, http.StatusForbidden, role+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PageGuard protects browser-navigated routes. It reads the session cookie
// only: a missing or invalid session redirects to the login page with the
// original path as the redirect query parameter, and a wrong role
// redirects to the unauthorized page. Authorized requests pass through
// with the subject injected.
func (h *AuthHandler) PageGuard(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			redirectToLogin := func() {
				target := loginPath + "?redirect=" + url.QueryEscape(r.URL.Path)
				http.Redirect(w, r, target, http.StatusFound)
			}

			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin()
				return
			}

			userID, sessionID, err := h.validateToken(r.Context(), cookie.Value)
			if err != nil {
				redirectToLogin()
				return
			}

			if requiredRole != "" {
				user, err := h.users.GetByID(r.Context(), userID)
				if err != nil {
					redirectToLogin()
					return
				}
				if !strings.EqualFold(user.Role, requiredRole) {
					http.Redirect(w, r, unauthorizedPath, http.StatusFound)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(r.Context(), userID, sessionID)))
		})
	}
}

// Signup creates a new account, opens a session, and returns the user and
// token. The session cookie is set alongside.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = types.RoleUser
	}
	if role != types.RoleUser && role != types.RolePublisher {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check email")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.users.Create(r.Context(), types.User{
		Name:         req.Name,
		Email:        req.Email,
		Role:         role,
		Interests:    req.Interests,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// The unique index catches the race the pre-check cannot.
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.respondWithSession(w, r.Context(), user, http.StatusCreated)
}

// Login verifies credentials, opens a session, and returns the user and
// token. Unknown emails and wrong passwords are indistinguishable to the
// caller and mutate nothing.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithSession(w, r.Context(), user, http.StatusOK)
}

// Logout closes the session named by the request's token, if any, and
// clears the session cookie. Logout is idempotent: a request without a
// valid session still gets its cookie cleared and a success response.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenString, err := tokenFromRequest(r); err == nil {
		if _, sessionID, err := parseToken(tokenString, h.secret); err == nil {
			_ = h.sessions.Close(r.Context(), sessionID)
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type SignupRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Role      string   `json:"role"`
	Interests []string `json:"interests"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, ctx context.Context, user types.User, status int) {
	session, err := h.sessions.Open(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	token, err := issueToken(user.ID, session.ID, h.secret, h.sessions.TTL())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

// authenticate resolves the request's token to an open session.
func (h *AuthHandler) authenticate(r *http.Request) (userID int, sessionID string, err error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return 0, "", err
	}
	return h.validateToken(r.Context(), tokenString)
}

func (h *AuthHandler) validateToken(ctx context.Context, tokenString string) (userID int, sessionID string, err error) {
	userID, sessionID, err = parseToken(tokenString, h.secret)
	if err != nil {
		return 0, "", err
	}
	if _, err := h.sessions.Validate(ctx, sessionID, userID); err != nil {
		return 0, "", err
	}
	return userID, sessionID, nil
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func contextWithAuth(ctx context.Context, userID int, sessionID string) context.Context {
	ctx = context.WithValue(ctx, contextSubjectKey, userID)
	return context.WithValue(ctx, contextSessionKey, sessionID)
}

func issueToken(userID int, sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (userID int, sessionID string, err error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return 0, "", err
	}
	if !token.Valid {
		return 0, "", errors.New("invalid token")
	}

	userID, err = strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, "", errors.New("invalid subject")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return 0, "", errors.New("missing session id")
	}
	return userID, claims.ID, nil
}

// tokenFromRequest prefers the Authorization header and falls back to the
// session cookie set at login.
func tokenFromRequest(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("invalid authorization")
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", errors.New("invalid authorization")
		}
		return token, nil
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", errors.New("missing authorization")
	}
	return cookie.Value, nil
}
