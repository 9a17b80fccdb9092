package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
)

const (
	sessionCookieName = "tradedesk_session"
	sessionTTL        = 12 * time.Hour
)

type credentialChecker interface {
	Authenticate(ctx context.Context, email, password string) (bool, error)
}

type session struct {
	Email    string `json:"email"`
	IssuedAt int64  `json:"iat"`
}

type authService struct {
	users  credentialChecker
	cookie *securecookie.SecureCookie
	secure bool
}

// newAuthService builds the session codec. Missing keys are replaced with
// random ones, which invalidates sessions on every restart.
func newAuthService(users credentialChecker, hashKey, blockKey string, secure bool, log *zap.Logger) *authService {
	hk := []byte(hashKey)
	if len(hk) == 0 {
		log.Warn("SESSION_HASH_KEY is not set, using a random key")
		hk = securecookie.GenerateRandomKey(64)
	}
	var bk []byte
	if blockKey != "" {
		bk = []byte(blockKey)
	}

	codec := securecookie.New(hk, bk)
	codec.MaxAge(int(sessionTTL.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &authService{users: users, cookie: codec, secure: secure}
}

func (a *authService) validateCredentials(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	return a.users.Authenticate(ctx, email, password)
}

func (a *authService) setSessionCookie(w http.ResponseWriter, email string) error {
	value, err := a.cookie.Encode(sessionCookieName, session{Email: email, IssuedAt: time.Now().Unix()})
	if err != nil {
		return apperr.Wrap(apperr.TypeInternal, "encode session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) sessionFrom(r *http.Request) (session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return session{}, false
	}
	var s session
	if err := a.cookie.Decode(sessionCookieName, cookie.Value, &s); err != nil {
		return session{}, false
	}
	if s.Email == "" {
		return session{}, false
	}
	return s, true
}

type sessionKey struct{}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login", "/healthz":
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := s.auth.sessionFrom(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Type: "UNAUTHORIZED"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	valid, err := s.auth.validateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.TypeInternal, "authentication error", err))
		return
	}
	if !valid {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials", Type: "UNAUTHORIZED"})
		return
	}

	if err := s.auth.setSessionCookie(w, req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := r.Context().Value(sessionKey{}).(session)
	writeJSON(w, http.StatusOK, sess)
}
