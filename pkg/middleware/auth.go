package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "ruangluka/pkg/common"
	"ruangluka/pkg/logger"
	"ruangluka/pkg/sessions"
	"ruangluka/pkg/user"
)

type (
	IUserRepo interface {
		GetById(context.Context, string) (*user.User, error)
	}
	ISessionManager interface {
		UserFromToken(string) (*user.UserFromToken, error)
	}
	Auth struct {
		UserRepo       IUserRepo
		SessionManager ISessionManager
	}
)

func NewAuthMiddleware(sm ISessionManager, ur IUserRepo) *Auth {
	return &Auth{
		UserRepo:       ur,
		SessionManager: sm,
	}
}

// Middleware attaches the session user to the request context. Requests
// without a valid token pass through anonymously.
func (auth Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" && r.URL.Query().Get("token") != "" {
			// browsers can't set headers on websocket handshakes
			authHeader = "Bearer " + r.URL.Query().Get("token")
		}

		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		userFromToken, err := auth.SessionManager.UserFromToken(authHeader)
		if err != nil {
			logger.Log(r.Context()).Infof("auth: can't get user from token: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		repoCtx, repoCtxCancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer repoCtxCancel()
		u, err := auth.UserRepo.GetById(repoCtx, userFromToken.Id)
		if errors.Is(err, user.ErrNotFound) {
			// deleted account, treat as anonymous
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			logger.Log(r.Context()).Errorf("auth: can't get the user from repo: %v", err)
			WriteMsg(w, "failed loading user", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(sessions.WithAuthUser(r.Context(), u)))
	})
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := sessions.GetAuthUser(r.Context()); err != nil {
			WriteMsg(w, "not authorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
