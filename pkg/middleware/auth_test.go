package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gomock "github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ruangluka/pkg/sessions"
	"ruangluka/pkg/user"
)

func viewerEcho(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, sessions.ViewerId(r.Context()))
}

func TestAuthMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := NewMockIUserRepo(ctrl)
	mockSm := NewMockISessionManager(ctrl)
	handler := NewAuthMiddleware(mockSm, mockRepo).Middleware(http.HandlerFunc(viewerEcho))

	t.Run("anonymous request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/posts/explore", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", w.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		mockSm.EXPECT().UserFromToken("Bearer tkn").Return(&user.UserFromToken{Id: "1"}, nil)
		mockRepo.EXPECT().GetById(gomock.Any(), "1").Return(&user.User{Id: "1", Username: "pike"}, nil)

		req := httptest.NewRequest("GET", "/api/feed", nil)
		req.Header.Set("Authorization", "Bearer tkn")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "1", w.Body.String())
	})

	t.Run("invalid token passes anonymously", func(t *testing.T) {
		mockSm.EXPECT().UserFromToken("Bearer bad").Return(nil, fmt.Errorf("token is not valid"))

		req := httptest.NewRequest("GET", "/api/feed", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", w.Body.String())
	})

	t.Run("deleted user passes anonymously", func(t *testing.T) {
		mockSm.EXPECT().UserFromToken("Bearer old").Return(&user.UserFromToken{Id: "9"}, nil)
		mockRepo.EXPECT().GetById(gomock.Any(), "9").Return(nil, user.ErrNotFound)

		req := httptest.NewRequest("GET", "/api/feed", nil)
		req.Header.Set("Authorization", "Bearer old")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "", w.Body.String())
	})

	t.Run("token in query", func(t *testing.T) {
		mockSm.EXPECT().UserFromToken("Bearer wstkn").Return(&user.UserFromToken{Id: "1"}, nil)
		mockRepo.EXPECT().GetById(gomock.Any(), "1").Return(&user.User{Id: "1"}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/ws?token=wstkn", nil))
		assert.Equal(t, "1", w.Body.String())
	})

	t.Run("repo failure", func(t *testing.T) {
		mockSm.EXPECT().UserFromToken("Bearer tkn").Return(&user.UserFromToken{Id: "1"}, nil)
		mockRepo.EXPECT().GetById(gomock.Any(), "1").Return(nil, fmt.Errorf("conn refused"))

		req := httptest.NewRequest("GET", "/api/feed", nil)
		req.Header.Set("Authorization", "Bearer tkn")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(viewerEcho)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/feed", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/api/feed", nil)
	req = req.WithContext(sessions.WithAuthUser(req.Context(), &user.User{Id: "4"}))
	w = httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", w.Body.String())
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lm := NewLoggingMiddleware(zap.New(core).Sugar())

	handler := lm.SetupTracing(lm.SetupLogging(lm.AccessLog(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))))

	req := httptest.NewRequest("GET", "/api/trending", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("access").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "/api/trending", fields["path"])
		assert.EqualValues(t, http.StatusTeapot, fields["status"])
	}
}
