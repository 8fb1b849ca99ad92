package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ruangluka/pkg/logger"
)

type requestIdKey string

const RequestIdKey requestIdKey = "requestId"

type LoggingMiddleware struct {
	logger *zap.SugaredLogger
}

func NewLoggingMiddleware(l *zap.SugaredLogger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: l}
}

// SetupTracing takes the request id from X-Request-Id or generates one.
func (lm *LoggingMiddleware) SetupTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := r.Header.Get("X-Request-Id")
		if reqId == "" {
			reqId = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqId)
		ctx := context.WithValue(r.Context(), RequestIdKey, reqId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetupLogging stores a logger tagged with the request id in the context.
func (lm *LoggingMiddleware) SetupLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := lm.logger
		if reqId, ok := r.Context().Value(RequestIdKey).(string); ok {
			l = l.With("request_id", reqId)
		}
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), l)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer can't be hijacked")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lm *LoggingMiddleware) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Log(r.Context()).Infow("access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote_addr", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
