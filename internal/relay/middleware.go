package relay

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/turbocompute/gpulogs/internal/constants"
	loggerPkg "github.com/turbocompute/gpulogs/internal/logger"
)

// generateRequestID generates a random request ID using crypto/rand
func generateRequestID() string {
	b := make([]byte, constants.RequestIDByteSize)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// requestIDMiddleware reuses an X-Request-ID header or generates a random one
// and stores it in the request context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := req.Header.Get(constants.RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set(constants.RequestIDHeader, requestID)

		ctx := loggerPkg.WithRequestID(req.Context(), requestID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// setContentTypeJSONMiddleware sets Content-Type to application/json for all responses
func setContentTypeJSONMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		next.ServeHTTP(w, req)
	})
}

// requestLoggingMiddleware logs incoming requests and their completion.
// Websocket requests are logged when the stream ends.
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log := loggerPkg.DeriveRequestLogger(req.Context(), s.logger)
		start := time.Now()

		log.Debug("received request", "request", map[string]any{
			"method":      req.Method,
			"path":        req.URL.Path,
			"remote_addr": req.RemoteAddr,
		})

		next.ServeHTTP(w, req)

		log.Debug("request completed", "request", map[string]any{
			"path":     req.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}
