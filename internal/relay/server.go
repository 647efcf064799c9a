package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/turbocompute/gpulogs/internal/api"
	"github.com/turbocompute/gpulogs/internal/constants"
	loggerPkg "github.com/turbocompute/gpulogs/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Server exposes a Hub over HTTP:
//
//	GET /ws/logs              all targets, or the target named by a subscribe frame
//	GET /ws/logs/{targetID}   one target
//	GET /api/v1/health        relay status
type Server struct {
	hub      *Hub
	logger   *slog.Logger
	router   *chi.Mux
	upgrader websocket.Upgrader

	// subscribeWait is how long a /ws/logs stream waits for a subscribe frame.
	subscribeWait time.Duration
}

// NewServer creates the relay HTTP handler for hub.
func NewServer(hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:    hub,
		logger: logger,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: constants.HandshakeTimeout,
			// The relay is a local development tool; viewers are served from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subscribeWait: constants.RelaySubscribeWait,
	}

	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.requestLoggingMiddleware)

	r.Get("/ws/logs", s.handleStream)
	r.Get("/ws/logs/{targetID}", s.handleStream)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(setContentTypeJSONMiddleware)
		r.Get("/health", s.handleHealth)
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "not found", req.URL.Path)
	})

	return s
}

// Handler returns an http.Handler for the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// subscriber with a going-away frame and shuts the HTTP server down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: constants.ServerReadTimeout,
		IdleTimeout:       constants.ServerIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
		defer cancel()

		_ = s.hub.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	subscribers, lines := s.hub.Stats()
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(api.HealthResponse{
		Status:      "ok",
		Version:     *constants.GetVersion(),
		Subscribers: subscribers,
		Lines:       lines,
	})
}

// handleStream upgrades the request and streams lines until the subscriber
// finishes or the viewer goes away.
func (s *Server) handleStream(w http.ResponseWriter, req *http.Request) {
	log := loggerPkg.DeriveRequestLogger(req.Context(), s.logger)
	target := strings.TrimSpace(chi.URLParam(req, "targetID"))

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error
		log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	first := make(chan []byte, 1)
	go s.readLoop(ctx, cancel, conn, first)

	if target == AllTargets {
		target = s.awaitSubscribe(ctx, first)
	}

	sub := s.hub.Subscribe(conn, target)
	log.Info("viewer subscribed", "target_id", target)

	if err = sub.Run(ctx); err != nil {
		log.Debug("stream write failed", "target_id", target, "error", err)
	}
	if dropped := sub.Dropped(); dropped > 0 {
		log.Warn("viewer lagged, frames dropped", "target_id", target, "dropped", dropped)
	}
	log.Info("viewer disconnected", "target_id", target)
}

// readLoop hands the first inbound frame to first and keeps reading so
// control frames are processed; it cancels the stream once the viewer leaves.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, first chan<- []byte) {
	defer cancel()
	sent := false
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !sent {
			sent = true
			select {
			case first <- payload:
			case <-ctx.Done():
				return
			}
		}
	}
}

// awaitSubscribe returns the target of a subscribe frame received within
// subscribeWait, or AllTargets.
func (s *Server) awaitSubscribe(ctx context.Context, first <-chan []byte) string {
	timer := time.NewTimer(s.subscribeWait)
	defer timer.Stop()

	select {
	case payload := <-first:
		var msg api.SubscribeMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Type != api.WebSocketMessageTypeSubscribe {
			return AllTargets
		}
		return strings.TrimSpace(msg.ID)
	case <-timer.C:
		return AllTargets
	case <-ctx.Done():
		return AllTargets
	}
}

// writeErrorResponse writes a JSON error body with the given status.
func writeErrorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   message,
		Details: details,
	})
}
