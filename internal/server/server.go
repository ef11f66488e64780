// Package server hosts the HTTP surface of Animato: the /ws WebSocket
// endpoint clients speak the frame protocol over, plus /healthz, /readyz, and
// /metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashverse/animato/internal/app"
	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/health"
	"github.com/ashverse/animato/internal/observe"
	"github.com/ashverse/animato/pkg/events"
)

// shutdownGrace bounds the drain of live connections at shutdown.
const shutdownGrace = 10 * time.Second

// Server accepts client connections and routes their frames through the
// session manager.
type Server struct {
	cfg     config.ServerConfig
	manager *app.Manager
	logger  *slog.Logger
	metrics *observe.Metrics
	ready   []health.Checker

	httpSrv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics enables the HTTP latency middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReadiness adds checkers evaluated by /readyz.
func WithReadiness(checkers ...health.Checker) Option {
	return func(s *Server) { s.ready = append(s.ready, checkers...) }
}

// New creates a Server over the given session manager.
func New(cfg config.ServerConfig, manager *app.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the route table. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(s.ready...).Register(mux)

	var h http.Handler = mux
	if s.metrics != nil {
		h = observe.Middleware(s.metrics)(h)
	}
	return h
}

// ListenAndServe runs the server until ctx is cancelled, then drains live
// sessions and shuts the listener down. TLS is used when configured.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS != nil {
			s.logger.Info("listening with TLS", "addr", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("listening", "addr", s.cfg.ListenAddr)
			err = s.httpSrv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.manager.CloseAll()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleWS upgrades the connection, opens a session, and pumps inbound frames
// until the client leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	ctx := r.Context()

	ws := &wsConn{conn: conn, ctx: ctx}
	sess, err := s.manager.Open(ctx, ws.send)
	if err != nil {
		s.logger.Error("session open failed", "remote", r.RemoteAddr, "err", err)
		conn.Close(websocket.StatusInternalError, "session open failed")
		return
	}
	defer sess.Close()
	defer conn.Close(websocket.StatusNormalClosure, "session closed")

	logger := s.logger.With("session_id", sess.ID)
	logger.Info("client connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				logger.Info("client disconnected")
			} else {
				logger.Warn("read failed, closing session", "err", err)
			}
			return
		}

		var frame events.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warn("malformed frame", "err", err)
			ws.sendError("malformed frame: not valid JSON")
			continue
		}
		if err := sess.HandleFrame(frame); err != nil {
			logger.Warn("frame rejected", "type", frame.Type, "err", err)
			ws.sendError(err.Error())
		}
	}
}

// acceptOptions maps the configured origin list onto websocket options.
// "*" disables the origin check entirely.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	if slices.Contains(s.cfg.AllowedOrigins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins}
}

// wsConn serialises frame writes: the session's turn goroutine and the read
// loop both send, and websocket.Conn allows only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	ctx  context.Context
	conn *websocket.Conn
}

func (c *wsConn) send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("server: marshal frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// sendError reports a frame-level failure to the client; a dead socket is
// surfaced by the read loop, so the write error is dropped here.
func (c *wsConn) sendError(msg string) {
	_ = c.send(events.ErrorFrame{Type: events.OutError, Message: msg})
}
