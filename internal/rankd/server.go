// Package rankd implements a synthetic rank service speaking the session
// protocol over websockets. It backs `rankreq serve` and end-to-end tests.
package rankd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rank-client/internal/logging"
	"rank-client/internal/wire"
)

const (
	// Path is the websocket endpoint served.
	Path = "/session"

	writeWait      = 5 * time.Second
	maxMessageSize = 1024 * 1024
)

// DefaultServices are the service names opened by default.
var DefaultServices = []string{"//blp/rankapi-beta", "//blp/rankapi"}

// Config configures the synthetic service.
type Config struct {
	Services    []string
	RejectStart string // non-empty rejects session start with this reason
	Responder   Responder
	Logger      zerolog.Logger
}

// Server is an http.Handler serving the rank session protocol.
type Server struct {
	cfg      Config
	services map[string]bool
	upgrader websocket.Upgrader
	sessions atomic.Int64
	requests atomic.Int64
}

// New creates a server. Missing services and responder fall back to
// DefaultServices and SampleResponder.
func New(cfg Config) *Server {
	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices
	}
	if cfg.Responder == nil {
		cfg.Responder = SampleResponder()
	}
	services := make(map[string]bool, len(cfg.Services))
	for _, name := range cfg.Services {
		services[name] = true
	}
	return &Server{
		cfg:      cfg,
		services: services,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Sessions returns the number of sessions accepted so far.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

// Requests returns the number of request frames handled so far.
func (s *Server) Requests() int64 { return s.requests.Load() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != Path {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("Upgrade failed")
		return
	}
	s.sessions.Add(1)
	s.serveConn(r.Context(), conn)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type connState struct {
	conn    *websocket.Conn
	logger  zerolog.Logger
	started bool
	opened  map[string]bool
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	c := &connState{conn: conn, logger: s.cfg.Logger, opened: make(map[string]bool)}

	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("Client connection closed")
			}
			return
		}

		if err := s.handleFrame(ctx, c, frame); err != nil {
			c.logger.Debug().Err(err).Str("op", string(frame.Op)).Msg("Session ended")
			return
		}
	}
}

type errStop struct{}

func (errStop) Error() string { return "stop requested" }

func (s *Server) handleFrame(ctx context.Context, c *connState, frame wire.Frame) error {
	switch frame.Op {
	case wire.OpStart:
		c.logger = c.logger.With().Str("session", frame.SessionID).Logger()
		if s.cfg.RejectStart != "" {
			return c.send(wire.EventSessionStatus, status(wire.SessionStartupFailure, "", s.cfg.RejectStart))
		}
		c.started = true
		return c.send(wire.EventSessionStatus,
			status(wire.SessionConnectionUp, "", ""),
			status(wire.SessionStarted, "", ""))

	case wire.OpOpenService:
		if !c.started {
			return c.send(wire.EventServiceStatus, status(wire.ServiceOpenFailure, frame.Service, "Session not started"))
		}
		if !s.services[frame.Service] {
			return c.send(wire.EventServiceStatus, status(wire.ServiceOpenFailure, frame.Service, "Service not found: "+frame.Service))
		}
		c.opened[frame.Service] = true
		return c.send(wire.EventServiceStatus, status(wire.ServiceOpened, frame.Service, ""))

	case wire.OpRequest:
		s.requests.Add(1)
		return s.handleRequest(ctx, c, frame)

	case wire.OpStop:
		c.send(wire.EventSessionStatus, status(wire.SessionTerminated, "", "Session stopped by client"))
		return errStop{}

	default:
		c.logger.Warn().Str("op", string(frame.Op)).Msg("Unknown frame ignored")
		return nil
	}
}

func (s *Server) handleRequest(ctx context.Context, c *connState, frame wire.Frame) error {
	reply := func(r Reply) error {
		msg, err := wire.NewMessage(r.Name, r.Elements, frame.CorrelationID)
		if err != nil {
			return err
		}
		msg.Service = frame.Service
		typ := wire.EventResponse
		if r.Partial {
			typ = wire.EventPartialResponse
		}
		return c.send(typ, msg)
	}

	if !c.opened[frame.Service] {
		return reply(ErrorReply(CodeServiceNotOpen, "Service not open: "+frame.Service))
	}

	req := Request{Service: frame.Service, Operation: frame.Operation, CorrelationID: frame.CorrelationID}
	if frame.Operation != wire.QueryOperation {
		return reply(ErrorReply(CodeMalformedRequest, "Unknown operation: "+frame.Operation))
	}
	if err := json.Unmarshal(frame.Payload, &req.Query); err != nil {
		return reply(ErrorReply(CodeMalformedRequest, "Malformed request"))
	}

	replies, err := s.cfg.Responder.Respond(logging.WithLogger(ctx, c.logger), req)
	if err != nil {
		return reply(ErrorReply(CodeMalformedRequest, err.Error()))
	}
	c.logger.Debug().
		Uint64("correlation_id", uint64(frame.CorrelationID)).
		Int("replies", len(replies)).
		Msg("Request answered")

	for _, r := range replies {
		if err := reply(r); err != nil {
			return err
		}
	}
	return nil
}

func (c *connState) send(typ wire.EventType, msgs ...wire.Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(wire.Event{Type: typ, Messages: msgs})
}

func status(name wire.Name, service, reason string) wire.Message {
	var elements any
	if reason != "" {
		elements = map[string]any{"reason": map[string]any{"description": reason}}
	}
	msg, _ := wire.NewMessage(name, elements)
	msg.Service = service
	return msg
}
