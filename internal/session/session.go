// Package session manages a connection to the rank service: startup, service
// resolution, request submission and ordered event delivery.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rank-client/internal/errors"
	"rank-client/internal/logging"
	"rank-client/internal/wire"
)

// State is the lifecycle state of a session.
type State int

const (
	StateConnecting State = iota
	StateStarted
	StateFailed
	StateServiceOpening
	StateServiceReady
	StateServiceFailed
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStarted:
		return "started"
	case StateFailed:
		return "failed"
	case StateServiceOpening:
		return "service_opening"
	case StateServiceReady:
		return "service_ready"
	case StateServiceFailed:
		return "service_failed"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a session.
type Options struct {
	Host               string
	Port               int
	MaxPendingRequests int
	InboxSize          int
	DialTimeout        time.Duration
}

// DefaultOptions returns the options of a local beta connection.
func DefaultOptions() Options {
	return Options{
		Host:               "localhost",
		Port:               8194,
		MaxPendingRequests: 1,
		InboxSize:          64,
		DialTimeout:        10 * time.Second,
	}
}

// Address returns host:port.
func (o Options) Address() string {
	return o.Host + ":" + strconv.Itoa(o.Port)
}

// Conn is a framed, bidirectional connection to the rank service.
// WriteFrame may be called concurrently with ReadEvent.
type Conn interface {
	WriteFrame(ctx context.Context, f wire.Frame) error
	ReadEvent() (wire.Event, error)
	Close() error
}

// Dialer opens connections to the rank service.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Session is a handle on one connection to the rank service.
type Session struct {
	id       string
	opts     Options
	dialer   Dialer
	logger   zerolog.Logger
	services *serviceRegistry

	conn  Conn
	inbox chan wire.Event
	done  chan struct{}

	mu      sync.Mutex
	state   State
	pending map[wire.CorrelationID]struct{}

	nextID   atomic.Uint64
	dropped  atomic.Int64
	stopOnce sync.Once
	stopErr  error
}

// New creates a session that connects with dialer once started.
func New(opts Options, dialer Dialer, logger zerolog.Logger) *Session {
	defaults := DefaultOptions()
	if opts.Host == "" {
		opts.Host = defaults.Host
	}
	if opts.Port == 0 {
		opts.Port = defaults.Port
	}
	if opts.MaxPendingRequests < 1 {
		opts.MaxPendingRequests = defaults.MaxPendingRequests
	}
	if opts.InboxSize < 1 {
		opts.InboxSize = defaults.InboxSize
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaults.DialTimeout
	}

	id := uuid.New().String()
	return &Session{
		id:       id,
		opts:     opts,
		dialer:   dialer,
		logger:   logging.WithSession(logger, id),
		services: newServiceRegistry(),
		inbox:    make(chan wire.Event, opts.InboxSize),
		done:     make(chan struct{}),
		state:    StateConnecting,
		pending:  make(map[wire.CorrelationID]struct{}),
	}
}

// Open creates a websocket session and starts it.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*Session, error) {
	s := New(opts, WebsocketDialer{HandshakeTimeout: opts.DialTimeout}, logger)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Start connects and asks the service to start the session. The outcome
// arrives as a SessionStatus event.
func (s *Session) Start(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	defer cancel()

	addr := s.opts.Address()
	conn, err := s.dialer.Dial(dialCtx, addr)
	if err != nil {
		s.setState(StateFailed)
		return errors.NewSessionError("dial", addr, fmt.Errorf("%w: %w", errors.ErrConnection, err))
	}
	s.conn = conn

	start := wire.Frame{
		Op:                 wire.OpStart,
		SessionID:          s.id,
		MaxPendingRequests: s.opts.MaxPendingRequests,
	}
	if err := conn.WriteFrame(ctx, start); err != nil {
		conn.Close()
		s.setState(StateFailed)
		return errors.NewSessionError("start", addr, fmt.Errorf("%w: %w", errors.ErrConnection, err))
	}

	s.logger.Debug().Str("addr", addr).Msg("Session starting")
	go s.readLoop()
	return nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Service returns the resolution state of a service and, if it failed, the reason.
func (s *Session) Service(name string) (ServiceStatus, string) {
	return s.services.status(name)
}

// Dropped returns the number of responses discarded because they arrived after Stop.
func (s *Session) Dropped() int64 { return s.dropped.Load() }

// Pending returns the number of submitted requests without a terminal response.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// OpenServiceAsync asks the service to open name. The outcome arrives as a
// ServiceStatus event. Requesting a service twice is a no-op.
func (s *Session) OpenServiceAsync(ctx context.Context, name string) error {
	s.mu.Lock()
	switch s.state {
	case StateStarted, StateServiceOpening, StateServiceReady, StateActive:
	default:
		state := s.state
		s.mu.Unlock()
		return errors.NewSessionError("openService", "session is "+state.String(), errors.ErrSessionStopped)
	}
	if !s.services.request(name) {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateStarted {
		s.state = StateServiceOpening
	}
	s.mu.Unlock()

	if err := s.conn.WriteFrame(ctx, wire.Frame{Op: wire.OpOpenService, Service: name}); err != nil {
		return errors.NewSessionError("openService", name, fmt.Errorf("%w: %w", errors.ErrConnection, err))
	}
	s.logger.Debug().Str("service", name).Msg("Service open requested")
	return nil
}

// SendRequest submits operation on an opened service and returns the
// correlation id that will tag its response.
func (s *Session) SendRequest(ctx context.Context, service, operation string, payload any) (wire.CorrelationID, error) {
	if status, _ := s.services.status(service); status != ServiceOpened {
		return 0, s.submissionError("service " + service + " is " + status.String())
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.NewSessionError("request", "encoding payload", fmt.Errorf("%w: %w", errors.ErrSubmission, err))
	}

	s.mu.Lock()
	if s.state != StateServiceReady && s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return 0, s.submissionError("session is " + state.String())
	}
	if len(s.pending) >= s.opts.MaxPendingRequests {
		s.mu.Unlock()
		return 0, s.submissionError(fmt.Sprintf("pending request limit %d reached", s.opts.MaxPendingRequests))
	}
	id := wire.CorrelationID(s.nextID.Add(1))
	s.pending[id] = struct{}{}
	s.state = StateActive
	s.mu.Unlock()

	frame := wire.Frame{
		Op:            wire.OpRequest,
		Service:       service,
		Operation:     operation,
		CorrelationID: id,
		Payload:       raw,
	}
	if err := s.conn.WriteFrame(ctx, frame); err != nil {
		s.release(id)
		return 0, errors.NewSessionError("request", "writing frame", fmt.Errorf("%w: %w", errors.ErrSubmission, err))
	}
	return id, nil
}

func (s *Session) submissionError(reason string) error {
	return errors.NewSessionError("request", reason, errors.ErrSubmission)
}

// NextEvent returns the next event in arrival order. Status events update the
// session state before they are returned. After Stop it returns ErrSessionStopped.
func (s *Session) NextEvent(ctx context.Context) (wire.Event, error) {
	for {
		if s.stopped() {
			s.drainInbox()
			return wire.Event{}, errors.ErrSessionStopped
		}

		select {
		case <-ctx.Done():
			return wire.Event{}, ctx.Err()
		case <-s.done:
			continue
		case ev := <-s.inbox:
			if s.stopped() {
				s.drop(ev)
				continue
			}
			logging.LogEvent(s.logger, ev)
			if ev, ok := s.apply(ev); ok {
				return ev, nil
			}
		}
	}
}

// Stop ends the session and closes the connection. It is safe to call more than once.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(s.done)

		if s.conn == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := s.conn.WriteFrame(ctx, wire.Frame{Op: wire.OpStop, SessionID: s.id}); err != nil {
			s.logger.Debug().Err(err).Msg("Stop frame not sent")
		}
		s.stopErr = s.conn.Close()
		s.logger.Debug().Msg("Session stopped")
	})
	return s.stopErr
}

func (s *Session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) release(id wire.CorrelationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if len(s.pending) == 0 && s.state == StateActive {
		s.state = StateServiceReady
	}
}

func (s *Session) readLoop() {
	for {
		ev, err := s.conn.ReadEvent()
		if errors.Is(err, errors.ErrMalformedEvent) {
			s.logger.Warn().Err(err).Msg("Skipping malformed event")
			continue
		}
		if err != nil {
			if s.stopped() {
				return
			}
			s.logger.Warn().Err(err).Msg("Connection lost")
			ev = terminatedEvent(err)
			select {
			case s.inbox <- ev:
			case <-s.done:
			}
			return
		}

		select {
		case s.inbox <- ev:
		case <-s.done:
			s.drop(ev)
		}
	}
}

func terminatedEvent(cause error) wire.Event {
	msg, _ := wire.NewMessage(wire.SessionTerminated, map[string]any{
		"reason": map[string]any{"description": cause.Error()},
	})
	return wire.Event{Type: wire.EventSessionStatus, Messages: []wire.Message{msg}}
}

// apply updates session state from ev and filters duplicate service outcomes.
// It reports false when nothing is left to deliver.
func (s *Session) apply(ev wire.Event) (wire.Event, bool) {
	switch ev.Type {
	case wire.EventSessionStatus:
		for _, msg := range ev.Messages {
			switch msg.Type {
			case wire.SessionStarted:
				s.transition(StateConnecting, StateStarted)
			case wire.SessionStartupFailure:
				s.transition(StateConnecting, StateFailed)
			case wire.SessionTerminated:
				s.mu.Lock()
				if s.state != StateStopped {
					s.state = StateFailed
				}
				s.mu.Unlock()
			}
		}

	case wire.EventServiceStatus:
		kept := ev.Messages[:0:0]
		for _, msg := range ev.Messages {
			var first bool
			switch msg.Type {
			case wire.ServiceOpened:
				if first = s.services.resolve(msg.Service, true, ""); first {
					s.transition(StateServiceOpening, StateServiceReady)
				}
			case wire.ServiceOpenFailure:
				if first = s.services.resolve(msg.Service, false, msg.Reason()); first {
					s.transition(StateServiceOpening, StateServiceFailed)
				}
			default:
				first = true
			}
			if first {
				kept = append(kept, msg)
			} else {
				s.logger.Debug().Str("service", msg.Service).Str("message", string(msg.Type)).
					Msg("Duplicate service status ignored")
			}
		}
		if len(kept) == 0 {
			return wire.Event{}, false
		}
		ev.Messages = kept

	case wire.EventResponse:
		for _, msg := range ev.Messages {
			for _, id := range msg.CorrelationIDs {
				s.release(id)
			}
		}
	}
	return ev, true
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
	}
}

func (s *Session) drop(ev wire.Event) {
	if ev.Type != wire.EventResponse && ev.Type != wire.EventPartialResponse {
		return
	}
	for _, msg := range ev.Messages {
		s.dropped.Add(1)
		id, _ := msg.CorrelationID()
		s.logger.Debug().
			Err(errors.ErrCancelled).
			Str("message", string(msg.Type)).
			Uint64("correlation_id", uint64(id)).
			Msg("Response dropped after stop")
	}
}

func (s *Session) drainInbox() {
	for {
		select {
		case ev := <-s.inbox:
			s.drop(ev)
		default:
			return
		}
	}
}
