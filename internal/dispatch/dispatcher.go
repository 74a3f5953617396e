// Package dispatch drives one rank report request through session startup,
// service resolution, submission and response handling.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rank-client/internal/errors"
	"rank-client/internal/logging"
	"rank-client/internal/models"
	"rank-client/internal/query"
	"rank-client/internal/report"
	"rank-client/internal/session"
	"rank-client/internal/wire"
)

// State is the progress of a dispatcher.
type State int

const (
	StateIdle State = iota
	StateAwaitingSession
	StateAwaitingService
	StateAwaitingResponse
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSession:
		return "awaiting_session"
	case StateAwaitingService:
		return "awaiting_service"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DefaultRequestTimeout bounds each waiting phase of a request.
const DefaultRequestTimeout = 60 * time.Second

// Options configures a dispatcher.
type Options struct {
	Service        string
	RequestTimeout time.Duration
}

// Session is the part of a session the dispatcher drives.
type Session interface {
	ID() string
	NextEvent(ctx context.Context) (wire.Event, error)
	OpenServiceAsync(ctx context.Context, name string) error
	SendRequest(ctx context.Context, service, operation string, payload any) (wire.CorrelationID, error)
	Stop() error
}

// Dispatcher routes the events of one session until the request reaches a
// terminal outcome, then stops the session.
type Dispatcher struct {
	sess       Session
	query      query.ReportQuery
	opts       Options
	logger     zerolog.Logger
	correlator *report.Correlator

	state    State
	deadline time.Time
	result   Result
}

// New creates a dispatcher for q on sess.
func New(sess Session, q query.ReportQuery, opts Options, logger zerolog.Logger) *Dispatcher {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		sess:       sess,
		query:      q,
		opts:       opts,
		logger:     logging.WithService(logging.WithSession(logger, sess.ID()), opts.Service),
		correlator: report.NewCorrelator(),
		state:      StateIdle,
		result:     Result{SessionID: sess.ID(), Service: opts.Service, Query: q},
	}
}

// State returns the dispatcher state. It must not be called while Run is executing.
func (d *Dispatcher) State() State { return d.state }

// Start runs the dispatcher in the background. The result is delivered
// exactly once on the returned channel.
func (d *Dispatcher) Start(ctx context.Context) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	return done
}

// Run processes events until the request completes, fails, times out or
// ctx is cancelled. The session is stopped before Run returns.
func (d *Dispatcher) Run(ctx context.Context) Result {
	d.result.StartedAt = time.Now()
	d.state = StateAwaitingSession
	d.arm()
	defer d.sess.Stop()

	for d.state != StateDone {
		waitCtx, cancel := context.WithDeadline(ctx, d.deadline)
		ev, err := d.sess.NextEvent(waitCtx)
		cancel()

		if err != nil {
			d.fail(d.waitError(ctx, err))
			break
		}
		d.handle(ctx, ev)
	}
	return d.result
}

func (d *Dispatcher) arm() {
	d.deadline = time.Now().Add(d.opts.RequestTimeout)
}

func (d *Dispatcher) waitError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCancelled, ctx.Err().Error())
	case errors.Is(err, errors.ErrSessionStopped):
		return errors.Wrapf(errors.ErrCancelled, "session stopped while %s", d.state)
	case err == context.DeadlineExceeded:
		if d.state == StateAwaitingResponse {
			return errors.Wrapf(errors.ErrTimeout, "no response to request %s within %s", d.result.Token, d.opts.RequestTimeout)
		}
		return errors.Wrapf(errors.ErrTimeout, "%s for %s", d.state, d.opts.RequestTimeout)
	default:
		return err
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev wire.Event) {
	switch ev.Type {
	case wire.EventSessionStatus:
		for _, msg := range ev.Messages {
			d.handleSessionStatus(ctx, msg)
		}
	case wire.EventServiceStatus:
		for _, msg := range ev.Messages {
			d.handleServiceStatus(ctx, msg)
		}
	case wire.EventPartialResponse:
		for _, msg := range ev.Messages {
			d.handlePartial(msg)
		}
	case wire.EventResponse:
		for _, msg := range ev.Messages {
			d.handleResponse(msg)
		}
	case wire.EventAdmin:
		for _, msg := range ev.Messages {
			d.handleAdmin(msg)
		}
	default:
		d.logger.Debug().Str("event", string(ev.Type)).Msg("Event ignored")
	}
}

func (d *Dispatcher) handleSessionStatus(ctx context.Context, msg wire.Message) {
	if d.state == StateDone {
		return
	}
	switch msg.Type {
	case wire.SessionStarted:
		if d.state != StateAwaitingSession {
			return
		}
		d.logger.Info().Msg("Session started")
		if err := d.sess.OpenServiceAsync(ctx, d.opts.Service); err != nil {
			d.fail(err)
			return
		}
		d.state = StateAwaitingService
		d.arm()
	case wire.SessionStartupFailure:
		d.fail(errors.NewSessionError("start", msg.Reason(), errors.ErrStartupFailure))
	case wire.SessionTerminated:
		d.fail(errors.NewSessionError("session", msg.Reason(), errors.ErrConnection))
	case wire.SessionConnectionUp, wire.SessionConnectionDown:
		d.logger.Info().Str("status", string(msg.Type)).Msg("Connection status")
	default:
		d.logger.Debug().Str("message", string(msg.Type)).Msg("Session status ignored")
	}
}

func (d *Dispatcher) handleServiceStatus(ctx context.Context, msg wire.Message) {
	if d.state != StateAwaitingService || msg.Service != d.opts.Service {
		d.logger.Debug().Str("message", string(msg.Type)).Str("for", msg.Service).Msg("Service status ignored")
		return
	}
	switch msg.Type {
	case wire.ServiceOpened:
		d.logger.Info().Msg("Service opened")
		d.submit(ctx)
	case wire.ServiceOpenFailure:
		d.fail(errors.NewSessionError("openService", msg.Reason(), errors.ErrServiceOpenFailure))
	}
}

func (d *Dispatcher) submit(ctx context.Context) {
	token, err := d.sess.SendRequest(ctx, d.opts.Service, wire.QueryOperation, d.query.Request())
	if err != nil {
		d.fail(err)
		return
	}
	d.correlator.Track(token, d.query)
	d.result.Token = token
	d.result.SentAt = time.Now()
	d.logger = logging.WithCorrelationID(d.logger, token)
	d.state = StateAwaitingResponse
	d.arm()
	logging.LogRequest(d.logger, d.query.String())
}

func (d *Dispatcher) handlePartial(msg wire.Message) {
	token, ok := msg.CorrelationID()
	if !ok {
		return
	}
	if _, ok := d.correlator.Lookup(token); !ok {
		return
	}
	d.result.Partials++
	d.logger.Debug().Str("message", string(msg.Type)).Msg("Partial response discarded")
}

func (d *Dispatcher) handleResponse(msg wire.Message) {
	if d.state != StateAwaitingResponse {
		return
	}
	m := d.correlator.Match(msg)
	switch m.Kind {
	case report.Unrelated:
		d.logger.Debug().Str("message", string(msg.Type)).Uint64("token", uint64(m.Token)).Msg("Unrelated response ignored")
	case report.Failed:
		d.correlator.Complete(m.Token)
		d.result.ErrorInfo = m.ErrorInfo
		d.fail(m.Err)
	case report.Records:
		d.correlator.Complete(m.Token)
		d.result.Records = m.Records
		d.finish()
	}
}

func (d *Dispatcher) handleAdmin(msg wire.Message) {
	switch msg.Type {
	case wire.SlowConsumerWarning:
		d.logger.Warn().Msg("Slow consumer warning")
	case wire.SlowConsumerWarningCleared:
		d.logger.Info().Msg("Slow consumer warning cleared")
	default:
		d.logger.Debug().Str("message", string(msg.Type)).Msg("Admin message ignored")
	}
}

func (d *Dispatcher) fail(err error) {
	d.result.Err = err
	d.finish()
}

func (d *Dispatcher) finish() {
	if d.state == StateDone {
		return
	}
	d.state = StateDone
	d.result.FinishedAt = time.Now()
	logging.LogOutcome(d.logger, len(d.result.Records), d.result.Duration(), d.result.Err)
	if err := d.sess.Stop(); err != nil {
		d.logger.Debug().Err(err).Msg("Stopping session")
	}
}

// Execute opens a session with sessOpts and runs q to completion.
func Execute(ctx context.Context, sessOpts session.Options, opts Options, q query.ReportQuery, logger zerolog.Logger) Result {
	started := time.Now()
	sess, err := session.Open(ctx, sessOpts, logger)
	if err != nil {
		now := time.Now()
		return Result{Service: opts.Service, Query: q, Err: err, StartedAt: started, FinishedAt: now}
	}
	return New(sess, q, opts, logger).Run(ctx)
}

// Records is a convenience over Execute returning only the records.
func Records(ctx context.Context, sessOpts session.Options, opts Options, q query.ReportQuery, logger zerolog.Logger) ([]models.ReportRecord, error) {
	res := Execute(ctx, sessOpts, opts, q, logger)
	return res.Records, res.Err
}
