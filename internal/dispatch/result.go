package dispatch

import (
	"time"

	"rank-client/internal/errors"
	"rank-client/internal/models"
	"rank-client/internal/query"
	"rank-client/internal/wire"
)

// Status is the terminal outcome class of a request.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusReportError Status = "report_error"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
	StatusCancelled   Status = "cancelled"
)

// Result is the terminal outcome of a request: either records or an error,
// never both.
type Result struct {
	SessionID string
	Service   string
	Query     query.ReportQuery
	Token     wire.CorrelationID

	Records   []models.ReportRecord
	ErrorInfo *models.ErrorInfo
	Err       error
	Partials  int

	StartedAt  time.Time
	SentAt     time.Time
	FinishedAt time.Time
}

// Status classifies the result.
func (r Result) Status() Status {
	switch {
	case r.Err == nil:
		return StatusCompleted
	case r.ErrorInfo != nil:
		return StatusReportError
	case errors.Is(r.Err, errors.ErrTimeout):
		return StatusTimeout
	case errors.Is(r.Err, errors.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Duration returns the time from start to the terminal outcome.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
