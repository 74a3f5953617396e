package models

import "time"

// RequestEntry is the journal record of one report request. It holds the
// request metadata and outcome, never the report records themselves.
type RequestEntry struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	CorrelationID uint64    `json:"correlation_id"`
	Service       string    `json:"service"`
	Security      string    `json:"security"`
	Broker        string    `json:"broker"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Query         string    `json:"query"`
	Status        string    `json:"status"`
	ErrorCode     int       `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Records       int       `json:"records"`
	Partials      int       `json:"partials"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Duration returns the time the request took.
func (e RequestEntry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
