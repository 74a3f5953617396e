package report

import (
	"sync"
	"time"

	"rank-client/internal/errors"
	"rank-client/internal/models"
	"rank-client/internal/query"
	"rank-client/internal/wire"
)

// MatchKind classifies a response message against the outstanding requests.
type MatchKind int

const (
	// Unrelated messages carry no outstanding correlation id and must be ignored.
	Unrelated MatchKind = iota
	// Failed messages answer a request with an error payload or a malformed report.
	Failed
	// Records messages answer a request with decoded report records.
	Records
)

func (k MatchKind) String() string {
	switch k {
	case Unrelated:
		return "unrelated"
	case Failed:
		return "failed"
	case Records:
		return "records"
	default:
		return "unknown"
	}
}

// Match is the outcome of correlating one message.
type Match struct {
	Kind      MatchKind
	Token     wire.CorrelationID
	ErrorInfo *models.ErrorInfo
	Records   []models.ReportRecord
	Err       error
}

// Pending describes a request awaiting its terminal response.
type Pending struct {
	Token  wire.CorrelationID
	Query  query.ReportQuery
	SentAt time.Time
}

// Correlator keys outstanding requests by correlation id.
type Correlator struct {
	mu      sync.RWMutex
	pending map[wire.CorrelationID]Pending
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[wire.CorrelationID]Pending),
	}
}

// Track registers a submitted request.
func (c *Correlator) Track(token wire.CorrelationID, q query.ReportQuery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[token] = Pending{Token: token, Query: q, SentAt: time.Now()}
}

// Complete forgets a request once its terminal response has been handled.
func (c *Correlator) Complete(token wire.CorrelationID) (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[token]
	delete(c.pending, token)
	return p, ok
}

// Lookup returns the pending request for token.
func (c *Correlator) Lookup(token wire.CorrelationID) (Pending, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pending[token]
	return p, ok
}

// Outstanding returns the number of requests still awaiting a response.
func (c *Correlator) Outstanding() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Match classifies msg. It never completes the request; the caller decides
// whether the message was terminal.
func (c *Correlator) Match(msg wire.Message) Match {
	token, ok := msg.CorrelationID()
	if !ok {
		return Match{Kind: Unrelated}
	}
	if _, ok := c.Lookup(token); !ok {
		return Match{Kind: Unrelated, Token: token}
	}

	switch msg.Type {
	case wire.ErrorInfo:
		info, err := decodeErrorInfo(msg)
		if err != nil {
			return Match{Kind: Failed, Token: token, Err: err}
		}
		return Match{
			Kind:      Failed,
			Token:     token,
			ErrorInfo: &info,
			Err:       errors.NewReportError(info.Code, info.Message),
		}
	case wire.Report:
		records, err := Decode(msg)
		if err != nil {
			return Match{Kind: Failed, Token: token, Err: err}
		}
		return Match{Kind: Records, Token: token, Records: records}
	default:
		return Match{
			Kind:  Failed,
			Token: token,
			Err:   errors.NewRecordError(-1, "messageType", "unexpected message type "+string(msg.Type), nil),
		}
	}
}

func decodeErrorInfo(msg wire.Message) (models.ErrorInfo, error) {
	var info models.ErrorInfo

	root, err := msg.Root()
	if err != nil {
		return info, errors.NewRecordError(-1, "elements", "payload is not valid JSON", err)
	}
	if info.Code, err = root.GetAsInt("ErrorCode"); err != nil {
		return info, errors.NewRecordError(-1, "ErrorCode", "expected an integer", err)
	}
	if info.Message, err = root.GetAsString("ErrorMsg"); err != nil {
		return info, errors.NewRecordError(-1, "ErrorMsg", "expected text", err)
	}
	return info, nil
}
