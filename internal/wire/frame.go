package wire

import "encoding/json"

// Op is the operation carried by a client frame.
type Op string

const (
	OpStart       Op = "start"
	OpOpenService Op = "openService"
	OpRequest     Op = "request"
	OpStop        Op = "stop"
)

// Frame is a client to service control or request frame.
type Frame struct {
	Op                 Op              `json:"op"`
	SessionID          string          `json:"sessionId,omitempty"`
	MaxPendingRequests int             `json:"maxPendingRequests,omitempty"`
	Service            string          `json:"service,omitempty"`
	Operation          string          `json:"operation,omitempty"`
	CorrelationID      CorrelationID   `json:"correlationId,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`
}

// QueryOperation is the request operation name of the rank service.
const QueryOperation = "Query"

// QueryRequest is the encoded form of a rank report query.
type QueryRequest struct {
	Brokers          []BrokerRef      `json:"brokers,omitempty"`
	Start            string           `json:"start"`
	End              string           `json:"end"`
	GroupBy          string           `json:"groupBy"`
	SecurityCriteria SecurityCriteria `json:"securityCriteria"`
	Source           string           `json:"source"`
	Units            string           `json:"units"`
}

// BrokerRef selects a broker by acronym or by rank.
type BrokerRef struct {
	Acronym string `json:"acronym,omitempty"`
	Rank    int    `json:"rank,omitempty"`
}

// SecurityCriteria is a choice between securities and exchanges.
type SecurityCriteria struct {
	Securities []SecurityRef `json:"securities,omitempty"`
	Exchanges  []ExchangeRef `json:"exchanges,omitempty"`
}

// SecurityRef selects a security by ticker or by FIGI.
type SecurityRef struct {
	Ticker string `json:"ticker,omitempty"`
	FIGI   string `json:"figi,omitempty"`
}

// ExchangeRef selects all securities of an exchange.
type ExchangeRef struct {
	Code string `json:"code"`
}

// ErrorInfoElements is the payload of an ErrorInfo message.
type ErrorInfoElements struct {
	ErrorCode int    `json:"ErrorCode"`
	ErrorMsg  string `json:"ErrorMsg"`
}

// ReportElements is the payload of a Report message.
type ReportElements struct {
	Records []RecordElements `json:"records"`
}

// RecordElements is one record of a Report payload.
type RecordElements struct {
	Broker     BrokerRef `json:"broker"`
	Bought     float64   `json:"bought"`
	Crossed    float64   `json:"crossed"`
	HighTouch  float64   `json:"highTouch"`
	LowTouch   float64   `json:"lowTouch"`
	NumReports int64     `json:"numReports"`
	Sold       float64   `json:"sold"`
	Total      float64   `json:"total"`
	Traded     float64   `json:"traded"`
}
