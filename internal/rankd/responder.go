package rankd

import (
	"context"
	"hash/fnv"

	"rank-client/internal/logging"
	"rank-client/internal/models"
	"rank-client/internal/wire"
)

// Request is a decoded request frame.
type Request struct {
	Service       string
	Operation     string
	CorrelationID wire.CorrelationID
	Query         wire.QueryRequest
}

// Reply is one message sent back for a request. Partial replies are
// delivered as PARTIAL_RESPONSE events, the rest as RESPONSE events.
type Reply struct {
	Partial  bool
	Name     wire.Name
	Elements any
}

// Responder produces the replies to a request.
type Responder interface {
	Respond(ctx context.Context, req Request) ([]Reply, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, req Request) ([]Reply, error)

func (f ResponderFunc) Respond(ctx context.Context, req Request) ([]Reply, error) {
	return f(ctx, req)
}

// ReportReply builds a terminal Report reply.
func ReportReply(records ...models.ReportRecord) Reply {
	return Reply{Name: wire.Report, Elements: ReportElements(records)}
}

// ErrorReply builds a terminal ErrorInfo reply.
func ErrorReply(code int, message string) Reply {
	return Reply{Name: wire.ErrorInfo, Elements: wire.ErrorInfoElements{ErrorCode: code, ErrorMsg: message}}
}

// ReportElements converts records to the Report payload.
func ReportElements(records []models.ReportRecord) wire.ReportElements {
	elements := wire.ReportElements{Records: make([]wire.RecordElements, 0, len(records))}
	for _, r := range records {
		elements.Records = append(elements.Records, wire.RecordElements{
			Broker:     wire.BrokerRef{Acronym: r.Broker},
			Bought:     r.Bought,
			Crossed:    r.Crossed,
			HighTouch:  r.HighTouch,
			LowTouch:   r.LowTouch,
			NumReports: r.NumReports,
			Sold:       r.Sold,
			Total:      r.Total,
			Traded:     r.Traded,
		})
	}
	return elements
}

// StaticResponder answers every request with the same records.
func StaticResponder(records ...models.ReportRecord) Responder {
	return ResponderFunc(func(ctx context.Context, req Request) ([]Reply, error) {
		return []Reply{ReportReply(records...)}, nil
	})
}

// ErrorResponder answers every request with an ErrorInfo.
func ErrorResponder(code int, message string) Responder {
	return ResponderFunc(func(ctx context.Context, req Request) ([]Reply, error) {
		return []Reply{ErrorReply(code, message)}, nil
	})
}

// SilentResponder never answers.
func SilentResponder() Responder {
	return ResponderFunc(func(ctx context.Context, req Request) ([]Reply, error) {
		return nil, nil
	})
}

// PartialResponder prepends n partial replies to the replies of next.
// Each partial carries the final records, so a client that kept partials
// would see duplicates.
func PartialResponder(n int, next Responder) Responder {
	return ResponderFunc(func(ctx context.Context, req Request) ([]Reply, error) {
		replies, err := next.Respond(ctx, req)
		if err != nil {
			return nil, err
		}
		out := make([]Reply, 0, n+len(replies))
		for i := 0; i < n; i++ {
			for _, r := range replies {
				r.Partial = true
				out = append(out, r)
			}
		}
		return append(out, replies...), nil
	})
}

// Error codes returned by the sample service.
const (
	CodeServiceNotOpen   = 1
	CodeMalformedRequest = 2
	CodeInvalidDateRange = 12
)

var sampleBrokers = []string{"BCAP", "GSCO", "MSCO", "JPMS", "UBSW", "CSFB", "DBAB", "NMRA"}

// SampleResponder validates the date range and produces deterministic
// records for the requested broker, or for the broker at the requested rank.
func SampleResponder() Responder {
	return ResponderFunc(func(ctx context.Context, req Request) ([]Reply, error) {
		q := req.Query
		start, err := models.ParseDate(q.Start)
		if err != nil {
			return []Reply{ErrorReply(CodeMalformedRequest, "Invalid start date")}, nil
		}
		end, err := models.ParseDate(q.End)
		if err != nil {
			return []Reply{ErrorReply(CodeMalformedRequest, "Invalid end date")}, nil
		}
		if start.After(end) {
			logger := logging.FromContext(ctx)
			logger.Debug().Str("start", q.Start).Str("end", q.End).Msg("Rejecting inverted range")
			return []Reply{ErrorReply(CodeInvalidDateRange, "Invalid date range")}, nil
		}

		var records []models.ReportRecord
		for _, b := range q.Brokers {
			acronym := b.Acronym
			if acronym == "" && b.Rank > 0 {
				acronym = sampleBrokers[(b.Rank-1)%len(sampleBrokers)]
			}
			if acronym != "" {
				records = append(records, sampleRecord(acronym, q))
			}
		}
		if len(q.Brokers) == 0 {
			for _, acronym := range sampleBrokers {
				records = append(records, sampleRecord(acronym, q))
			}
		}
		return []Reply{ReportReply(records...)}, nil
	})
}

func sampleRecord(acronym string, q wire.QueryRequest) models.ReportRecord {
	h := fnv.New32a()
	h.Write([]byte(acronym))
	h.Write([]byte(q.Start))
	h.Write([]byte(q.End))
	for _, s := range q.SecurityCriteria.Securities {
		h.Write([]byte(s.Ticker + s.FIGI))
	}
	for _, e := range q.SecurityCriteria.Exchanges {
		h.Write([]byte(e.Code))
	}
	seed := float64(h.Sum32()%9000 + 1000)

	bought := seed
	sold := seed * 0.9
	crossed := seed * 0.05
	high := seed * 0.2
	return models.ReportRecord{
		Broker:     acronym,
		Bought:     bought,
		Crossed:    crossed,
		HighTouch:  high,
		LowTouch:   high * 0.75,
		NumReports: int64(h.Sum32()%20 + 1),
		Sold:       sold,
		Total:      bought + sold,
		Traded:     bought + sold - crossed,
	}
}
