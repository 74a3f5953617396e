// Package query builds and validates rank report queries.
package query

import (
	"fmt"
	"strings"

	"rank-client/internal/errors"
	"rank-client/internal/models"
	"rank-client/internal/wire"
)

// Params holds the raw, unvalidated query parameters.
type Params struct {
	Ticker   string
	FIGI     string
	Exchange string

	BrokerAcronym string
	BrokerRank    int

	Start string
	End   string

	GroupBy string
	Source  string
	Units   string
}

// SecurityKind identifies how the security criteria is expressed.
type SecurityKind string

const (
	SecurityByTicker   SecurityKind = "ticker"
	SecurityByFIGI     SecurityKind = "figi"
	SecurityByExchange SecurityKind = "exchange"
)

// BrokerKind identifies how the broker filter is expressed.
type BrokerKind string

const (
	BrokerByAcronym BrokerKind = "acronym"
	BrokerByRank    BrokerKind = "rank"
)

// ReportQuery is a validated, immutable rank report query.
type ReportQuery struct {
	securityKind  SecurityKind
	security      string
	brokerKind    BrokerKind
	brokerAcronym string
	brokerRank    int
	start         models.Date
	end           models.Date
	groupBy       models.GroupBy
	source        models.Source
	units         models.Units
}

// Build validates params and returns the query they describe.
func Build(p Params) (ReportQuery, error) {
	var q ReportQuery

	kind, security, err := securitySelector(p)
	if err != nil {
		return ReportQuery{}, err
	}
	q.securityKind, q.security = kind, security

	acronym := strings.TrimSpace(p.BrokerAcronym)
	switch {
	case acronym != "" && p.BrokerRank != 0:
		return ReportQuery{}, errors.NewValidationError("broker", fmt.Sprintf("%s/%d", acronym, p.BrokerRank),
			"broker acronym and rank are mutually exclusive")
	case acronym != "":
		q.brokerKind, q.brokerAcronym = BrokerByAcronym, acronym
	case p.BrokerRank > 0:
		q.brokerKind, q.brokerRank = BrokerByRank, p.BrokerRank
	case p.BrokerRank < 0:
		return ReportQuery{}, errors.NewValidationError("broker_rank", p.BrokerRank, "rank must be positive")
	default:
		return ReportQuery{}, errors.NewValidationError("broker", "", "one of broker acronym or rank is required")
	}

	if q.start, err = models.ParseDate(p.Start); err != nil {
		return ReportQuery{}, errors.NewValidationError("start", p.Start, "expected a YYYY-MM-DD date")
	}
	if q.end, err = models.ParseDate(p.End); err != nil {
		return ReportQuery{}, errors.NewValidationError("end", p.End, "expected a YYYY-MM-DD date")
	}
	if q.start.After(q.end) {
		return ReportQuery{}, errors.NewValidationError("start", p.Start,
			fmt.Sprintf("start date is after end date %s", q.end))
	}

	if q.groupBy, err = models.ParseGroupBy(p.GroupBy); err != nil {
		return ReportQuery{}, errors.NewValidationError("group_by", p.GroupBy, err.Error())
	}
	if q.source, err = models.ParseSource(p.Source); err != nil {
		return ReportQuery{}, errors.NewValidationError("source", p.Source, err.Error())
	}
	if q.units, err = models.ParseUnits(p.Units); err != nil {
		return ReportQuery{}, errors.NewValidationError("units", p.Units, err.Error())
	}

	return q, nil
}

func securitySelector(p Params) (SecurityKind, string, error) {
	set := make([]SecurityKind, 0, 3)
	var value string
	if v := strings.TrimSpace(p.Ticker); v != "" {
		set = append(set, SecurityByTicker)
		value = v
	}
	if v := strings.TrimSpace(p.FIGI); v != "" {
		set = append(set, SecurityByFIGI)
		value = v
	}
	if v := strings.TrimSpace(p.Exchange); v != "" {
		set = append(set, SecurityByExchange)
		value = v
	}

	switch len(set) {
	case 0:
		return "", "", errors.NewValidationError("security", "", "one of ticker, figi or exchange is required")
	case 1:
		return set[0], value, nil
	default:
		return "", "", errors.NewValidationError("security", set, "ticker, figi and exchange are mutually exclusive")
	}
}

// SecurityKind returns how the security is selected.
func (q ReportQuery) SecurityKind() SecurityKind { return q.securityKind }

// Security returns the ticker, FIGI or exchange code.
func (q ReportQuery) Security() string { return q.security }

// BrokerKind returns how the broker is selected.
func (q ReportQuery) BrokerKind() BrokerKind { return q.brokerKind }

// BrokerAcronym returns the broker acronym, empty when selecting by rank.
func (q ReportQuery) BrokerAcronym() string { return q.brokerAcronym }

// BrokerRank returns the broker rank, 0 when selecting by acronym.
func (q ReportQuery) BrokerRank() int { return q.brokerRank }

func (q ReportQuery) Start() models.Date      { return q.start }
func (q ReportQuery) End() models.Date        { return q.end }
func (q ReportQuery) GroupBy() models.GroupBy { return q.groupBy }
func (q ReportQuery) Source() models.Source   { return q.source }
func (q ReportQuery) Units() models.Units     { return q.units }

// Broker returns a short description of the broker filter.
func (q ReportQuery) Broker() string {
	if q.brokerKind == BrokerByRank {
		return fmt.Sprintf("rank %d", q.brokerRank)
	}
	return q.brokerAcronym
}

// Request encodes the query into the service request payload.
func (q ReportQuery) Request() wire.QueryRequest {
	req := wire.QueryRequest{
		Start:   q.start.String(),
		End:     q.end.String(),
		GroupBy: string(q.groupBy),
		Source:  string(q.source),
		Units:   string(q.units),
	}

	switch q.brokerKind {
	case BrokerByAcronym:
		req.Brokers = []wire.BrokerRef{{Acronym: q.brokerAcronym}}
	case BrokerByRank:
		req.Brokers = []wire.BrokerRef{{Rank: q.brokerRank}}
	}

	switch q.securityKind {
	case SecurityByTicker:
		req.SecurityCriteria.Securities = []wire.SecurityRef{{Ticker: q.security}}
	case SecurityByFIGI:
		req.SecurityCriteria.Securities = []wire.SecurityRef{{FIGI: q.security}}
	case SecurityByExchange:
		req.SecurityCriteria.Exchanges = []wire.ExchangeRef{{Code: q.security}}
	}

	return req
}

func (q ReportQuery) String() string {
	return fmt.Sprintf("%s=%s broker=%s %s..%s groupBy=%s source=%s units=%s",
		q.securityKind, q.security, q.Broker(), q.start, q.end, q.groupBy, q.source, q.units)
}
