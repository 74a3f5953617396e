package query

import (
	"testing"

	"rank-client/internal/errors"
	"rank-client/internal/models"
)

func TestBuildRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		field  string
	}{
		{"no security", func(p *Params) { p.Ticker = "" }, "security"},
		{"ticker and exchange", func(p *Params) { p.Exchange = "US" }, "security"},
		{"no broker", func(p *Params) { p.BrokerAcronym = "" }, "broker"},
		{"acronym and rank", func(p *Params) { p.BrokerRank = 1 }, "broker"},
		{"negative rank", func(p *Params) { p.BrokerAcronym = ""; p.BrokerRank = -2 }, "broker_rank"},
		{"malformed start", func(p *Params) { p.Start = "2020-13-01" }, "start"},
		{"malformed end", func(p *Params) { p.End = "05/01/2020" }, "end"},
		{"inverted range", func(p *Params) { p.Start = "2020-06-01" }, "start"},
		{"unknown grouping", func(p *Params) { p.GroupBy = "Sector" }, "group_by"},
		{"unknown source", func(p *Params) { p.Source = "Exchange" }, "source"},
		{"unknown units", func(p *Params) { p.Units = "JPY" }, "units"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)

			_, err := Build(p)
			if !errors.Is(err, errors.ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestBuildSampleQuery(t *testing.T) {
	q, err := Build(validParams())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if q.SecurityKind() != SecurityByTicker || q.Security() != "AAPL US Equity" {
		t.Errorf("unexpected security %s=%s", q.SecurityKind(), q.Security())
	}
	if q.BrokerKind() != BrokerByAcronym || q.Broker() != "BCAP" {
		t.Errorf("unexpected broker %s", q.Broker())
	}
	if q.GroupBy() != models.GroupByBroker || q.Units() != models.UnitsShares {
		t.Errorf("unexpected enums %s %s", q.GroupBy(), q.Units())
	}

	req := q.Request()
	if req.Start != "2020-01-01" || req.End != "2020-05-01" {
		t.Errorf("unexpected range %s..%s", req.Start, req.End)
	}
	if req.Source != "Broker Contributed" {
		t.Errorf("unexpected source %q", req.Source)
	}
}

func TestBuildExchangeAndRank(t *testing.T) {
	p := validParams()
	p.Ticker = ""
	p.Exchange = "US"
	p.BrokerAcronym = ""
	p.BrokerRank = 3
	p.GroupBy = "security"
	p.Start, p.End = "2020-02-02", "2020-02-02"

	q, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	req := q.Request()
	if len(req.SecurityCriteria.Exchanges) != 1 || req.SecurityCriteria.Exchanges[0].Code != "US" {
		t.Errorf("expected exchange criteria, got %+v", req.SecurityCriteria)
	}
	if len(req.SecurityCriteria.Securities) != 0 {
		t.Errorf("securities must be empty when selecting an exchange")
	}
	if req.Brokers[0].Rank != 3 || q.Broker() != "rank 3" {
		t.Errorf("unexpected broker %+v", req.Brokers)
	}
	if req.GroupBy != "Security" {
		t.Errorf("grouping should be canonicalised, got %q", req.GroupBy)
	}
}
