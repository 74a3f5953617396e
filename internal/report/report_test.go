package report

import (
	"testing"

	"rank-client/internal/errors"
	"rank-client/internal/models"
	"rank-client/internal/query"
	"rank-client/internal/wire"
)

func reportMessage(t testing.TB, id wire.CorrelationID, records ...models.ReportRecord) wire.Message {
	t.Helper()
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
	msg, err := wire.NewMessage(wire.Report, elements, id)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

func rawMessage(name wire.Name, raw string, id wire.CorrelationID) wire.Message {
	return wire.Message{Type: name, CorrelationIDs: []wire.CorrelationID{id}, Elements: []byte(raw)}
}

func sampleQuery(t testing.TB) query.ReportQuery {
	t.Helper()
	q, err := query.Build(query.Params{
		Ticker:        "AAPL US Equity",
		BrokerAcronym: "BCAP",
		Start:         "2020-01-01",
		End:           "2020-05-01",
		GroupBy:       "Broker",
		Source:        "Broker Contributed",
		Units:         "Shares",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return q
}

var bcap = models.ReportRecord{
	Broker: "BCAP", Bought: 1000.0, Crossed: 50.0, HighTouch: 200.0, LowTouch: 150.0,
	NumReports: 3, Sold: 900.0, Total: 1900.0, Traded: 1850.0,
}

func TestDecodeSampleRecord(t *testing.T) {
	records, err := Decode(reportMessage(t, 1, bcap))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0] != bcap {
		t.Errorf("got %+v, want %+v", records[0], bcap)
	}
}

func TestDecodePreservesOrder(t *testing.T) {
	a, b, c := bcap, bcap, bcap
	a.Broker, b.Broker, c.Broker = "ZZZZ", "AAAA", "MMMM"

	records, err := Decode(reportMessage(t, 1, a, b, c))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, want := range []string{"ZZZZ", "AAAA", "MMMM"} {
		if records[i].Broker != want {
			t.Errorf("records[%d].Broker = %s, want %s", i, records[i].Broker, want)
		}
	}
}

func TestDecoderIsOneShot(t *testing.T) {
	d := NewDecoder(reportMessage(t, 1, bcap, bcap))
	n := 0
	for d.Next() {
		n++
	}
	if n != 2 || d.Err() != nil {
		t.Fatalf("first pass: n=%d err=%v", n, d.Err())
	}
	if d.Next() {
		t.Error("exhausted decoder must not yield again")
	}
}

func TestDecodeFailsFast(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing records", `{}`, "records"},
		{"records not a list", `{"records": {"a": 1}}`, "records"},
		{"missing broker", `{"records": [{"bought": 1}]}`, "broker"},
		{"acronym wrong type", `{"records": [{"broker": {"acronym": 7}}]}`, "broker.acronym"},
		{"missing numeric", `{"records": [{"broker": {"acronym": "X"}, "bought": 1, "crossed": 1,
			"highTouch": 1, "lowTouch": 1, "sold": 1, "total": 1, "numReports": 1}]}`, "traded"},
		{"numeric as text", `{"records": [{"broker": {"acronym": "X"}, "bought": "1"}]}`, "bought"},
		{"fractional count", `{"records": [{"broker": {"acronym": "X"}, "bought": 1, "crossed": 1,
			"highTouch": 1, "lowTouch": 1, "sold": 1, "total": 1, "traded": 1, "numReports": 2.5}]}`, "numReports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Decode(rawMessage(wire.Report, tt.raw, 1))
			if records != nil {
				t.Errorf("expected no records on failure, got %d", len(records))
			}
			if !errors.Is(err, errors.ErrMalformedRecord) {
				t.Fatalf("expected ErrMalformedRecord, got %v", err)
			}
			var rerr *errors.RecordError
			if !errors.As(err, &rerr) || rerr.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestDecodeRejectsWholeResponseOnLateFailure(t *testing.T) {
	raw := `{"records": [
		{"broker": {"acronym": "BCAP"}, "bought": 1, "crossed": 1, "highTouch": 1, "lowTouch": 1,
		 "numReports": 1, "sold": 1, "total": 1, "traded": 1},
		{"broker": {"acronym": "GSCO"}}
	]}`
	d := NewDecoder(rawMessage(wire.Report, raw, 1))
	if !d.Next() {
		t.Fatalf("first record should decode: %v", d.Err())
	}
	if d.Next() {
		t.Fatal("second record should fail")
	}
	var rerr *errors.RecordError
	if !errors.As(d.Err(), &rerr) || rerr.Index != 1 {
		t.Fatalf("expected failure at index 1, got %v", d.Err())
	}

	if records, err := Decode(rawMessage(wire.Report, raw, 1)); err == nil || records != nil {
		t.Fatalf("Decode must reject the whole response, got %d records, err=%v", len(records), err)
	}
}

func TestCorrelatorUnrelated(t *testing.T) {
	c := NewCorrelator()
	c.Track(7, sampleQuery(t))

	m := c.Match(reportMessage(t, 8, bcap))
	if m.Kind != Unrelated {
		t.Fatalf("expected Unrelated, got %s", m.Kind)
	}
	if m.Err != nil || m.Records != nil {
		t.Error("unrelated match must carry no payload")
	}

	untagged, _ := wire.NewMessage(wire.Report, wire.ReportElements{})
	if c.Match(untagged).Kind != Unrelated {
		t.Error("message without correlation id must be unrelated")
	}
	if c.Outstanding() != 1 {
		t.Errorf("unrelated messages must not complete requests")
	}
}

func TestCorrelatorRecords(t *testing.T) {
	c := NewCorrelator()
	c.Track(7, sampleQuery(t))

	m := c.Match(reportMessage(t, 7, bcap))
	if m.Kind != Records || len(m.Records) != 1 || m.Records[0] != bcap {
		t.Fatalf("unexpected match %+v", m)
	}
	if m.Token != 7 {
		t.Errorf("token = %d", m.Token)
	}

	if _, ok := c.Complete(7); !ok {
		t.Error("expected pending request")
	}
	if c.Match(reportMessage(t, 7, bcap)).Kind != Unrelated {
		t.Error("completed token must no longer match")
	}
}

func TestCorrelatorErrorInfo(t *testing.T) {
	c := NewCorrelator()
	c.Track(3, sampleQuery(t))

	msg, err := wire.NewMessage(wire.ErrorInfo, wire.ErrorInfoElements{ErrorCode: 12, ErrorMsg: "Invalid date range"}, 3)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	m := c.Match(msg)
	if m.Kind != Failed {
		t.Fatalf("expected Failed, got %s", m.Kind)
	}
	if m.ErrorInfo == nil || m.ErrorInfo.Code != 12 || m.ErrorInfo.Message != "Invalid date range" {
		t.Errorf("unexpected error info %+v", m.ErrorInfo)
	}
	var rerr *errors.ReportError
	if !errors.As(m.Err, &rerr) || rerr.Code != 12 || rerr.Message != "Invalid date range" {
		t.Errorf("expected ReportError(12), got %v", m.Err)
	}
	if !errors.Is(m.Err, errors.ErrReport) {
		t.Error("ReportError must match ErrReport")
	}
	if len(m.Records) != 0 {
		t.Error("error match must produce no records")
	}
}

func TestCorrelatorMalformedPayloads(t *testing.T) {
	c := NewCorrelator()
	c.Track(1, sampleQuery(t))

	bad := rawMessage(wire.ErrorInfo, `{"ErrorCode": "twelve", "ErrorMsg": "x"}`, 1)
	if m := c.Match(bad); m.Kind != Failed || !errors.Is(m.Err, errors.ErrMalformedRecord) {
		t.Errorf("malformed ErrorInfo: %+v", m)
	}

	odd := rawMessage("Heartbeat", `{}`, 1)
	if m := c.Match(odd); m.Kind != Failed || !errors.Is(m.Err, errors.ErrMalformedRecord) {
		t.Errorf("unexpected message type: %+v", m)
	}
}
