package rankd

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rank-client/internal/models"
	"rank-client/internal/wire"
)

const beta = "//blp/rankapi-beta"

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, cfg Config) *client {
	t.Helper()
	ts := httptest.NewServer(New(cfg))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(f wire.Frame) {
	c.t.Helper()
	if err := c.conn.WriteJSON(f); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) recv() wire.Event {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wire.Event
	if err := c.conn.ReadJSON(&ev); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return ev
}

func (c *client) request(id wire.CorrelationID, q wire.QueryRequest) {
	c.t.Helper()
	raw, _ := json.Marshal(q)
	c.send(wire.Frame{Op: wire.OpRequest, Service: beta, Operation: wire.QueryOperation, CorrelationID: id, Payload: raw})
}

func (c *client) open() {
	c.t.Helper()
	c.send(wire.Frame{Op: wire.OpStart, SessionID: "s1", MaxPendingRequests: 1})
	c.recv()
	c.send(wire.Frame{Op: wire.OpOpenService, Service: beta})
	if ev := c.recv(); ev.Messages[0].Type != wire.ServiceOpened {
		c.t.Fatalf("service not opened: %+v", ev)
	}
}

var sampleQuery = wire.QueryRequest{
	Brokers:          []wire.BrokerRef{{Acronym: "BCAP"}},
	Start:            "2020-01-01",
	End:              "2020-05-01",
	GroupBy:          "Broker",
	SecurityCriteria: wire.SecurityCriteria{Securities: []wire.SecurityRef{{Ticker: "AAPL US Equity"}}},
	Source:           "Broker Contributed",
	Units:            "Shares",
}

func TestStartAndOpenService(t *testing.T) {
	c := dial(t, Config{})

	c.send(wire.Frame{Op: wire.OpStart, SessionID: "s1"})
	ev := c.recv()
	if ev.Type != wire.EventSessionStatus || len(ev.Messages) != 2 {
		t.Fatalf("unexpected start event %+v", ev)
	}
	if ev.Messages[0].Type != wire.SessionConnectionUp || ev.Messages[1].Type != wire.SessionStarted {
		t.Errorf("unexpected messages %+v", ev.Messages)
	}

	c.send(wire.Frame{Op: wire.OpOpenService, Service: "//blp/nope"})
	ev = c.recv()
	if ev.Messages[0].Type != wire.ServiceOpenFailure || ev.Messages[0].Service != "//blp/nope" {
		t.Fatalf("expected open failure, got %+v", ev)
	}
	if !strings.Contains(ev.Messages[0].Reason(), "Service not found") {
		t.Errorf("reason = %q", ev.Messages[0].Reason())
	}

	c.send(wire.Frame{Op: wire.OpOpenService, Service: beta})
	if ev := c.recv(); ev.Messages[0].Type != wire.ServiceOpened {
		t.Fatalf("expected ServiceOpened, got %+v", ev)
	}
}

func TestRejectStart(t *testing.T) {
	c := dial(t, Config{RejectStart: "Unauthorized"})
	c.send(wire.Frame{Op: wire.OpStart, SessionID: "s1"})

	ev := c.recv()
	if ev.Messages[0].Type != wire.SessionStartupFailure || ev.Messages[0].Reason() != "Unauthorized" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRequestRepliesAreTagged(t *testing.T) {
	rec := models.ReportRecord{Broker: "BCAP", Bought: 1000, Crossed: 50, HighTouch: 200, LowTouch: 150,
		NumReports: 3, Sold: 900, Total: 1900, Traded: 1850}
	c := dial(t, Config{Responder: PartialResponder(2, StaticResponder(rec))})
	c.open()

	c.request(9, sampleQuery)
	for i := 0; i < 2; i++ {
		if ev := c.recv(); ev.Type != wire.EventPartialResponse {
			t.Fatalf("reply %d: expected partial, got %s", i, ev.Type)
		}
	}
	ev := c.recv()
	if ev.Type != wire.EventResponse {
		t.Fatalf("expected final response, got %s", ev.Type)
	}
	msg := ev.Messages[0]
	if id, ok := msg.CorrelationID(); !ok || id != 9 || msg.Type != wire.Report || msg.Service != beta {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestRequestBeforeOpen(t *testing.T) {
	c := dial(t, Config{})
	c.send(wire.Frame{Op: wire.OpStart, SessionID: "s1"})
	c.recv()

	c.request(1, sampleQuery)
	ev := c.recv()
	if ev.Messages[0].Type != wire.ErrorInfo {
		t.Fatalf("expected ErrorInfo, got %+v", ev)
	}
}

func TestSampleResponder(t *testing.T) {
	ctx := context.Background()
	r := SampleResponder()

	replies, err := r.Respond(ctx, Request{Query: sampleQuery})
	if err != nil || len(replies) != 1 || replies[0].Name != wire.Report {
		t.Fatalf("unexpected replies %+v (%v)", replies, err)
	}
	report := replies[0].Elements.(wire.ReportElements)
	if len(report.Records) != 1 || report.Records[0].Broker.Acronym != "BCAP" {
		t.Errorf("unexpected report %+v", report)
	}
	again, _ := r.Respond(ctx, Request{Query: sampleQuery})
	if again[0].Elements.(wire.ReportElements).Records[0] != report.Records[0] {
		t.Error("sample records must be deterministic")
	}

	ranked := sampleQuery
	ranked.Brokers = []wire.BrokerRef{{Rank: 2}}
	replies, _ = r.Respond(ctx, Request{Query: ranked})
	if got := replies[0].Elements.(wire.ReportElements).Records[0].Broker.Acronym; got != "GSCO" {
		t.Errorf("rank 2 broker = %s", got)
	}

	inverted := sampleQuery
	inverted.Start, inverted.End = "2020-05-01", "2020-01-01"
	replies, _ = r.Respond(ctx, Request{Query: inverted})
	info := replies[0].Elements.(wire.ErrorInfoElements)
	if replies[0].Name != wire.ErrorInfo || info.ErrorCode != CodeInvalidDateRange || info.ErrorMsg != "Invalid date range" {
		t.Errorf("unexpected reply %+v", replies[0])
	}
}
