package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRequestLinesCarryFieldsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	logger = WithCorrelationID(WithService(WithSession(logger, "s-1"), "//blp/rankapi-beta"), 7)

	LogRequest(logger, "AAPL US Equity BCAP 2020-01-01..2020-05-01")
	LogOutcome(logger, 1, 25*time.Millisecond, nil)
	LogOutcome(logger, 0, time.Second, errors.New("operation timed out"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		for _, key := range []string{`"session"`, `"service"`, `"correlation_id"`} {
			if n := strings.Count(line, key); n != 1 {
				t.Errorf("%s appears %d times in %s", key, n, line)
			}
		}
	}
	if !strings.Contains(lines[2], `"error":"operation timed out"`) {
		t.Errorf("failed outcome must carry the error: %s", lines[2])
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(level) {
			t.Errorf("%s should be valid", level)
		}
	}
	if ValidLevel("verbose") {
		t.Error("verbose should be rejected")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	logger := FromContext(ctx)
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("logger not carried by context: %q", buf.String())
	}
}
