package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestSlogObserver_SamplesFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := NewSlogObserver(logger)

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs.now = func() time.Time { return clock }

	event := Event{Action: "CREATE", ResourceType: "invoice"}
	obs.Failed(context.Background(), event, errors.New("first"))
	obs.Failed(context.Background(), event, errors.New("second"))
	obs.Failed(context.Background(), event, errors.New("third"))

	clock = clock.Add(6 * time.Second)
	obs.Failed(context.Background(), event, errors.New("fourth"))

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 sampled warnings, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[0]["error"] != "first" {
		t.Errorf("first report = %v", lines[0])
	}
	if lines[0]["failed_since_last_report"] != float64(1) {
		t.Errorf("first count = %v", lines[0]["failed_since_last_report"])
	}
	if lines[1]["error"] != "fourth" || lines[1]["failed_since_last_report"] != float64(3) {
		t.Errorf("second report = %v", lines[1])
	}
}

func TestSlogObserver_DeliveredIsDebug(t *testing.T) {
	var buf bytes.Buffer
	obs := NewSlogObserver(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	obs.Delivered(context.Background(), Event{Action: "UPDATE"}, 204, time.Millisecond)

	if buf.Len() != 0 {
		t.Errorf("success should not be logged above debug, got %s", buf.String())
	}
}

type countingObserver struct {
	delivered, failed int
}

func (c *countingObserver) Delivered(context.Context, Event, int, time.Duration) { c.delivered++ }
func (c *countingObserver) Failed(context.Context, Event, error)                 { c.failed++ }

func TestObservers_FansOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	obs := Observers(a, nil, b)

	obs.Delivered(context.Background(), Event{}, 200, 0)
	obs.Failed(context.Background(), Event{}, errors.New("x"))

	for i, c := range []*countingObserver{a, b} {
		if c.delivered != 1 || c.failed != 1 {
			t.Errorf("observer %d got delivered=%d failed=%d", i, c.delivered, c.failed)
		}
	}
}
