package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/godamri/helix-audit/audit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserver_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewObserver(reg)
	ev := audit.Event{ServiceName: "billing", Action: "CREATE", ResourceType: "invoice"}
	ctx := context.Background()

	obs.Delivered(ctx, ev, 204, 15*time.Millisecond)
	obs.Delivered(ctx, ev, 204, 5*time.Millisecond)
	obs.Failed(ctx, ev, &audit.StatusError{StatusCode: 503})
	obs.Failed(ctx, ev, fmt.Errorf("wrapped: %w", audit.ErrClosed))
	obs.Failed(ctx, ev, errors.New("network down"))

	tests := []struct {
		result, status string
		want           float64
	}{
		{ResultDelivered, "204", 2},
		{ResultRejected, "503", 1},
		{ResultClosed, "none", 1},
		{ResultError, "none", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(obs.events.WithLabelValues("billing", tt.result, tt.status))
		if got != tt.want {
			t.Errorf("%s/%s = %v, want %v", tt.result, tt.status, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(obs.duration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestObserver_WiredIntoClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	obs := NewObserver(reg)
	c, err := audit.New("orders", srv.URL, audit.WithFireAndForget(false), audit.WithObserver(obs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.Log(context.Background(), audit.Entry{Action: "DELETE", ResourceType: "order"})

	if got := testutil.ToFloat64(obs.events.WithLabelValues("orders", ResultRejected, "502")); got != 1 {
		t.Errorf("rejected counter = %v", got)
	}
}
