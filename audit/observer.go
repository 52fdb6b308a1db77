package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives delivery outcomes. It is a diagnostic hook only:
// nothing it does can reach the caller of Log.
type Observer interface {
	Delivered(ctx context.Context, event Event, status int, elapsed time.Duration)
	Failed(ctx context.Context, event Event, err error)
}

type NopObserver struct{}

func (NopObserver) Delivered(context.Context, Event, int, time.Duration) {}
func (NopObserver) Failed(context.Context, Event, error)                 {}

type multiObserver []Observer

// Observers fans outcomes out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) Delivered(ctx context.Context, event Event, status int, elapsed time.Duration) {
	for _, o := range m {
		o.Delivered(ctx, event, status, elapsed)
	}
}

func (m multiObserver) Failed(ctx context.Context, event Event, err error) {
	for _, o := range m {
		o.Failed(ctx, event, err)
	}
}

// SlogObserver logs successes at debug level and failures at warn level.
// Failure logs are sampled: at most one per interval, carrying the number of
// failures seen since the previous report.
type SlogObserver struct {
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	failures atomic.Uint64
	mu       sync.Mutex
	lastLog  time.Time
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{
		logger:   logger,
		interval: 5 * time.Second,
		now:      time.Now,
	}
}

func (s *SlogObserver) Delivered(ctx context.Context, event Event, status int, elapsed time.Duration) {
	s.logger.DebugContext(ctx, "audit event delivered",
		"action", event.Action,
		"resource_type", event.ResourceType,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (s *SlogObserver) Failed(ctx context.Context, event Event, err error) {
	s.failures.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastLog.IsZero() && now.Sub(s.lastLog) < s.interval {
		return
	}

	s.logger.WarnContext(ctx, "audit event delivery failed",
		"action", event.Action,
		"resource_type", event.ResourceType,
		"failed_since_last_report", s.failures.Swap(0),
		"error", err,
	)
	s.lastLog = now
}
