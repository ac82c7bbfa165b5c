package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-dev/custodia/internal/idgen"
)

var (
	emitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "events",
		Name:      "emit_total",
		Help:      "Total settlement event emissions by outcome.",
	}, []string{"outcome"})

	emitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "events",
		Name:      "emit_errors_total",
		Help:      "Total subscriber failures by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(emitTotal, emitErrors)
}

// Emitter fans settlement events out to registered subscribers.
// Emission is fire-and-forget: subscriber errors are counted and logged
// but never propagate back into the custody operation that emitted.
type Emitter struct {
	mu     sync.RWMutex
	subs   []Subscriber
	logger *slog.Logger
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{logger: logger}
}

// Subscribe registers a subscriber for all future events.
func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

// EmitSettlement stamps the event and delivers it to every subscriber.
func (e *Emitter) EmitSettlement(ctx context.Context, s Settlement) {
	if e == nil {
		return
	}
	s.ID = idgen.WithPrefix("evt_")
	s.EmittedAt = time.Now()
	emitTotal.WithLabelValues(string(s.Outcome)).Inc()

	e.mu.RLock()
	subs := make([]Subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.HandleSettlement(ctx, &s); err != nil {
			emitErrors.WithLabelValues(string(s.Outcome)).Inc()
			e.logger.Warn("settlement event delivery failed",
				"event", s.ID, "escrow_id", s.EscrowID, "outcome", s.Outcome, "error", err)
		}
	}
}
