// Package metrics provides Prometheus instrumentation for the custody engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EscrowOpsTotal counts escrow operations by operation and result.
	EscrowOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Name:      "escrow_operations_total",
			Help:      "Total escrow operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// EscrowsByStatus counts escrow transitions into each status.
	EscrowsByStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Name:      "escrows_total",
			Help:      "Total escrow transitions by resulting status.",
		},
		[]string{"status"},
	)

	// TotalValueLocked tracks the running sum of locked escrow value.
	TotalValueLocked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "custodia",
			Name:      "total_value_locked",
			Help:      "Sum of amounts held in locked or disputed escrows, in base units.",
		},
	)

	// DisputesTotal counts dispute lifecycle events.
	DisputesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodia",
			Name:      "disputes_total",
			Help:      "Total dispute events by kind (initiated, favor_payer, favor_payee).",
		},
		[]string{"kind"},
	)

	// EscrowLifetimeTicks observes how many logical ticks an escrow stayed open.
	EscrowLifetimeTicks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "custodia",
			Name:      "escrow_lifetime_ticks",
			Help:      "Logical ticks from escrow creation to terminal transition.",
			Buckets:   []float64{1, 10, 50, 144, 288, 1008, 2016, 4032, 8064},
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "custodia", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "custodia", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "custodia", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "custodia", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		EscrowOpsTotal,
		EscrowsByStatus,
		TotalValueLocked,
		DisputesTotal,
		EscrowLifetimeTicks,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}
