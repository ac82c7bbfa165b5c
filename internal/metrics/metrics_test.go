package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestEscrowOpsTotal(t *testing.T) {
	c := EscrowOpsTotal.WithLabelValues("lock", "ok")
	before := counterValue(t, c)
	c.Inc()
	if got := counterValue(t, c); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

func TestTotalValueLockedGauge(t *testing.T) {
	TotalValueLocked.Set(123456)
	if got := gaugeValue(t, TotalValueLocked); got != 123456 {
		t.Errorf("gauge = %v, want 123456", got)
	}
	TotalValueLocked.Sub(456)
	if got := gaugeValue(t, TotalValueLocked); got != 123000 {
		t.Errorf("gauge = %v, want 123000", got)
	}
	TotalValueLocked.Set(0)
}

func TestDisputesTotalLabels(t *testing.T) {
	for _, kind := range []string{"initiated", "favor_payer", "favor_payee"} {
		DisputesTotal.WithLabelValues(kind).Inc()
	}
}
