package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rajdeep-singha/sXLM/core"
)

// Metrics holds the engine's Prometheus metrics.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	InterestAccrued   prometheus.Counter
	LiquidationSeized prometheus.Counter
	TotalCollateral   prometheus.Gauge
	TotalBorrowed     prometheus.Gauge
}

// NewMetrics creates and registers engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sxlm_engine_operations_total",
			Help: "Committed engine operations by type",
		}, []string{"operation"}),

		InterestAccrued: factory.NewCounter(prometheus.CounterOpts{
			Name: "sxlm_engine_interest_accrued_total",
			Help: "Interest accrued across positions, base units",
		}),

		LiquidationSeized: factory.NewCounter(prometheus.CounterOpts{
			Name: "sxlm_engine_liquidation_seized_total",
			Help: "Collateral seized by liquidations, base units",
		}),

		TotalCollateral: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sxlm_engine_total_collateral",
			Help: "Collateral under engine custody, base units",
		}),

		TotalBorrowed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sxlm_engine_total_borrowed",
			Help: "Outstanding debt across positions, base units",
		}),
	}
}

// MetricsSink projects engine events onto Prometheus metrics. It satisfies
// core.EventSink and tracks the aggregate gauges from the event stream.
type MetricsSink struct {
	metrics *Metrics
}

func NewMetricsSink(metrics *Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

func (s *MetricsSink) Emit(event core.Event) {
	s.metrics.OperationsTotal.WithLabelValues(event.Type.String()).Inc()

	interest, _ := event.Interest.Float64()
	if interest > 0 {
		s.metrics.InterestAccrued.Add(interest)
		s.metrics.TotalBorrowed.Add(interest)
	}

	amount, _ := event.Amount.Float64()
	switch event.Type {
	case core.EventDeposit:
		s.metrics.TotalCollateral.Add(amount)
	case core.EventWithdraw:
		s.metrics.TotalCollateral.Sub(amount)
	case core.EventBorrow:
		s.metrics.TotalBorrowed.Add(amount)
	case core.EventRepay:
		s.metrics.TotalBorrowed.Sub(amount)
	case core.EventLiquidate:
		seized, _ := event.Seized.Float64()
		s.metrics.LiquidationSeized.Add(seized)
		s.metrics.TotalCollateral.Sub(seized)
		s.metrics.TotalBorrowed.Sub(amount)
	}
}
