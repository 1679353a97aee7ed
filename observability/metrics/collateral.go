package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stablemint/core/events"
)

// CollateralMetrics tracks the engine's operation volume for dashboards and
// liquidation alerting.
type CollateralMetrics struct {
	operations        *prometheus.CounterVec
	liquidationVolume prometheus.Counter
}

var (
	collateralOnce     sync.Once
	collateralRegistry *CollateralMetrics
)

func Collateral() *CollateralMetrics {
	collateralOnce.Do(func() {
		collateralRegistry = &CollateralMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "collateral_operations_total",
				Help: "Count of completed engine operations by type.",
			}, []string{"type"}),
			liquidationVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "collateral_liquidation_debt_covered_wei",
				Help: "Cumulative debt covered through liquidations, in 18-decimal units.",
			}),
		}
		prometheus.MustRegister(
			collateralRegistry.operations,
			collateralRegistry.liquidationVolume,
		)
	})
	return collateralRegistry
}

// ObserveOperation records a completed engine operation by event type.
func (m *CollateralMetrics) ObserveOperation(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.operations.WithLabelValues(kind).Inc()
}

// ObserveLiquidation adds the covered debt to the liquidation volume counter.
func (m *CollateralMetrics) ObserveLiquidation(debtCovered *big.Int) {
	if m == nil || debtCovered == nil {
		return
	}
	value, _ := new(big.Float).SetInt(debtCovered).Float64()
	m.liquidationVolume.Add(value)
}

// Emitter adapts the metrics registry to the engine's event stream so every
// successful mutation is counted without the engine knowing about prometheus.
type Emitter struct {
	metrics *CollateralMetrics
	next    events.Emitter
}

// NewEmitter wraps next (may be nil) with metric observation.
func NewEmitter(next events.Emitter) *Emitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &Emitter{metrics: Collateral(), next: next}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(event events.Event) {
	if e == nil || event == nil {
		return
	}
	e.metrics.ObserveOperation(event.EventType())
	if liq, ok := event.(events.Liquidated); ok {
		e.metrics.ObserveLiquidation(liq.DebtCovered)
	}
	e.next.Emit(event)
}
