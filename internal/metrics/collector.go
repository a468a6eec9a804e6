// internal/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

const namespace = "launchpad"

// Operation status labels.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Collector exports engine activity to Prometheus. It observes operation
// outcomes directly and everything else from committed events.
type Collector struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	trades      *prometheus.CounterVec
	volume      *prometheus.CounterVec
	fees        *prometheus.CounterVec
	harvested   prometheus.Counter
	launches    prometheus.Counter
	graduations prometheus.Counter
	withdrawals prometheus.Counter
	reserve     *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector создает коллектор и регистрирует метрики в reg.
func NewCollector(reg prometheus.Registerer, logger *zap.Logger) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "State-changing engine operations by outcome",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency including external calls",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"operation"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Curve trades by side",
		}, []string{"side"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_volume_native",
			Help:      "Curve trade volume before fees, in whole native units",
		}, []string{"side"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_native",
			Help:      "Trade fees paid out, in whole native units",
		}, []string{"recipient"}),
		harvested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_harvested_native",
			Help:      "Royalty revenue pumped into curve reserves, in whole native units",
		}),
		launches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Wrapper assets launched",
		}),
		graduations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graduations_total",
			Help:      "Curves migrated into constant-product pools",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_withdrawals_total",
			Help:      "Operator withdrawals of unowed balances",
		}),
		reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curve_reserve_native",
			Help:      "Native reserve backing each active curve, in whole native units",
		}, []string{"wrapper"}),
		logger: logger.Named("metrics"),
	}

	for _, m := range []prometheus.Collector{
		c.operations, c.durations, c.trades, c.volume, c.fees,
		c.harvested, c.launches, c.graduations, c.withdrawals, c.reserve,
	} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// ObserveOperation records the outcome and latency of one engine operation.
func (c *Collector) ObserveOperation(operation string, duration time.Duration, err error) {
	status := StatusSuccess
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}
	c.operations.WithLabelValues(operation, status).Inc()
	c.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	switch ev := event.(type) {
	case *events.TokenLaunchedEvent:
		c.launches.Inc()
		c.reserve.WithLabelValues(ev.Wrapper.String()).Set(0)
	case *events.TradeEvent:
		side := "buy"
		if ev.Type() == events.TokensSold {
			side = "sell"
		}
		c.trades.WithLabelValues(side).Inc()
		c.volume.WithLabelValues(side).Add(native(ev.BaseAmount))
		c.reserve.WithLabelValues(ev.Wrapper.String()).Set(native(ev.ReserveAfter))
	case *events.FeesDistributedEvent:
		c.fees.WithLabelValues("treasury").Add(native(ev.TreasuryAmount))
		c.fees.WithLabelValues("creator").Add(native(ev.CreatorAmount))
	case *events.RevenueHarvestedEvent:
		c.harvested.Add(native(ev.Amount))
		c.reserve.WithLabelValues(ev.Wrapper.String()).Set(native(ev.ReserveAfter))
	case *events.GraduatedEvent:
		c.graduations.Inc()
		c.reserve.DeleteLabelValues(ev.Wrapper.String())
	case *events.EmergencyWithdrawalEvent:
		c.withdrawals.Inc()
	case *events.DepositEvent:
		// escrow movements are not exported
	default:
		c.logger.Debug("Unhandled event", zap.String("event_type", string(event.Type())))
	}
	return nil
}

func native(v *uint256.Int) float64 {
	return curve.ToDecimal(v, curve.NativeDecimals).InexactFloat64()
}
