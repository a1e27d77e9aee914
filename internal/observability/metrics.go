// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Settlement metrics
	PurchasesTotal      prometheus.Counter
	SettlementVolume    prometheus.Counter
	BrokerSpreadTotal   prometheus.Counter
	ProviderPayoutTotal prometheus.Counter
	WithdrawalsTotal    prometheus.Counter
	EarningsWithdrawn   prometheus.Counter
	SegmentsCreated     *prometheus.CounterVec

	// Governance metrics
	MarketPhase   prometheus.Gauge
	MarketPaused  prometheus.Gauge
	SpreadBps     prometheus.Gauge
	LogicVersion  *prometheus.GaugeVec
	VersionSwaps  prometheus.Counter
	TokenSupply   prometheus.Gauge
	VestedTotal   prometheus.Gauge
	ReleasedTotal prometheus.Gauge

	// Event delivery metrics
	EventsEmitted      *prometheus.CounterVec
	SinkPublishErrors  *prometheus.CounterVec
	SinkPublishLatency *prometheus.HistogramVec
	StreamClients      prometheus.Gauge

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulOperation prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pat_settlement"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Engine metrics
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of engine operations by result category",
		}, []string{"operation", "result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Settlement metrics
		PurchasesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "purchases_total",
			Help:      "Total number of settled segment purchases",
		}),
		SettlementVolume: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "volume_tokens_total",
			Help:      "Sum of ask prices settled, in whole tokens",
		}),
		BrokerSpreadTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "broker_spread_tokens_total",
			Help:      "Sum of broker spreads paid, in whole tokens",
		}),
		ProviderPayoutTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "provider_payout_tokens_total",
			Help:      "Sum of provider payouts credited, in whole tokens",
		}),
		WithdrawalsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "earnings",
			Name:      "withdrawals_total",
			Help:      "Total number of earnings withdrawals",
		}),
		EarningsWithdrawn: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "earnings",
			Name:      "withdrawn_tokens_total",
			Help:      "Sum of earnings withdrawn, in whole tokens",
		}),
		SegmentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "segments_created_total",
			Help:      "Total number of segments created by type",
		}, []string{"type"}),

		// Governance metrics
		MarketPhase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "phase",
			Help:      "Current market phase ordinal",
		}),
		MarketPaused: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "paused",
			Help:      "1 when the market is paused",
		}),
		SpreadBps: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "spread_bps",
			Help:      "Current broker spread in basis points",
		}),
		LogicVersion: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "logic_version",
			Help:      "1 for the running logic version",
		}, []string{"version"}),
		VersionSwaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "implementation_swaps_total",
			Help:      "Total number of logic version swaps",
		}),
		TokenSupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "total_supply_tokens",
			Help:      "Current total supply, in whole tokens",
		}),
		VestedTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "vesting_total_tokens",
			Help:      "Team allocation under vesting, in whole tokens",
		}),
		ReleasedTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "vesting_released_tokens",
			Help:      "Team allocation released so far, in whole tokens",
		}),

		// Event delivery metrics
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total number of committed events by kind",
		}, []string{"kind"}),
		SinkPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Total number of failed sink deliveries",
		}, []string{"sink"}),
		SinkPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_latency_seconds",
			Help:      "Sink delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stream_clients",
			Help:      "Currently connected live event stream clients",
		}),

		// HTTP metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulOperation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_operation_timestamp",
			Help:      "Unix timestamp of last committed operation",
		}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// Handler returns an HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation records one engine operation.
func RecordOperation(operation, result string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(operation, result).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordPurchase records a settled purchase. Amounts are whole tokens.
func RecordPurchase(ask, payout, spread float64) {
	DefaultMetrics.PurchasesTotal.Inc()
	DefaultMetrics.SettlementVolume.Add(ask)
	DefaultMetrics.ProviderPayoutTotal.Add(payout)
	DefaultMetrics.BrokerSpreadTotal.Add(spread)
}

// RecordWithdrawal records an earnings withdrawal in whole tokens.
func RecordWithdrawal(amount float64) {
	DefaultMetrics.WithdrawalsTotal.Inc()
	DefaultMetrics.EarningsWithdrawn.Add(amount)
}

// RecordSegmentCreated increments the segments created counter.
func RecordSegmentCreated(segmentType string) {
	DefaultMetrics.SegmentsCreated.WithLabelValues(segmentType).Inc()
}

// UpdateMarketState refreshes the governance gauges.
func UpdateMarketState(phase int, paused bool, spreadBps uint32) {
	DefaultMetrics.MarketPhase.Set(float64(phase))
	if paused {
		DefaultMetrics.MarketPaused.Set(1)
	} else {
		DefaultMetrics.MarketPaused.Set(0)
	}
	DefaultMetrics.SpreadBps.Set(float64(spreadBps))
}

// UpdateLogicVersion marks version as the running one.
func UpdateLogicVersion(old, current string) {
	if old != "" && old != current {
		DefaultMetrics.LogicVersion.WithLabelValues(old).Set(0)
		DefaultMetrics.VersionSwaps.Inc()
	}
	DefaultMetrics.LogicVersion.WithLabelValues(current).Set(1)
}

// UpdateTokenState refreshes the supply and vesting gauges in whole tokens.
func UpdateTokenState(supply, vestingTotal, released float64) {
	DefaultMetrics.TokenSupply.Set(supply)
	DefaultMetrics.VestedTotal.Set(vestingTotal)
	DefaultMetrics.ReleasedTotal.Set(released)
}

// RecordEvent increments the emitted events counter.
func RecordEvent(kind string) {
	DefaultMetrics.EventsEmitted.WithLabelValues(kind).Inc()
}

// RecordSinkPublish records a sink delivery.
func RecordSinkPublish(sink string, seconds float64, err error) {
	DefaultMetrics.SinkPublishLatency.WithLabelValues(sink).Observe(seconds)
	if err != nil {
		DefaultMetrics.SinkPublishErrors.WithLabelValues(sink).Inc()
	}
}

// UpdateStreamClients sets the live stream client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, method, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSuccess updates the last successful operation timestamp.
func RecordSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulOperation.Set(float64(unixSeconds))
}
