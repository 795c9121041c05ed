package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultNamespace = "arbbot"

var (
	defaultSet  *Set
	defaultOnce sync.Once
)

// Set groups every metric family exported by the bot
type Set struct {
	Quote     *QuoteMetrics
	Scanner   *ScannerMetrics
	Execution *ExecutionMetrics
	Loans     *LoanMetrics
	Tips      *TipMetrics
}

// NewSet registers a full metric set on reg. A nil registerer creates
// unregistered collectors, which is what tests want.
func NewSet(reg prometheus.Registerer, namespace string) *Set {
	f := promauto.With(reg)
	return &Set{
		Quote:     newQuoteMetrics(f, namespace),
		Scanner:   newScannerMetrics(f, namespace),
		Execution: newExecutionMetrics(f, namespace),
		Loans:     newLoanMetrics(f, namespace),
		Tips:      newTipMetrics(f, namespace),
	}
}

// Default returns the process-wide set registered on the default registerer
func Default() *Set {
	defaultOnce.Do(func() {
		defaultSet = NewSet(prometheus.DefaultRegisterer, DefaultNamespace)
	})
	return defaultSet
}

type QuoteMetrics struct {
	Requests     *prometheus.CounterVec
	Latency      prometheus.Histogram
	ChainLatency prometheus.Histogram
	Fallbacks    prometheus.Counter
	BreakerTrips prometheus.Counter
}

func newQuoteMetrics(f promauto.Factory, namespace string) *QuoteMetrics {
	return &QuoteMetrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Aggregator leg quote requests by result",
		}, []string{"result"}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "leg_latency_seconds",
			Help:      "Latency of a single aggregator leg quote",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		ChainLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "chain_latency_seconds",
			Help:      "Latency of a whole chained quote",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "fallbacks_total",
			Help:      "Routes rebuilt with the local fallback estimator",
		}),
		BreakerTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "breaker_trips_total",
			Help:      "Aggregator circuit breaker trips",
		}),
	}
}

type ScannerMetrics struct {
	Ticks              prometheus.Counter
	TickDuration       prometheus.Histogram
	Overruns           prometheus.Counter
	RoutesEvaluated    prometheus.Counter
	RouteErrors        prometheus.Counter
	Opportunities      prometheus.Counter
	CacheSize          prometheus.Gauge
	CacheEvictions     prometheus.Counter
	PriceRefreshErrors prometheus.Counter
}

func newScannerMetrics(f promauto.Factory, namespace string) *ScannerMetrics {
	return &ScannerMetrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "ticks_total",
			Help:      "Scan ticks executed",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a scan tick",
			Buckets:   prometheus.DefBuckets,
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tick_overruns_total",
			Help:      "Ticks that took longer than the scan period",
		}),
		RoutesEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "routes_evaluated_total",
			Help:      "Routes quoted and evaluated",
		}),
		RouteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "route_errors_total",
			Help:      "Routes that could not be quoted",
		}),
		Opportunities: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "opportunities_total",
			Help:      "Opportunities accepted by the evaluator",
		}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cache_size",
			Help:      "Live opportunities in the cache",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cache_evictions_total",
			Help:      "Opportunities swept after exceeding the TTL",
		}),
		PriceRefreshErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "price_refresh_errors_total",
			Help:      "Failed price snapshot refreshes",
		}),
	}
}

type ExecutionMetrics struct {
	Attempts     prometheus.Counter
	Outcomes     *prometheus.CounterVec
	Rejected     *prometheus.CounterVec
	TipLamports  prometheus.Histogram
	ProfitTotal  prometheus.Counter
	PollAttempts prometheus.Histogram
	Duration     prometheus.Histogram
}

func newExecutionMetrics(f promauto.Factory, namespace string) *ExecutionMetrics {
	return &ExecutionMetrics{
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "attempts_total",
			Help:      "Opportunity executions started",
		}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "outcomes_total",
			Help:      "Terminal bundle states",
		}, []string{"state"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "rejected_total",
			Help:      "Executions stopped before submission, by reason",
		}, []string{"reason"}),
		TipLamports: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "tip_lamports",
			Help:      "Tips attached to submitted bundles",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		}),
		ProfitTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "expected_profit_landed_total",
			Help:      "Expected net profit of landed bundles, in base units",
		}),
		PollAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "poll_attempts",
			Help:      "Status polls used per bundle",
			Buckets:   prometheus.LinearBuckets(1, 3, 11),
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Time from execution request to terminal state",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

type LoanMetrics struct {
	ProviderSelections *prometheus.CounterVec
	Encoded            prometheus.Counter
}

func newLoanMetrics(f promauto.Factory, namespace string) *LoanMetrics {
	return &LoanMetrics{
		ProviderSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flashloan",
			Name:      "provider_selections_total",
			Help:      "Number of times each provider was selected",
		}, []string{"provider"}),
		Encoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flashloan",
			Name:      "encoded_total",
			Help:      "Borrow/repay instruction pairs encoded",
		}),
	}
}

type TipMetrics struct {
	Clamps   prometheus.Counter
	Computed prometheus.Histogram
}

func newTipMetrics(f promauto.Factory, namespace string) *TipMetrics {
	return &TipMetrics{
		Clamps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tip",
			Name:      "policy_clamps_total",
			Help:      "Tip policy updates clamped to the hard cap",
		}),
		Computed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tip",
			Name:      "computed_lamports",
			Help:      "Tips produced by the calculator",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		}),
	}
}
