package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCalculationsTotal counts quote calculations by outcome.
	QuoteCalculationsTotal *prometheus.CounterVec
	// QuoteLimitAdjustmentsTotal counts limit adjustments by tier and adjusted field.
	QuoteLimitAdjustmentsTotal *prometheus.CounterVec
	// QuoteCalculationDuration records engine latency in milliseconds.
	QuoteCalculationDuration prometheus.Histogram
	// QuoteCacheTotal counts quote cache lookups by outcome.
	QuoteCacheTotal *prometheus.CounterVec
	// QuoteBatchItemsTotal counts batch items priced by the worker by outcome.
	QuoteBatchItemsTotal *prometheus.CounterVec
	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calculations_total",
			Help:      "Count of quote calculations by outcome.",
		}, []string{"result"})
		QuoteLimitAdjustmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_limit_adjustments_total",
			Help:      "Count of pricing limit adjustments by tier and field.",
		}, []string{"tier", "field"})
		QuoteCalculationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_calculation_duration_ms",
			Help:      "Latency of quote calculations in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		})
		QuoteCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Count of quote cache lookups by outcome.",
		}, []string{"result"})
		QuoteBatchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_batch_items_total",
			Help:      "Count of batch quote items processed by outcome.",
		}, []string{"result"})
		RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Number of requests rejected by the rate limiter.",
		})

		QuoteCalculationsTotal = registerOrReuse(reg, QuoteCalculationsTotal)
		QuoteLimitAdjustmentsTotal = registerOrReuse(reg, QuoteLimitAdjustmentsTotal)
		QuoteCalculationDuration = registerOrReuse(reg, QuoteCalculationDuration)
		QuoteCacheTotal = registerOrReuse(reg, QuoteCacheTotal)
		QuoteBatchItemsTotal = registerOrReuse(reg, QuoteBatchItemsTotal)
		RateLimitRejectedTotal = registerOrReuse(reg, RateLimitRejectedTotal)
	})
}

// RecordQuote observes one quote calculation. It is a no-op until the domain
// metrics are registered.
func RecordQuote(result string, millis float64) {
	if QuoteCalculationsTotal != nil {
		QuoteCalculationsTotal.WithLabelValues(result).Inc()
	}
	if QuoteCalculationDuration != nil && millis >= 0 {
		QuoteCalculationDuration.Observe(millis)
	}
}

// RecordLimitAdjustment counts a single limit adjustment.
func RecordLimitAdjustment(tier, field string) {
	if QuoteLimitAdjustmentsTotal != nil {
		QuoteLimitAdjustmentsTotal.WithLabelValues(tier, field).Inc()
	}
}

// RecordQuoteCache counts a cache lookup outcome: hit, miss or error.
func RecordQuoteCache(result string) {
	if QuoteCacheTotal != nil {
		QuoteCacheTotal.WithLabelValues(result).Inc()
	}
}

// RecordBatchItem counts a processed batch item.
func RecordBatchItem(result string) {
	if QuoteBatchItemsTotal != nil {
		QuoteBatchItemsTotal.WithLabelValues(result).Inc()
	}
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited() {
	if RateLimitRejectedTotal != nil {
		RateLimitRejectedTotal.Inc()
	}
}
