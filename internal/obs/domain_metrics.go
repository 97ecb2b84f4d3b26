package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CompareTotal counts price comparison requests by outcome.
	CompareTotal *prometheus.CounterVec
	// QuoteTotal counts cart quote requests by outcome.
	QuoteTotal *prometheus.CounterVec
	// PriceUpsertTotal counts price write attempts by outcome.
	PriceUpsertTotal *prometheus.CounterVec
	// QuoteStoreCandidates records how many stores had full cart coverage per quote.
	QuoteStoreCandidates prometheus.Histogram
	// ComparableOffers records the number of normalizable offers per comparison.
	ComparableOffers prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers the domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CompareTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compare_requests_total",
			Help:      "Count of price comparison outcomes.",
		}, []string{"result"})
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_requests_total",
			Help:      "Count of cart quote outcomes.",
		}, []string{"result"})
		PriceUpsertTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_upserts_total",
			Help:      "Count of price upsert outcomes.",
		}, []string{"result"})
		QuoteStoreCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_store_candidates",
			Help:      "Stores with full cart coverage per quote request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		})
		ComparableOffers = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparable_offers",
			Help:      "Offers carrying a normalized price per comparison request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		})

		registerOrReuse(reg, CompareTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CompareTotal = v
			}
		})
		registerOrReuse(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		registerOrReuse(reg, PriceUpsertTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceUpsertTotal = v
			}
		})
		registerOrReuse(reg, QuoteStoreCandidates, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteStoreCandidates = v
			}
		})
		registerOrReuse(reg, ComparableOffers, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ComparableOffers = v
			}
		})
	})
}
