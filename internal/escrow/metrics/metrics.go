package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EscrowsCreated     prometheus.Counter
	EscrowsCompleted   prometheus.Counter
	EscrowsCancelled   prometheus.Counter
	DepositsRecorded   prometheus.Counter
	ConditionsVerified prometheus.Counter
	ReleasesRequested  prometheus.Counter
	ReleasesExecuted   prometheus.Counter
	ReleasesRejected   prometheus.Counter
	ReleaseFailures    prometheus.Counter
	ReleasesExpired    prometheus.Counter
	ReleaseDuration    prometheus.Histogram
	SummaryCacheHits   prometheus.Counter
	SummaryCacheMisses prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EscrowsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_accounts_created_total",
			Help: "Total number of escrow accounts opened",
		}),
		EscrowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_accounts_completed_total",
			Help: "Total number of escrow accounts that released all milestones",
		}),
		EscrowsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_accounts_cancelled_total",
			Help: "Total number of escrow accounts cancelled by operators",
		}),
		DepositsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_deposits_recorded_total",
			Help: "Total number of deposits recorded into escrow",
		}),
		ConditionsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_conditions_verified_total",
			Help: "Total number of conditions marked met",
		}),
		ReleasesRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_releases_requested_total",
			Help: "Total number of release requests submitted",
		}),
		ReleasesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_releases_executed_total",
			Help: "Total number of releases settled to recipients",
		}),
		ReleasesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_releases_rejected_total",
			Help: "Total number of release requests rejected",
		}),
		ReleaseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_release_failures_total",
			Help: "Total number of payment execution failures",
		}),
		ReleasesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_releases_expired_total",
			Help: "Total number of release requests that expired before quorum",
		}),
		ReleaseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "conveyr_escrow_release_execution_seconds",
			Help:    "Payment execution latency for approved releases",
			Buckets: prometheus.DefBuckets,
		}),
		SummaryCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_summary_cache_hits_total",
			Help: "Escrow summary reads served from cache",
		}),
		SummaryCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conveyr_escrow_summary_cache_misses_total",
			Help: "Escrow summary reads that rebuilt the projection",
		}),
	}
}
