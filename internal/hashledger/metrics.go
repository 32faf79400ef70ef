package hashledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeRecovered    = "recovered"
	outcomeFailed       = "failed"
	outcomeInconclusive = "inconclusive"
)

var (
	ledgerAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashledger_appends_total",
		Help: "Total records appended across all ledgers.",
	})

	ledgerVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hashledger_verifications_total",
		Help: "Total chain verifications by result.",
	}, []string{"result"})

	ledgerDivergencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashledger_divergences_total",
		Help: "Total divergences located.",
	})

	ledgerRecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hashledger_recoveries_total",
		Help: "Total payload recovery attempts by outcome.",
	}, []string{"outcome"})

	ledgerRecoveryCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hashledger_recovery_candidates",
		Help:    "Candidate orderings hashed per recovery attempt.",
		Buckets: prometheus.ExponentialBuckets(1, 8, 8),
	})
)

func recordAppend() {
	ledgerAppendsTotal.Inc()
}

func recordVerification(valid bool) {
	if valid {
		ledgerVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		ledgerVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}

func recordRecovery(outcome string, candidates int) {
	ledgerRecoveriesTotal.WithLabelValues(outcome).Inc()
	ledgerRecoveryCandidates.Observe(float64(candidates))
}
