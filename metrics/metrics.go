// Package metrics instruments the funding pipeline's two state machines
// with Prometheus counters: funding attempts, RBF bumps, and terminal
// outcomes. Neither chanfunding nor txpublish imports this package
// directly, and their configs carry no metrics hook: a caller increments
// these counters around the sessions it starts and the results it receives,
// the way a daemon wires grpc-ecosystem/go-grpc-prometheus into its RPC
// server rather than hardcoding metrics calls inside core packages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder exposes the counters this package registers, grouped by the
// pipeline stage that increments them.
type Recorder struct {
	fundingAttemptsTotal  *prometheus.CounterVec
	fundingFailuresTotal  *prometheus.CounterVec
	rbfBumpsTotal         prometheus.Counter
	publisherOutcomeTotal *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors against reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		fundingAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fundingcore",
				Name:      "funding_attempts_total",
				Help:      "Interactive-tx funding attempts started, by role.",
			},
			[]string{"role"},
		),
		fundingFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fundingcore",
				Name:      "funding_failures_total",
				Help:      "Interactive-tx funding attempts that ended in a terminal error, by reason.",
			},
			[]string{"reason"},
		),
		rbfBumpsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fundingcore",
				Name:      "rbf_bumps_total",
				Help:      "Replacement fundings applied by the claim publisher.",
			},
		),
		publisherOutcomeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fundingcore",
				Name:      "publisher_outcome_total",
				Help:      "Claim publisher terminal outcomes, by outcome.",
			},
			[]string{"outcome"},
		),
	}

	collectors := []prometheus.Collector{
		r.fundingAttemptsTotal, r.fundingFailuresTotal,
		r.rbfBumpsTotal, r.publisherOutcomeTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// FundingAttempted records the start of a funding session for the given
// role ("initiator" or "non-initiator").
func (r *Recorder) FundingAttempted(role string) {
	r.fundingAttemptsTotal.WithLabelValues(role).Inc()
}

// FundingFailed records a terminal funding failure, tagged with a short,
// caller-chosen reason (e.g. "unusable-input", "wallet-error").
func (r *Recorder) FundingFailed(reason string) {
	r.fundingFailuresTotal.WithLabelValues(reason).Inc()
}

// RBFBumpApplied records one successful replacement funding.
func (r *Recorder) RBFBumpApplied() {
	r.rbfBumpsTotal.Inc()
}

// PublisherOutcome records a claim publisher's terminal outcome (e.g.
// "confirmed", "rejected", "stopped").
func (r *Recorder) PublisherOutcome(outcome string) {
	r.publisherOutcomeTotal.WithLabelValues(outcome).Inc()
}
