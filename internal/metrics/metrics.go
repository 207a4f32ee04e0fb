// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes remediation counters and timings.
type Recorder struct {
	remediations   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
}

// NewRecorder registers the remediation metrics on the given registry.
// A nil registerer uses the default prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		remediations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remedy_remediations_total",
			Help: "Remediation action attempts by action type and result status.",
		}, []string{"action_type", "status"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remedy_action_duration_seconds",
			Help:    "Wall-clock duration of remediation action dispatches.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"action_type"}),
	}
}

// RecordRemediation counts one action attempt outcome
func (r *Recorder) RecordRemediation(actionType, status string) {
	r.remediations.WithLabelValues(actionType, status).Inc()
}

// ObserveActionDuration records how long one action dispatch took
func (r *Recorder) ObserveActionDuration(actionType string, seconds float64) {
	r.actionDuration.WithLabelValues(actionType).Observe(seconds)
}
