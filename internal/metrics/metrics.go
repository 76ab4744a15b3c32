// Package metrics exposes Prometheus instruments for inspections
package metrics

import (
	"errors"

	"fieldcheck/internal/checklist"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the services
type Metrics struct {
	Registry *prometheus.Registry

	submissions *prometheus.CounterVec
	validations *prometheus.CounterVec
	compliance  prometheus.Histogram
	completions prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldcheck",
			Name:      "answer_submissions_total",
			Help:      "Answer submissions by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldcheck",
			Name:      "template_validations_total",
			Help:      "Template validations by outcome.",
		}, []string{"outcome"}),
		compliance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fieldcheck",
			Name:      "inspection_compliance_percent",
			Help:      "Compliance percentage of completed inspections.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldcheck",
			Name:      "inspections_completed_total",
			Help:      "Inspections moved to completed.",
		}),
	}
	m.Registry.MustRegister(m.submissions, m.validations, m.compliance, m.completions)
	return m
}

// ObserveSubmission counts one submission, labelled by its rejection reason
func (m *Metrics) ObserveSubmission(err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(Outcome(err)).Inc()
}

// ObserveValidation counts one template validation
func (m *Metrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.validations.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records a completed inspection's compliance
func (m *Metrics) ObserveCompletion(compliancePct float64) {
	if m == nil {
		return
	}
	m.completions.Inc()
	m.compliance.Observe(compliancePct)
}

// Outcome maps a submission error onto a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, checklist.ErrInactiveQuestion):
		return "inactive_question"
	case errors.Is(err, checklist.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, checklist.ErrMissingEvidence):
		return "missing_evidence"
	case errors.Is(err, checklist.ErrEvidenceNotAllowed):
		return "evidence_not_allowed"
	case errors.Is(err, checklist.ErrUnknownQuestion):
		return "unknown_question"
	case errors.Is(err, checklist.ErrExecutionCompleted):
		return "completed"
	}
	return "error"
}
