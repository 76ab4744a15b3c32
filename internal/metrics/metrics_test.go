package metrics

import (
	"errors"
	"fmt"
	"testing"

	"fieldcheck/internal/checklist"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "accepted", Outcome(nil))
	assert.Equal(t, "inactive_question", Outcome(&checklist.AnswerError{QuestionID: "q", Err: checklist.ErrInactiveQuestion}))
	assert.Equal(t, "missing_evidence", Outcome(fmt.Errorf("wrapped: %w", checklist.ErrMissingEvidence)))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestMetrics_Observe(t *testing.T) {
	m := New()
	m.ObserveSubmission(nil)
	m.ObserveSubmission(nil)
	m.ObserveSubmission(checklist.ErrTypeMismatch)
	m.ObserveValidation(false)
	m.ObserveCompletion(75)

	assert.InDelta(t, 2, testutil.ToFloat64(m.submissions.WithLabelValues("accepted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.submissions.WithLabelValues("type_mismatch")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.validations.WithLabelValues("invalid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.completions), 0)

	n, err := testutil.GatherAndCount(m.Registry, "fieldcheck_inspection_compliance_percent")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission(nil)
		m.ObserveValidation(true)
		m.ObserveCompletion(10)
	})
}
