package checklist

import (
	"fieldcheck/internal/model"
)

type progressOptions struct {
	subProgress map[string]model.Progress
	rules       *RuleEvaluator
}

// ProgressOption configures ComputeProgress
type ProgressOption func(*progressOptions)

// WithSubProgress supplies the progress of linked sub-checklist executions,
// keyed by the question that links them. A required sub-checklist missing
// from the map, or below 100% completion, leaves its question incomplete.
func WithSubProgress(sub map[string]model.Progress) ProgressOption {
	return func(o *progressOptions) { o.subProgress = sub }
}

// WithRuleEvaluator sets the evaluator for per-question compliance rules
func WithRuleEvaluator(r *RuleEvaluator) ProgressOption {
	return func(o *progressOptions) { o.rules = r }
}

// ComputeProgress derives completion and weighted compliance from the live
// answer set. It is pure: the same graph and execution always produce the
// same result, and nothing is memoized between calls.
//
// Completion counts answered questions among the active ones. Compliance is
// the weight of compliant answers over the weight of answered questions plus
// unanswered required ones; unanswered optional questions never count.
func ComputeProgress(g *Graph, st *model.Execution, opts ...ProgressOption) model.Progress {
	var o progressOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.rules == nil {
		o.rules, _ = DefaultRules()
	}

	var p model.Progress
	for _, id := range g.order {
		if !g.IsActive(id, st.Answers) {
			continue
		}
		q := g.questions[id]
		w := q.EffectiveWeight()
		p.Active++

		a, answered := st.Answers[id]
		if answered && q.IsRequired && SubChecklistUnlocked(q, st.Answers) {
			sub, ok := o.subProgress[id]
			answered = ok && sub.CompletionPct >= 100
		}

		if answered {
			p.Answered++
			p.WeightPossible += w
			if Compliant(q, a, o.rules) {
				p.WeightEarned += w
			}
			continue
		}
		p.Pending = append(p.Pending, id)
		if q.IsRequired {
			p.RequiredOutstanding++
			p.WeightPossible += w
		}
	}

	p.CompletionPct = 100
	if p.Active > 0 {
		p.CompletionPct = clampPct(float64(p.Answered) / float64(p.Active) * 100)
	}
	p.CompliancePct = 100
	if p.WeightPossible > 0 {
		p.CompliancePct = clampPct(p.WeightEarned / p.WeightPossible * 100)
	}
	return p
}

// Compliant applies the compliance policy to one answer. An attached rule
// decides when present (evaluation errors fail the answer); otherwise yes/no
// passes on "yes" (or "no" when inverted) and any other answer passes.
func Compliant(q *model.Question, a model.Answer, rules *RuleEvaluator) bool {
	if q.ComplianceRule != "" {
		if rules == nil {
			return false
		}
		ok, err := rules.Eval(q.ComplianceRule, a)
		return err == nil && ok
	}
	if q.ResponseType == model.ResponseYesNo {
		return a.Value.Bool != q.InvertCompliance
	}
	return true
}

func clampPct(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
