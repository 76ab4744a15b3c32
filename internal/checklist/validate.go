package checklist

import (
	"fmt"
	"math"
	"strings"

	"fieldcheck/internal/model"
)

// Rule names a structural rule a template can break
type Rule string

const (
	RuleMissingID              Rule = "missing_id"
	RuleDuplicateGroupID       Rule = "duplicate_group_id"
	RuleDuplicateQuestionID    Rule = "duplicate_question_id"
	RuleDuplicateGroupOrder    Rule = "duplicate_group_order"
	RuleDuplicateQuestionOrder Rule = "duplicate_question_order"
	RuleUnknownQuestion        Rule = "unknown_question"
	RuleGroupMismatch          Rule = "group_mismatch"
	RuleDuplicateMembership    Rule = "duplicate_membership"
	RuleUnknownGroup           Rule = "unknown_group"
	RuleOrphanQuestion         Rule = "orphan_question"
	RuleResponseType           Rule = "response_type"
	RuleMissingOptions         Rule = "missing_options"
	RuleEmptyOptionLabel       Rule = "empty_option_label"
	RuleOptionID               Rule = "option_id"
	RuleNegativeWeight         Rule = "negative_weight"
	RuleUnknownParent          Rule = "unknown_parent"
	RuleMissingCondition       Rule = "missing_condition"
	RuleOrphanCondition        Rule = "condition_without_parent"
	RuleInvalidCondition       Rule = "invalid_condition"
	RuleCycle                  Rule = "conditional_cycle"
	RuleSubChecklist           Rule = "sub_checklist"
	RuleComplianceRule         Rule = "compliance_rule"
)

// Violation is one broken rule on one entity
type Violation struct {
	EntityID string `json:"entityId"`
	Rule     Rule   `json:"rule"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.EntityID, v.Rule, v.Message)
}

// Result is the outcome of Validate. An empty violation list means valid.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Valid reports whether no rule was broken
func (r Result) Valid() bool { return len(r.Violations) == 0 }

// Err returns a *ValidationError, or nil when valid
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Violations: r.Violations}
}

type validateOptions struct {
	subChecklistExists func(id string) bool
	rules              *RuleEvaluator
}

// ValidateOption configures Validate
type ValidateOption func(*validateOptions)

// WithSubChecklistLookup resolves sub-checklist ids against external templates.
// Without it only the presence of the id is checked.
func WithSubChecklistLookup(exists func(id string) bool) ValidateOption {
	return func(o *validateOptions) { o.subChecklistExists = exists }
}

// WithRules sets the evaluator used to compile compliance rules
func WithRules(r *RuleEvaluator) ValidateOption {
	return func(o *validateOptions) { o.rules = r }
}

// Validate checks the structural integrity of a template. It never mutates
// the template; violations are reported in group order, then question order.
func Validate(t *model.Template, opts ...ValidateOption) Result {
	var o validateOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.rules == nil {
		o.rules, _ = DefaultRules()
	}

	v := &validator{t: t, opts: o}
	v.checkTemplate()
	v.checkGroups()
	v.checkQuestions()
	v.checkCycles()
	return Result{Violations: v.out}
}

type validator struct {
	t    *model.Template
	opts validateOptions
	out  []Violation

	groups    map[string]*model.Group
	questions map[string]*model.Question
}

func (v *validator) add(id string, rule Rule, format string, args ...any) {
	v.out = append(v.out, Violation{EntityID: id, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) checkTemplate() {
	if strings.TrimSpace(v.t.ID) == "" {
		v.add("", RuleMissingID, "template id is empty")
	}

	v.groups = make(map[string]*model.Group, len(v.t.Groups))
	for i := range v.t.Groups {
		g := &v.t.Groups[i]
		if _, dup := v.groups[g.ID]; dup {
			v.add(g.ID, RuleDuplicateGroupID, "group id %q is used more than once", g.ID)
			continue
		}
		v.groups[g.ID] = g
	}

	v.questions = make(map[string]*model.Question, len(v.t.Questions))
	for i := range v.t.Questions {
		q := &v.t.Questions[i]
		if _, dup := v.questions[q.ID]; dup {
			v.add(q.ID, RuleDuplicateQuestionID, "question id %q is used more than once", q.ID)
			continue
		}
		v.questions[q.ID] = q
	}
}

func (v *validator) checkGroups() {
	orders := make(map[int]string)
	member := make(map[string]string) // question -> first group listing it

	for i := range v.t.Groups {
		g := &v.t.Groups[i]
		if strings.TrimSpace(g.ID) == "" {
			v.add(g.ID, RuleMissingID, "group at position %d has no id", i)
		}
		if other, dup := orders[g.Order]; dup {
			v.add(g.ID, RuleDuplicateGroupOrder, "order %d is already used by group %q", g.Order, other)
		} else {
			orders[g.Order] = g.ID
		}

		qOrders := make(map[int]string)
		for _, qid := range g.QuestionIDs {
			if prev, seen := member[qid]; seen {
				v.add(qid, RuleDuplicateMembership, "question is listed by group %q and again by group %q", prev, g.ID)
				continue
			}
			member[qid] = g.ID

			q, ok := v.questions[qid]
			if !ok {
				v.add(g.ID, RuleUnknownQuestion, "group lists unknown question %q", qid)
				continue
			}
			if q.GroupID != g.ID {
				v.add(qid, RuleGroupMismatch, "question belongs to group %q but is listed by group %q", q.GroupID, g.ID)
			}
			if other, dup := qOrders[q.Order]; dup {
				v.add(qid, RuleDuplicateQuestionOrder, "order %d is already used by question %q in group %q", q.Order, other, g.ID)
			} else {
				qOrders[q.Order] = qid
			}
		}
	}

	for i := range v.t.Questions {
		q := &v.t.Questions[i]
		if _, ok := v.groups[q.GroupID]; !ok {
			v.add(q.ID, RuleUnknownGroup, "group %q does not exist", q.GroupID)
			continue
		}
		if _, listed := member[q.ID]; !listed {
			v.add(q.ID, RuleOrphanQuestion, "question is not listed by group %q", q.GroupID)
		}
	}
}

func (v *validator) checkQuestions() {
	for i := range v.t.Questions {
		q := &v.t.Questions[i]
		if strings.TrimSpace(q.ID) == "" {
			v.add(q.ID, RuleMissingID, "question at position %d has no id", i)
		}
		if !q.ResponseType.Valid() {
			v.add(q.ID, RuleResponseType, "unknown response type %q", q.ResponseType)
			continue
		}
		v.checkOptions(q)

		if w := q.EffectiveWeight(); w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			v.add(q.ID, RuleNegativeWeight, "weight %v must be a non-negative number", w)
		}

		v.checkCondition(q)
		v.checkSubChecklist(q)

		if q.ComplianceRule != "" && v.opts.rules != nil {
			if err := v.opts.rules.Compile(q.ComplianceRule); err != nil {
				v.add(q.ID, RuleComplianceRule, "compliance rule does not compile: %v", err)
			}
		}
	}
}

func (v *validator) checkOptions(q *model.Question) {
	if q.ResponseType != model.ResponseMultipleChoice {
		return
	}
	if len(q.Options) == 0 {
		v.add(q.ID, RuleMissingOptions, "multiple choice question has no options")
		return
	}
	ids := make(map[string]bool, len(q.Options))
	for i, opt := range q.Options {
		if strings.TrimSpace(opt.Label) == "" {
			v.add(q.ID, RuleEmptyOptionLabel, "option %d has an empty label", i)
		}
		switch {
		case strings.TrimSpace(opt.ID) == "":
			v.add(q.ID, RuleOptionID, "option %d has no id", i)
		case ids[opt.ID]:
			v.add(q.ID, RuleOptionID, "option id %q is used more than once", opt.ID)
		}
		ids[opt.ID] = true
	}
}

func (v *validator) checkCondition(q *model.Question) {
	if q.ParentID == "" {
		if q.ConditionValue != "" {
			v.add(q.ID, RuleOrphanCondition, "condition value is set without a parent")
		}
		return
	}
	parent, ok := v.questions[q.ParentID]
	if !ok {
		v.add(q.ID, RuleUnknownParent, "parent question %q does not exist", q.ParentID)
		return
	}
	if q.ConditionValue == "" {
		v.add(q.ID, RuleMissingCondition, "parent %q is set without a condition value", q.ParentID)
		return
	}
	if !parent.ResponseType.Valid() {
		return
	}
	if _, err := ParseCondition(parent, q.ConditionValue); err != nil {
		v.add(q.ID, RuleInvalidCondition, "condition %q on parent %q: %v", q.ConditionValue, parent.ID, err)
	}
}

func (v *validator) checkSubChecklist(q *model.Question) {
	if !q.HasSubChecklist {
		if q.SubChecklistID != "" {
			v.add(q.ID, RuleSubChecklist, "sub-checklist id is set but hasSubChecklist is false")
		}
		return
	}
	switch {
	case q.SubChecklistID == "":
		v.add(q.ID, RuleSubChecklist, "sub-checklist id is missing")
		return
	case q.SubChecklistID == v.t.ID:
		v.add(q.ID, RuleSubChecklist, "template cannot use itself as a sub-checklist")
		return
	case v.opts.subChecklistExists != nil && !v.opts.subChecklistExists(q.SubChecklistID):
		v.add(q.ID, RuleSubChecklist, "sub-checklist %q cannot be retrieved", q.SubChecklistID)
	}
	if q.SubChecklistCondition != "" {
		if _, err := ParseCondition(q, q.SubChecklistCondition); err != nil {
			v.add(q.ID, RuleSubChecklist, "unlock condition %q: %v", q.SubChecklistCondition, err)
		}
	}
}

func (v *validator) checkCycles() {
	order := make([]string, 0, len(v.t.Questions))
	parents := make(map[string]string)
	for i := range v.t.Questions {
		q := &v.t.Questions[i]
		if v.questions[q.ID] != q {
			continue // duplicate id, already reported
		}
		order = append(order, q.ID)
		if q.ParentID == "" {
			continue
		}
		if _, ok := v.questions[q.ParentID]; ok {
			parents[q.ID] = q.ParentID
		}
	}
	for _, cycle := range detectCycles(order, parents) {
		v.add(cycle[0], RuleCycle, "conditional cycle %s", strings.Join(append(append([]string(nil), cycle...), cycle[0]), " -> "))
	}
}
