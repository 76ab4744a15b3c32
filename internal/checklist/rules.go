package checklist

import (
	"fmt"
	"sync"

	"fieldcheck/internal/model"

	"github.com/google/cel-go/cel"
)

// RuleEvaluator compiles and evaluates per-question compliance rules written
// in CEL. Rules see `value` (the typed answer), `kind` (response type) and
// `media_count` (attached evidence). Compiled programs are cached by source.
type RuleEvaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewRuleEvaluator creates an evaluator with the compliance rule environment
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("media_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &RuleEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleEvaluator
	defaultRulesErr  error
)

// DefaultRules returns a shared evaluator. Its cache only ever holds
// programs compiled from rule source, so sharing it is safe.
func DefaultRules() (*RuleEvaluator, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = NewRuleEvaluator()
	})
	return defaultRules, defaultRulesErr
}

// Compile checks that expr is a valid rule and caches its program
func (r *RuleEvaluator) Compile(expr string) error {
	_, err := r.program(expr)
	return err
}

func (r *RuleEvaluator) program(expr string) (cel.Program, error) {
	r.mu.RLock()
	prg, hit := r.programs[expr]
	r.mu.RUnlock()
	if hit {
		return prg, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prg, hit = r.programs[expr]; hit {
		return prg, nil
	}
	ast, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("rule must evaluate to bool, got %s", out)
	}
	prg, err := r.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	r.programs[expr] = prg
	return prg, nil
}

// Eval runs the rule against an answer
func (r *RuleEvaluator) Eval(expr string, a model.Answer) (bool, error) {
	prg, err := r.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"value":       ruleInput(a.Value),
		"kind":        string(a.Value.Kind),
		"media_count": int64(len(a.MediaRefs)),
	})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	passed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule result is %T, not bool", out.Value())
	}
	return passed, nil
}

func ruleInput(v model.Value) any {
	switch v.Kind {
	case model.ResponseYesNo:
		return v.Bool
	case model.ResponseMultipleChoice:
		return v.OptionID
	case model.ResponseNumeric:
		return v.Number
	case model.ResponseTime:
		return v.Time
	case model.ResponseDate:
		return v.Date
	default:
		return v.Text
	}
}
