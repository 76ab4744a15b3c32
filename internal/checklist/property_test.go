package checklist

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"fieldcheck/internal/model"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomTemplate turns generated parent indexes into a yes/no template.
// links[i] < 0 means question i has no parent; otherwise it points at
// question links[i] mod n.
func randomTemplate(links []int) *model.Template {
	ids := make([]string, len(links))
	for i := range links {
		ids[i] = fmt.Sprintf("q%d", i)
	}
	parents := make(map[string]string)
	for i, l := range links {
		if l >= 0 {
			parents[ids[i]] = ids[l%len(links)]
		}
	}
	return chainTemplate(ids, parents)
}

// hasCycle follows parent links naively from every question
func hasCycle(links []int) bool {
	n := len(links)
	for start := range links {
		node := start
		for step := 0; step <= n; step++ {
			if links[node] < 0 {
				break
			}
			node = links[node] % n
			if node == start {
				return true
			}
		}
	}
	return false
}

func linksGen() gopter.Gen {
	return gen.IntRange(1, 8).FlatMap(func(n any) gopter.Gen {
		return gen.SliceOfN(n.(int), gen.IntRange(-3, 7))
	}, reflect.TypeOf([]int(nil)))
}

func TestCycleDetectionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Build rejects a template exactly when its links loop", prop.ForAll(
		func(links []int) bool {
			_, err := Build(randomTemplate(links))
			return errors.Is(err, ErrCycle) == hasCycle(links) && (err == nil || errors.Is(err, ErrCycle))
		},
		linksGen(),
	))

	properties.TestingRun(t)
}

func TestActivationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// forward-only links keep the generated template acyclic
	acyclic := func(links []int) []int {
		out := make([]int, len(links))
		for i, l := range links {
			out[i] = -1
			if l >= 0 && i > 0 {
				out[i] = l % i
			}
		}
		return out
	}

	run := func(links []int, answers []bool) (*Graph, *model.Execution) {
		if len(answers) == 0 {
			answers = []bool{true}
		}
		tpl := randomTemplate(acyclic(links))
		g, err := Build(tpl)
		if err != nil {
			return nil, nil
		}
		st, err := NewExecution("exec-prop", tpl, g, now)
		if err != nil {
			return nil, nil
		}
		for i, id := range g.Order() {
			next, _, err := Submit(tpl, g, st, Submission{QuestionID: id, Value: answers[i%len(answers)]}, now)
			if err == nil {
				st = next
			}
		}
		return g, st
	}

	properties.Property("an active question always has an active parent", prop.ForAll(
		func(links []int, answers []bool) bool {
			g, st := run(links, answers)
			if g == nil {
				return false
			}
			for _, id := range g.ActiveQuestions(st.Answers) {
				if parent, _, ok := g.Parent(id); ok && !g.IsActive(parent, st.Answers) {
					return false
				}
			}
			return true
		},
		linksGen(),
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.Property("progress stays within bounds and is repeatable", prop.ForAll(
		func(links []int, answers []bool) bool {
			g, st := run(links, answers)
			if g == nil {
				return false
			}
			p := ComputeProgress(g, st)
			again := ComputeProgress(g, st)
			return p.CompletionPct >= 0 && p.CompletionPct <= 100 &&
				p.CompliancePct >= 0 && p.CompliancePct <= 100 &&
				p.Answered <= p.Active &&
				p.CompletionPct == again.CompletionPct &&
				p.CompliancePct == again.CompliancePct
		},
		linksGen(),
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.Property("rejected submissions never change state", prop.ForAll(
		func(links []int, answers []bool) bool {
			g, st := run(links, answers)
			if g == nil {
				return false
			}
			tpl := randomTemplate(acyclic(links))
			before := st.Clone()
			for _, id := range g.Order() {
				if g.IsActive(id, st.Answers) {
					continue
				}
				if _, _, err := Submit(tpl, g, st, Submission{QuestionID: id, Value: true}, now); !errors.Is(err, ErrInactiveQuestion) {
					return false
				}
			}
			return st.Seq == before.Seq && len(st.Answers) == len(before.Answers)
		},
		linksGen(),
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.TestingRun(t)
}
