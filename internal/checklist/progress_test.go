package checklist

import (
	"testing"

	"fieldcheck/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeProgress_Empty(t *testing.T) {
	tpl := siteTemplate()
	g := mustBuild(t, tpl)
	p := ComputeProgress(g, mustExecution(t, tpl, g))

	assert.Equal(t, 7, p.Active)
	assert.Equal(t, 0, p.Answered)
	assert.Equal(t, 4, p.RequiredOutstanding)
	assert.InDelta(t, 0, p.CompletionPct, 1e-9)
	assert.InDelta(t, 0, p.CompliancePct, 1e-9)
	assert.Equal(t, []string{"s1", "e1", "e2", "e3", "e4", "e5", "e6"}, p.Pending)
	assert.False(t, p.IsComplete())
}

func TestComputeProgress_NoQuestions(t *testing.T) {
	tpl := &model.Template{ID: "tpl-empty", Title: "Nothing to ask"}
	g := mustBuild(t, tpl)
	p := ComputeProgress(g, mustExecution(t, tpl, g))

	assert.InDelta(t, 100, p.CompletionPct, 1e-9)
	assert.InDelta(t, 100, p.CompliancePct, 1e-9)
	assert.True(t, p.IsComplete())
}

func TestComputeProgress_OptionalOnly(t *testing.T) {
	tpl := safetyTemplate()
	tpl.Questions[0].IsRequired = false
	g := mustBuild(t, tpl)
	p := ComputeProgress(g, mustExecution(t, tpl, g))

	// nothing answered and nothing required: no weight is at stake
	assert.InDelta(t, 0, p.CompletionPct, 1e-9)
	assert.InDelta(t, 100, p.CompliancePct, 1e-9)
}

func TestComputeProgress_Weighted(t *testing.T) {
	tpl := siteTemplate()
	tpl.Questions[3].Weight = weight(3) // e1
	g := mustBuild(t, tpl)
	st := mustExecution(t, tpl, g)

	// s1 fails (1), e1 is inside its rule (3), e2 and e6 pass (1 each)
	st = mustSubmit(t, tpl, g, st, "s1", "no")
	st = mustSubmit(t, tpl, g, st, "e1", 4.0)
	st = mustSubmit(t, tpl, g, st, "e2", nil, "sha256:1")
	st = mustSubmit(t, tpl, g, st, "e6", "yes", "sha256:2")

	p := ComputeProgress(g, st)
	assert.Equal(t, 4, p.Answered)
	assert.Equal(t, 0, p.RequiredOutstanding)
	assert.InDelta(t, 5, p.WeightEarned, 1e-9)
	assert.InDelta(t, 6, p.WeightPossible, 1e-9)
	assert.InDelta(t, 5.0/6.0*100, p.CompliancePct, 1e-9)
	assert.InDelta(t, 4.0/7.0*100, p.CompletionPct, 1e-9)

	st = mustSubmit(t, tpl, g, st, "e1", 11)
	p = ComputeProgress(g, st)
	assert.InDelta(t, 2, p.WeightEarned, 1e-9)
	assert.InDelta(t, 2.0/6.0*100, p.CompliancePct, 1e-9)
}

func TestComputeProgress_ZeroWeight(t *testing.T) {
	tpl := safetyTemplate()
	tpl.Questions[0].Weight = weight(0)
	g := mustBuild(t, tpl)
	st := mustSubmit(t, tpl, g, mustExecution(t, tpl, g), "q1", "no")

	p := ComputeProgress(g, st)
	assert.InDelta(t, 100, p.CompletionPct, 1e-9)
	assert.InDelta(t, 100, p.CompliancePct, 1e-9)
}

func TestComputeProgress_IsPure(t *testing.T) {
	tpl := siteTemplate()
	g := mustBuild(t, tpl)
	st := mustSubmit(t, tpl, g, mustExecution(t, tpl, g), "s1", "yes")
	before := st.Clone()

	first := ComputeProgress(g, st)
	second := ComputeProgress(g, st)
	assert.Equal(t, first, second)
	assert.Equal(t, before, st)
}

func TestCompliant(t *testing.T) {
	rules, err := NewRuleEvaluator()
	require.NoError(t, err)

	yesNo := &model.Question{ID: "a", ResponseType: model.ResponseYesNo}
	inverted := &model.Question{ID: "b", ResponseType: model.ResponseYesNo, InvertCompliance: true}
	text := &model.Question{ID: "c", ResponseType: model.ResponseText}
	broken := &model.Question{ID: "d", ResponseType: model.ResponseText, ComplianceRule: "value > 3"}
	withMedia := &model.Question{ID: "e", ResponseType: model.ResponseYesNo, ComplianceRule: "value && media_count >= 2"}

	yes := model.Answer{Value: model.Value{Kind: model.ResponseYesNo, Bool: true}}
	no := model.Answer{Value: model.Value{Kind: model.ResponseYesNo}}
	note := model.Answer{Value: model.Value{Kind: model.ResponseText, Text: "fine"}}

	assert.True(t, Compliant(yesNo, yes, rules))
	assert.False(t, Compliant(yesNo, no, rules))
	assert.False(t, Compliant(inverted, yes, rules))
	assert.True(t, Compliant(inverted, no, rules))
	assert.True(t, Compliant(text, note, rules))
	assert.False(t, Compliant(broken, note, rules), "runtime errors count as non-compliant")
	assert.False(t, Compliant(withMedia, yes, rules))

	yes.MediaRefs = []string{"sha256:1", "sha256:2"}
	assert.True(t, Compliant(withMedia, yes, rules))
	assert.False(t, Compliant(withMedia, yes, nil))
}

func TestViews(t *testing.T) {
	tpl := siteTemplate()
	g := mustBuild(t, tpl)
	st := mustSubmit(t, tpl, g, mustExecution(t, tpl, g), "s1", "yes")

	views := Views(g, st)
	require.Len(t, views, 8)
	assert.Equal(t, "s1", views[0].ID)
	assert.Equal(t, "Site", views[0].GroupTitle)
	require.NotNil(t, views[0].Answer)
	assert.True(t, views[0].Answer.Value.Bool)
	assert.Equal(t, "s2", views[1].ID)
	assert.Nil(t, views[1].Answer)
	assert.Equal(t, "Equipment", views[2].GroupTitle)
}
