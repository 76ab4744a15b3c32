package checklist

import (
	"testing"
	"time"

	"fieldcheck/internal/model"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func weight(w float64) *float64 { return &w }

// safetyTemplate: Q1 yes/no (required, weight 2) controls Q2 text (weight 1).
func safetyTemplate() *model.Template {
	return &model.Template{
		ID:      "tpl-safety",
		Title:   "Daily safety walk",
		Version: "0.1.0",
		Status:  model.TemplatePublished,
		Groups: []model.Group{
			{ID: "safety", Title: "Safety", Order: 1, QuestionIDs: []string{"q1", "q2"}},
		},
		Questions: []model.Question{
			{ID: "q1", Text: "Are walkways clear?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "safety", Weight: weight(2)},
			{ID: "q2", Text: "Which walkway?", ResponseType: model.ResponseText, Order: 2, GroupID: "safety", Weight: weight(1), ParentID: "q1", ConditionValue: "yes"},
		},
	}
}

// siteTemplate covers every response type, a two-level condition chain,
// a compliance rule and template-level mandatory evidence.
func siteTemplate() *model.Template {
	return &model.Template{
		ID:                "tpl-site",
		Title:             "Construction site inspection",
		Version:           "1.2.0",
		Status:            model.TemplatePublished,
		EvidenceMandatory: true,
		Groups: []model.Group{
			{ID: "equipment", Title: "Equipment", Order: 2, QuestionIDs: []string{"e1", "e2", "e3", "e4", "e5", "e6"}},
			{ID: "site", Title: "Site", Order: 1, QuestionIDs: []string{"s3", "s1", "s2"}},
		},
		Questions: []model.Question{
			{ID: "s1", Text: "Is the site fenced?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "site"},
			{ID: "s2", Text: "Fence type", ResponseType: model.ResponseMultipleChoice, Order: 2, IsRequired: true, GroupID: "site",
				Options:  []model.Option{{ID: "opt_chain", Label: "Chain link"}, {ID: "opt_wood", Label: "Wood"}},
				ParentID: "s1", ConditionValue: "yes"},
			{ID: "s3", Text: "Describe the wood condition", ResponseType: model.ResponseText, Order: 3, GroupID: "site",
				ParentID: "s2", ConditionValue: "opt_wood"},
			{ID: "e1", Text: "Extinguisher pressure (bar)", ResponseType: model.ResponseNumeric, Order: 1, IsRequired: true, GroupID: "equipment",
				ComplianceRule: "value >= 2.0 && value <= 8.0"},
			{ID: "e2", Text: "Photo of extinguisher", ResponseType: model.ResponsePhoto, Order: 2, IsRequired: true, GroupID: "equipment"},
			{ID: "e3", Text: "Last service date", ResponseType: model.ResponseDate, Order: 3, GroupID: "equipment"},
			{ID: "e4", Text: "Inspection time", ResponseType: model.ResponseTime, Order: 4, GroupID: "equipment"},
			{ID: "e5", Text: "Supervisor signature", ResponseType: model.ResponseSignature, Order: 5, GroupID: "equipment"},
			{ID: "e6", Text: "Are exit signs lit?", ResponseType: model.ResponseYesNo, Order: 6, IsRequired: true, GroupID: "equipment", AllowsPhoto: true},
		},
	}
}

func mustBuild(t *testing.T, tpl *model.Template) *Graph {
	t.Helper()
	g, err := Build(tpl)
	require.NoError(t, err)
	return g
}

func mustExecution(t *testing.T, tpl *model.Template, g *Graph) *model.Execution {
	t.Helper()
	st, err := NewExecution("exec-1", tpl, g, now)
	require.NoError(t, err)
	return st
}

func mustSubmit(t *testing.T, tpl *model.Template, g *Graph, st *model.Execution, id string, value any, refs ...string) *model.Execution {
	t.Helper()
	next, _, err := Submit(tpl, g, st, Submission{QuestionID: id, Value: value, MediaRefs: refs}, now)
	require.NoError(t, err)
	return next
}
