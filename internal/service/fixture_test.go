package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/evidence"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type sentMessage struct {
	InspectionID string
	Type         string
	Payload      interface{}
}

type recordingBroadcaster struct {
	mu           sync.Mutex
	sent         []sentMessage
	disconnected []string
}

func (b *recordingBroadcaster) BroadcastToInspection(inspectionID string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{InspectionID: inspectionID, Type: msgType, Payload: payload})
}

func (b *recordingBroadcaster) DisconnectInspection(inspectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, inspectionID)
}

func (b *recordingBroadcaster) types(inspectionID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent {
		if m.InspectionID == inspectionID {
			out = append(out, m.Type)
		}
	}
	return out
}

type fixture struct {
	templates   *TemplateService
	inspections *InspectionService
	tplRepo     *repository.MemoryTemplateRepo
	execRepo    *repository.MemoryExecutionRepo
	reportRepo  *repository.MemoryReportRepo
	store       *evidence.MemoryStore
	metrics     *metrics.Metrics
	broadcaster *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rules, err := checklist.NewRuleEvaluator()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		tplRepo:     repository.NewMemoryTemplateRepo(),
		execRepo:    repository.NewMemoryExecutionRepo(),
		reportRepo:  repository.NewMemoryReportRepo(),
		store:       evidence.NewMemoryStore(),
		metrics:     metrics.New(),
		broadcaster: &recordingBroadcaster{},
	}
	f.templates = NewTemplateService(f.tplRepo, nil, rules, f.metrics, logger)
	f.templates.now = func() time.Time { return testNow }
	f.inspections = NewInspectionService(f.templates, f.execRepo, nil, f.store, rules, f.metrics, logger)
	f.inspections.now = func() time.Time { return testNow }
	f.inspections.SetBroadcaster(f.broadcaster)
	f.inspections.SetReportService(NewReportService(f.reportRepo, rules, logger))
	return f
}

func weight(w float64) *float64 { return &w }

// safetyDraft: q1 yes/no (required, weight 2) controls q2 text; q3 photo
// evidence is optional.
func safetyDraft() *model.Template {
	return &model.Template{
		ID:    "tpl-safety",
		Title: "Daily safety walk",
		Groups: []model.Group{
			{ID: "safety", Title: "Safety", Order: 1, QuestionIDs: []string{"q1", "q2", "q3"}},
		},
		Questions: []model.Question{
			{ID: "q1", Text: "Are walkways clear?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "safety", Weight: weight(2)},
			{ID: "q2", Text: "Which walkway?", ResponseType: model.ResponseText, Order: 2, GroupID: "safety", ParentID: "q1", ConditionValue: "yes"},
			{ID: "q3", Text: "Photo of the area", ResponseType: model.ResponsePhoto, Order: 3, GroupID: "safety"},
		},
	}
}

// vehicleDraft has a question that unlocks the safety checklist on "yes"
func vehicleDraft() *model.Template {
	return &model.Template{
		ID:    "tpl-vehicle",
		Title: "Vehicle check",
		Groups: []model.Group{
			{ID: "main", Title: "Main", Order: 1, QuestionIDs: []string{"v1"}},
		},
		Questions: []model.Question{
			{ID: "v1", Text: "Carrying passengers?", ResponseType: model.ResponseYesNo, Order: 1, IsRequired: true, GroupID: "main",
				HasSubChecklist: true, SubChecklistID: "tpl-safety", SubChecklistCondition: "yes"},
		},
	}
}

func (f *fixture) publish(t *testing.T, tpl *model.Template) *model.Template {
	t.Helper()
	ctx := context.Background()
	_, err := f.templates.Create(ctx, tpl)
	require.NoError(t, err)
	published, err := f.templates.Publish(ctx, tpl.ID)
	require.NoError(t, err)
	return published
}
