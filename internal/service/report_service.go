package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"
)

// ErrNotCompleted is returned when a report is requested for an open inspection
var ErrNotCompleted = errors.New("inspection is not completed")

// ReportService handles post-inspection report generation
type ReportService struct {
	reportRepo repository.ReportRepo
	rules      *checklist.RuleEvaluator
	logger     *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(reportRepo repository.ReportRepo, rules *checklist.RuleEvaluator, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		reportRepo: reportRepo,
		rules:      rules,
		logger:     logger,
	}
}

// CreateSnapshot freezes the report of a completed execution
func (s *ReportService) CreateSnapshot(ctx context.Context, t *model.Template, g *checklist.Graph, e *model.Execution, p model.Progress) (*model.InspectionReport, error) {
	if !e.IsCompleted() {
		return nil, fmt.Errorf("execution %s: %w", e.ID, ErrNotCompleted)
	}
	report := BuildReport(t, g, e, p, s.rules)
	if err := s.reportRepo.SaveSnapshot(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Info("Report snapshot saved",
		slog.String("execution_id", e.ID),
		slog.Int("non_compliant", len(report.NonCompliant)))
	return report, nil
}

// GetSnapshot returns a stored report
func (s *ReportService) GetSnapshot(ctx context.Context, executionID string) (*model.InspectionReport, error) {
	return s.reportRepo.GetSnapshot(ctx, executionID)
}

// BuildReport renders the active questions of an execution grouped for reading
func BuildReport(t *model.Template, g *checklist.Graph, e *model.Execution, p model.Progress, rules *checklist.RuleEvaluator) *model.InspectionReport {
	report := &model.InspectionReport{
		ExecutionID:     e.ID,
		TemplateID:      t.ID,
		TemplateTitle:   t.Title,
		TemplateVersion: e.TemplateVersion,
		CompletedAt:     reportTime(e),
		Progress:        p,
		Sections:        []model.ReportSection{},
	}
	if len(e.SubExecutions) > 0 {
		report.SubExecutions = make(map[string]string, len(e.SubExecutions))
		for k, v := range e.SubExecutions {
			report.SubExecutions[k] = v
		}
	}

	group := ""
	for _, view := range checklist.Views(g, e) {
		if view.GroupID != group || len(report.Sections) == 0 {
			group = view.GroupID
			report.Sections = append(report.Sections, model.ReportSection{Title: view.GroupTitle})
		}
		item := model.ReportItem{
			QuestionID:   view.ID,
			Text:         view.Text,
			ResponseType: view.ResponseType,
			Required:     view.IsRequired,
		}
		if view.Answer != nil {
			q := view.Question
			ok := checklist.Compliant(&q, *view.Answer, rules)
			item.Answered = true
			item.Display = displayValue(&q, *view.Answer)
			item.MediaRefs = view.Answer.MediaRefs
			item.Compliant = &ok
			if !ok {
				report.NonCompliant = append(report.NonCompliant, view.ID)
			}
		}
		last := &report.Sections[len(report.Sections)-1]
		last.Items = append(last.Items, item)
	}
	return report
}

// displayValue formats an answer the way an inspector entered it
func displayValue(q *model.Question, a model.Answer) string {
	v := a.Value
	switch q.ResponseType {
	case model.ResponseYesNo:
		if v.Bool {
			return "Yes"
		}
		return "No"
	case model.ResponseMultipleChoice:
		for _, o := range q.Options {
			if o.ID == v.OptionID {
				return o.Label
			}
		}
		return v.OptionID
	case model.ResponseNumeric:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case model.ResponseTime:
		return v.Time
	case model.ResponseDate:
		return v.Date
	case model.ResponsePhoto:
		n := len(a.MediaRefs)
		label := fmt.Sprintf("%d photo", n)
		if n != 1 {
			label += "s"
		}
		if v.Text != "" {
			label += ": " + v.Text
		}
		return label
	case model.ResponseSignature:
		return "Signed"
	}
	return strings.TrimSpace(v.Text)
}

// reportTime falls back to the last update when no completion time is recorded
func reportTime(e *model.Execution) time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.UpdatedAt
}
