package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fieldcheck/internal/cache"
	"fieldcheck/internal/checklist"
	"fieldcheck/internal/evidence"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"

	"github.com/google/uuid"
)

// maxSubChecklistDepth bounds recursive progress of nested sub-checklists
const maxSubChecklistDepth = 8

// InspectionService runs executions of published templates
type InspectionService struct {
	templates   *TemplateService
	repo        repository.ExecutionRepo
	cache       cache.ExecutionCache
	evidence    evidence.Store
	rules       *checklist.RuleEvaluator
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	reports     *ReportService
	logger      *slog.Logger
	locks       *keyedMutex
	now         func() time.Time
}

// NewInspectionService creates a new inspection service
func NewInspectionService(
	templates *TemplateService,
	repo repository.ExecutionRepo,
	executionCache cache.ExecutionCache,
	store evidence.Store,
	rules *checklist.RuleEvaluator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *InspectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectionService{
		templates: templates,
		repo:      repo,
		cache:     executionCache,
		evidence:  store,
		rules:     rules,
		metrics:   m,
		logger:    logger,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcaster sets the WebSocket broadcaster
func (s *InspectionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetReportService enables report snapshots on completion
func (s *InspectionService) SetReportService(r *ReportService) {
	s.reports = r
}

// Start creates an execution bound to a published template version; an
// empty version means the latest
func (s *InspectionService) Start(ctx context.Context, templateID, version string) (*model.Execution, error) {
	t, err := s.templates.Published(ctx, templateID, version)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, t, "", "")
}

func (s *InspectionService) start(ctx context.Context, t *model.Template, parentID, parentQuestionID string) (*model.Execution, error) {
	g, err := s.templates.Graph(t)
	if err != nil {
		return nil, err
	}
	e, err := checklist.NewExecution(uuid.NewString(), t, g, s.now())
	if err != nil {
		return nil, err
	}
	e.ParentExecutionID = parentID
	e.ParentQuestionID = parentQuestionID

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	s.cacheExecution(ctx, e)

	s.logger.Info("Inspection started",
		slog.String("execution_id", e.ID),
		slog.String("template_id", t.ID),
		slog.String("version", t.Version))
	return e, nil
}

// Get returns an execution, preferring the cache
func (s *InspectionService) Get(ctx context.Context, id string) (*model.Execution, error) {
	if s.cache != nil {
		e, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to read execution cache", slog.String("execution_id", id), slog.Any("error", err))
		}
		if e != nil {
			return e, nil
		}
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("execution %s: %w", id, checklist.ErrNotFound)
	}
	s.cacheExecution(ctx, e)
	return e, nil
}

// load returns an execution with its bound template and graph
func (s *InspectionService) load(ctx context.Context, id string) (*model.Execution, *model.Template, *checklist.Graph, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := s.templates.Published(ctx, e.TemplateID, e.TemplateVersion)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := s.templates.Graph(t)
	if err != nil {
		return nil, nil, nil, err
	}
	if g.Fingerprint() != e.Fingerprint {
		return nil, nil, nil, fmt.Errorf("execution %s: %w", id, checklist.ErrTemplateMismatch)
	}
	return e, t, g, nil
}

// Submit records one answer. Evidence references must already be stored.
func (s *InspectionService) Submit(ctx context.Context, id string, req model.SubmitAnswerRequest) (*model.SubmitAnswerResponse, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	resp, err := s.submit(ctx, id, req)
	s.metrics.ObserveSubmission(err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *InspectionService) submit(ctx context.Context, id string, req model.SubmitAnswerRequest) (*model.SubmitAnswerResponse, error) {
	e, t, g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, tr, err := checklist.Submit(t, g, e, checklist.Submission{
		QuestionID: req.QuestionID,
		Value:      req.Value,
		MediaRefs:  req.MediaRefs,
		AnsweredBy: req.AnsweredBy,
	}, s.now())
	if err != nil {
		return nil, err
	}
	if err := checkRefs(req.QuestionID, next.Answers[req.QuestionID].MediaRefs); err != nil {
		return nil, err
	}
	if err := s.save(ctx, next, e.Seq); err != nil {
		return nil, err
	}

	progress := s.progress(ctx, g, next, 0)
	resp := &model.SubmitAnswerResponse{
		Answer:               next.Answers[req.QuestionID],
		Progress:             progress,
		Activated:            tr.Activated,
		Deactivated:          tr.Deactivated,
		SubChecklistUnlocked: tr.SubChecklistUnlocked,
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToInspection(id, MsgProgressUpdate, progress)
		s.broadcaster.BroadcastToInspection(id, MsgQuestionState, QuestionStatePayload{
			QuestionID:           req.QuestionID,
			Activated:            tr.Activated,
			Deactivated:          tr.Deactivated,
			SubChecklistUnlocked: tr.SubChecklistUnlocked,
		})
	}
	s.notifyParent(ctx, next)
	return resp, nil
}

// checkRefs rejects malformed references. Whether the media has been
// uploaded yet is not checked: captures may reach the store later.
func checkRefs(questionID string, refs []string) error {
	for _, ref := range refs {
		if _, err := evidence.ParseRef(ref); err != nil {
			return &checklist.AnswerError{QuestionID: questionID, Err: evidence.ErrInvalidRef, Detail: ref}
		}
	}
	return nil
}

// save writes next if the stored copy still has prevSeq, then refreshes the cache
func (s *InspectionService) save(ctx context.Context, next *model.Execution, prevSeq uint64) error {
	if err := s.repo.Save(ctx, next, prevSeq); err != nil {
		if errors.Is(err, repository.ErrStaleExecution) && s.cache != nil {
			if derr := s.cache.Delete(ctx, next.ID); derr != nil {
				s.logger.Warn("Failed to drop stale execution", slog.String("execution_id", next.ID), slog.Any("error", derr))
			}
		}
		return fmt.Errorf("failed to save execution: %w", err)
	}
	s.cacheExecution(ctx, next)
	return nil
}

func (s *InspectionService) cacheExecution(ctx context.Context, e *model.Execution) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, e); err != nil {
		s.logger.Warn("Failed to cache execution", slog.String("execution_id", e.ID), slog.Any("error", err))
	}
}

// notifyParent pushes refreshed progress to watchers of the parent inspection
func (s *InspectionService) notifyParent(ctx context.Context, child *model.Execution) {
	if s.broadcaster == nil || child.ParentExecutionID == "" {
		return
	}
	p, err := s.Progress(ctx, child.ParentExecutionID)
	if err != nil {
		s.logger.Warn("Failed to refresh parent progress",
			slog.String("execution_id", child.ParentExecutionID),
			slog.Any("error", err))
		return
	}
	s.broadcaster.BroadcastToInspection(child.ParentExecutionID, MsgProgressUpdate, p)
}

// Progress computes completion and compliance, including linked sub-checklists
func (s *InspectionService) Progress(ctx context.Context, id string) (model.Progress, error) {
	e, _, g, err := s.load(ctx, id)
	if err != nil {
		return model.Progress{}, err
	}
	return s.progress(ctx, g, e, 0), nil
}

func (s *InspectionService) progress(ctx context.Context, g *checklist.Graph, e *model.Execution, depth int) model.Progress {
	opts := []checklist.ProgressOption{checklist.WithRuleEvaluator(s.rules)}
	if len(e.SubExecutions) > 0 && depth < maxSubChecklistDepth {
		sub := make(map[string]model.Progress, len(e.SubExecutions))
		for questionID, childID := range e.SubExecutions {
			child, _, cg, err := s.load(ctx, childID)
			if err != nil {
				// an unreadable sub-checklist counts as not finished
				s.logger.Warn("Failed to load sub-checklist",
					slog.String("execution_id", childID),
					slog.Any("error", err))
				continue
			}
			sub[questionID] = s.progress(ctx, cg, child, depth+1)
		}
		opts = append(opts, checklist.WithSubProgress(sub))
	}
	return checklist.ComputeProgress(g, e, opts...)
}

// Questions returns the active questions in display order with their answers
func (s *InspectionService) Questions(ctx context.Context, id string) ([]model.QuestionView, error) {
	e, _, g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return checklist.Views(g, e), nil
}

// SubChecklists lists the sub-checklists reachable in an execution
func (s *InspectionService) SubChecklists(ctx context.Context, id string) ([]checklist.SubChecklistLink, error) {
	e, _, g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return checklist.UnlockedSubChecklists(g, e), nil
}

// StartSubChecklist creates the execution of an unlocked sub-checklist and
// links it to the question. Starting it again returns the linked execution.
func (s *InspectionService) StartSubChecklist(ctx context.Context, id, questionID string) (*model.Execution, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, _, g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if childID, ok := e.SubExecutions[questionID]; ok {
		return s.Get(ctx, childID)
	}

	// validate before creating anything
	if _, err := checklist.LinkSubExecution(g, e, questionID, "pending", s.now()); err != nil {
		return nil, err
	}
	q := g.Question(questionID)
	sub, err := s.templates.Published(ctx, q.SubChecklistID, "")
	if err != nil {
		return nil, err
	}
	// a child left unlinked by an earlier failed save is reused
	child, err := s.unlinkedChild(ctx, sub.ID, e.ID, questionID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		child, err = s.start(ctx, sub, e.ID, questionID)
		if err != nil {
			return nil, err
		}
	}

	next, err := checklist.LinkSubExecution(g, e, questionID, child.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, next, e.Seq); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToInspection(id, MsgSubChecklistStarted, checklist.SubChecklistLink{
			QuestionID:  questionID,
			TemplateID:  sub.ID,
			ExecutionID: child.ID,
			Required:    q.IsRequired,
		})
	}
	return child, nil
}

func (s *InspectionService) unlinkedChild(ctx context.Context, templateID, parentID, questionID string) (*model.Execution, error) {
	list, err := s.repo.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	for _, e := range list {
		if e.ParentExecutionID == parentID && e.ParentQuestionID == questionID {
			return e, nil
		}
	}
	return nil, nil
}

// Complete moves an execution to its terminal status and returns its final progress
func (s *InspectionService) Complete(ctx context.Context, id string) (*model.Execution, model.Progress, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, t, g, err := s.load(ctx, id)
	if err != nil {
		return nil, model.Progress{}, err
	}
	next, err := checklist.Complete(e, s.now())
	if err != nil {
		return nil, model.Progress{}, err
	}
	if err := s.save(ctx, next, e.Seq); err != nil {
		return nil, model.Progress{}, err
	}

	p := s.progress(ctx, g, next, 0)
	s.metrics.ObserveCompletion(p.CompliancePct)
	s.logger.Info("Inspection completed",
		slog.String("execution_id", id),
		slog.Float64("completion_pct", p.CompletionPct),
		slog.Float64("compliance_pct", p.CompliancePct))

	if s.reports != nil {
		// the execution is already completed; Report rebuilds a missing snapshot
		if _, err := s.reports.CreateSnapshot(ctx, t, g, next, p); err != nil {
			s.logger.Warn("Failed to save report snapshot", slog.String("execution_id", id), slog.Any("error", err))
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToInspection(id, MsgInspectionCompleted, p)
		s.broadcaster.DisconnectInspection(id)
	}
	s.notifyParent(ctx, next)
	return next, p, nil
}

// Report returns the frozen report of a completed execution
func (s *InspectionService) Report(ctx context.Context, id string) (*model.InspectionReport, error) {
	if s.reports == nil {
		return nil, errors.New("reports are not configured")
	}
	report, err := s.reports.GetSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if report != nil {
		return report, nil
	}

	e, t, g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsCompleted() {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotCompleted)
	}
	return s.reports.CreateSnapshot(ctx, t, g, e, s.progress(ctx, g, e, 0))
}

// ListByTemplate returns every execution of a template, oldest first
func (s *InspectionService) ListByTemplate(ctx context.Context, templateID string) ([]*model.Execution, error) {
	if _, err := s.templates.Get(ctx, templateID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	if list == nil {
		list = []*model.Execution{}
	}
	return list, nil
}

// UploadEvidence stores media and returns its reference
func (s *InspectionService) UploadEvidence(ctx context.Context, data []byte, contentType string) (string, error) {
	if s.evidence == nil {
		return "", errors.New("evidence storage is not configured")
	}
	ref, err := s.evidence.Put(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store evidence: %w", err)
	}
	s.logger.Debug("Evidence stored", slog.String("ref", ref), slog.Int("bytes", len(data)))
	return ref, nil
}
