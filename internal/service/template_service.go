package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fieldcheck/internal/cache"
	"fieldcheck/internal/checklist"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// TemplateService handles authoring, validation and publication of templates
type TemplateService struct {
	repo    repository.TemplateRepo
	cache   cache.TemplateCache
	rules   *checklist.RuleEvaluator
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	graphs map[string]*checklist.Graph // fingerprint -> graph
}

// NewTemplateService creates a new template service
func NewTemplateService(
	repo repository.TemplateRepo,
	templateCache cache.TemplateCache,
	rules *checklist.RuleEvaluator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TemplateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateService{
		repo:    repo,
		cache:   templateCache,
		rules:   rules,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		graphs:  make(map[string]*checklist.Graph),
	}
}

// Create stores a new draft. Missing template and option ids are generated.
// Drafts may be structurally incomplete; publication is where validity is enforced.
func (s *TemplateService) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	assignOptionIDs(t)
	t.Status = model.TemplateDraft
	t.Version = ""
	t.Fingerprint = ""
	t.PublishedAt = nil

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	s.logger.Info("Template created", slog.String("template_id", t.ID), slog.Int("questions", len(t.Questions)))
	return t, nil
}

// Update replaces the working copy of a template. Published versions are
// immutable and unaffected; the draft keeps the last published version
// number until it is published again.
func (s *TemplateService) Update(ctx context.Context, id string, t *model.Template) (*model.Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ID = id
	assignOptionIDs(t)
	t.Status = model.TemplateDraft
	t.Version = current.Version
	t.Fingerprint = ""
	t.CreatedAt = current.CreatedAt
	t.PublishedAt = current.PublishedAt

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return t, nil
}

// Get returns the working copy of a template
func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("template %s: %w", id, checklist.ErrNotFound)
	}
	return t, nil
}

// List returns summaries of every template
func (s *TemplateService) List(ctx context.Context) ([]*model.TemplateSummary, error) {
	return s.repo.List(ctx)
}

// Validate checks a template's structure, resolving sub-checklist ids
// against stored templates and rejecting chains of sub-checklists that lead
// back to the template itself.
func (s *TemplateService) Validate(ctx context.Context, t *model.Template) (checklist.Result, error) {
	var lookupErr error
	exists := func(id string) bool {
		ok, err := s.repo.Exists(ctx, id)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return ok
	}

	res := checklist.Validate(t, checklist.WithSubChecklistLookup(exists), checklist.WithRules(s.rules))
	if lookupErr != nil {
		return checklist.Result{}, fmt.Errorf("failed to resolve sub-checklists: %w", lookupErr)
	}

	chain, err := s.subChecklistChain(ctx, t)
	if err != nil {
		return checklist.Result{}, err
	}
	if chain != nil {
		res.Violations = append(res.Violations, checklist.Violation{
			EntityID: chain[0],
			Rule:     checklist.RuleSubChecklist,
			Message:  "sub-checklists lead back to this template: " + strings.Join(chain[1:], " -> "),
		})
	}

	s.metrics.ObserveValidation(res.Valid())
	return res, nil
}

// subChecklistChain walks the sub-checklist references reachable from t.
// It returns the question that starts a chain ending at t, followed by the
// template ids along it, or nil.
func (s *TemplateService) subChecklistChain(ctx context.Context, t *model.Template) ([]string, error) {
	seen := map[string]bool{}
	var walk func(templateID string, path []string) ([]string, error)
	walk = func(templateID string, path []string) ([]string, error) {
		path = append(path, templateID)
		if templateID == t.ID {
			return path, nil
		}
		if seen[templateID] {
			return nil, nil
		}
		seen[templateID] = true

		sub, err := s.repo.GetByID(ctx, templateID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sub-checklist %s: %w", templateID, err)
		}
		if sub == nil {
			return nil, nil
		}
		for _, q := range sub.Questions {
			if !q.HasSubChecklist || q.SubChecklistID == "" {
				continue
			}
			found, err := walk(q.SubChecklistID, path)
			if found != nil || err != nil {
				return found, err
			}
		}
		return nil, nil
	}

	for _, q := range t.Questions {
		if !q.HasSubChecklist || q.SubChecklistID == "" || q.SubChecklistID == t.ID {
			continue
		}
		found, err := walk(q.SubChecklistID, []string{t.ID})
		if err != nil {
			return nil, err
		}
		if found != nil {
			return append([]string{q.ID}, found...), nil
		}
	}
	return nil, nil
}

// Publish freezes the working copy as a new immutable version. Publishing
// unchanged content returns the latest version instead of minting another.
func (s *TemplateService) Publish(ctx context.Context, id string) (*model.Template, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.Validate(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	g, err := s.graph(draft)
	if err != nil {
		return nil, err
	}

	latest, err := s.repo.LatestPublished(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}
	if latest != nil && latest.Fingerprint == g.Fingerprint() {
		return latest, nil
	}

	var current string
	if latest != nil {
		current = latest.Version
	}
	version, err := NextVersion(current)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snapshot := draft.Clone()
	snapshot.Version = version
	snapshot.Status = model.TemplatePublished
	snapshot.Fingerprint = g.Fingerprint()
	snapshot.PublishedAt = &now
	snapshot.UpdatedAt = now

	if err := s.repo.SaveVersion(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	draft.Version = version
	draft.Status = model.TemplatePublished
	draft.Fingerprint = snapshot.Fingerprint
	draft.PublishedAt = &now
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshot); err != nil {
			s.logger.Warn("Failed to cache template", slog.String("template_id", id), slog.Any("error", err))
		}
		if err := s.cache.SetLatest(ctx, id, version); err != nil {
			s.logger.Warn("Failed to cache latest version", slog.String("template_id", id), slog.Any("error", err))
		}
	}

	s.logger.Info("Template published",
		slog.String("template_id", id),
		slog.String("version", version),
		slog.String("fingerprint", snapshot.Fingerprint))
	return snapshot, nil
}

// Versions lists the published versions of a template in semver order
func (s *TemplateService) Versions(ctx context.Context, id string) ([]string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

// Published returns a published version; an empty version means the latest
func (s *TemplateService) Published(ctx context.Context, id, version string) (*model.Template, error) {
	if version == "" && s.cache != nil {
		v, err := s.cache.GetLatest(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to read latest version cache", slog.String("template_id", id), slog.Any("error", err))
		} else {
			version = v
		}
	}
	if version != "" && s.cache != nil {
		t, err := s.cache.Get(ctx, id, version)
		if err != nil {
			s.logger.Warn("Failed to read template cache",
				slog.String("template_id", id),
				slog.String("version", version),
				slog.Any("error", err))
		}
		if t != nil {
			return t, nil
		}
	}

	var (
		t   *model.Template
		err error
	)
	if version == "" {
		t, err = s.repo.LatestPublished(ctx, id)
	} else {
		t, err = s.repo.GetVersion(ctx, id, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template version: %w", err)
	}
	if t == nil {
		if version == "" {
			exists, err := s.repo.Exists(ctx, id)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("template %s: %w", id, checklist.ErrNotPublished)
			}
		}
		return nil, fmt.Errorf("template %s version %q: %w", id, version, checklist.ErrNotFound)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, t); err != nil {
			s.logger.Warn("Failed to cache template", slog.String("template_id", id), slog.Any("error", err))
		}
	}
	return t, nil
}

// Graph returns the conditional graph of a published template version
func (s *TemplateService) Graph(t *model.Template) (*checklist.Graph, error) {
	return s.graph(t)
}

func (s *TemplateService) graph(t *model.Template) (*checklist.Graph, error) {
	fp := t.Fingerprint
	if fp == "" {
		var err error
		if fp, err = checklist.Fingerprint(t); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	g, ok := s.graphs[fp]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	g, err := checklist.Build(t)
	if err != nil {
		return nil, err
	}
	if t.Fingerprint != "" && t.Fingerprint != g.Fingerprint() {
		return nil, fmt.Errorf("template %s version %s: stored fingerprint does not match content: %w",
			t.ID, t.Version, checklist.ErrTemplateMismatch)
	}

	s.mu.Lock()
	s.graphs[g.Fingerprint()] = g
	s.mu.Unlock()
	return g, nil
}

// NextVersion bumps the minor version; the first publication is 0.1.0
func NextVersion(current string) (string, error) {
	if current == "" {
		return "0.1.0", nil
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", current, err)
	}
	return v.IncMinor().String(), nil
}

// assignOptionIDs gives every multiple-choice option without an id a stable one
func assignOptionIDs(t *model.Template) {
	for i := range t.Questions {
		for j := range t.Questions[i].Options {
			if t.Questions[i].Options[j].ID == "" {
				t.Questions[i].Options[j].ID = "opt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
			}
		}
	}
}

// IsNotFound reports whether err means a missing template or execution
func IsNotFound(err error) bool {
	return errors.Is(err, checklist.ErrNotFound)
}
