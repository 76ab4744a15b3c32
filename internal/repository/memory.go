package repository

import (
	"context"
	"sort"
	"sync"

	"fieldcheck/internal/model"
)

// MemoryTemplateRepo is an in-process TemplateRepo for development and tests.
// Stored values are copied on the way in and out.
type MemoryTemplateRepo struct {
	mu       sync.RWMutex
	drafts   map[string]*model.Template
	versions map[string]map[string]*model.Template
}

// NewMemoryTemplateRepo creates an empty in-memory template repository
func NewMemoryTemplateRepo() *MemoryTemplateRepo {
	return &MemoryTemplateRepo{
		drafts:   make(map[string]*model.Template),
		versions: make(map[string]map[string]*model.Template),
	}
}

func (r *MemoryTemplateRepo) Create(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[t.ID]; ok {
		return ErrDuplicate
	}
	r.drafts[t.ID] = t.Clone()
	return nil
}

func (r *MemoryTemplateRepo) GetByID(_ context.Context, id string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.drafts[id].Clone(), nil
}

func (r *MemoryTemplateRepo) Update(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[t.ID] = t.Clone()
	return nil
}

func (r *MemoryTemplateRepo) List(_ context.Context) ([]*model.TemplateSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.TemplateSummary, 0, len(r.drafts))
	for _, t := range r.drafts {
		out = append(out, &model.TemplateSummary{
			ID:        t.ID,
			Title:     t.Title,
			Version:   t.Version,
			Status:    t.Status,
			Questions: len(t.Questions),
			UpdatedAt: t.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryTemplateRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.drafts[id]
	return ok, nil
}

func (r *MemoryTemplateRepo) SaveVersion(_ context.Context, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.versions[t.ID] == nil {
		r.versions[t.ID] = make(map[string]*model.Template)
	}
	if _, ok := r.versions[t.ID][t.Version]; ok {
		return ErrDuplicate
	}
	r.versions[t.ID][t.Version] = t.Clone()
	return nil
}

func (r *MemoryTemplateRepo) GetVersion(_ context.Context, id, version string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[id][version].Clone(), nil
}

func (r *MemoryTemplateRepo) ListVersions(_ context.Context, id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := make([]string, 0, len(r.versions[id]))
	for v := range r.versions[id] {
		versions = append(versions, v)
	}
	return SortVersions(versions), nil
}

func (r *MemoryTemplateRepo) LatestPublished(ctx context.Context, id string) (*model.Template, error) {
	versions, err := r.ListVersions(ctx, id)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return r.GetVersion(ctx, id, versions[len(versions)-1])
}

// MemoryExecutionRepo is an in-process ExecutionRepo with the same seq guard
// as the MongoDB implementation
type MemoryExecutionRepo struct {
	mu    sync.RWMutex
	execs map[string]*model.Execution
}

// NewMemoryExecutionRepo creates an empty in-memory execution repository
func NewMemoryExecutionRepo() *MemoryExecutionRepo {
	return &MemoryExecutionRepo{execs: make(map[string]*model.Execution)}
}

func (r *MemoryExecutionRepo) Create(_ context.Context, e *model.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.execs[e.ID]; ok {
		return ErrDuplicate
	}
	r.execs[e.ID] = e.Clone()
	return nil
}

func (r *MemoryExecutionRepo) GetByID(_ context.Context, id string) (*model.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.execs[id].Clone(), nil
}

func (r *MemoryExecutionRepo) Save(_ context.Context, e *model.Execution, prevSeq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.execs[e.ID]
	if !ok || cur.Seq != prevSeq {
		return ErrStaleExecution
	}
	r.execs[e.ID] = e.Clone()
	return nil
}

func (r *MemoryExecutionRepo) ListByTemplate(_ context.Context, templateID string) ([]*model.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Execution
	for _, e := range r.execs {
		if e.TemplateID == templateID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
