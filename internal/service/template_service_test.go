package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"fieldcheck/internal/checklist"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/model"
	"fieldcheck/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVersion(t *testing.T) {
	for current, want := range map[string]string{
		"":       "0.1.0",
		"0.1.0":  "0.2.0",
		"1.9.3":  "1.10.0",
		"v2.0.0": "2.1.0",
	} {
		got, err := NextVersion(current)
		require.NoError(t, err, current)
		assert.Equal(t, want, got, current)
	}

	_, err := NextVersion("not-a-version")
	assert.Error(t, err)
}

func TestTemplateService_CreateAssignsIDs(t *testing.T) {
	f := newFixture(t)
	tpl := &model.Template{
		Title:  "Kitchen",
		Groups: []model.Group{{ID: "g", Title: "G", Order: 1, QuestionIDs: []string{"k1"}}},
		Questions: []model.Question{
			{ID: "k1", Text: "Fridge temperature band", ResponseType: model.ResponseMultipleChoice, Order: 1, GroupID: "g",
				Options: []model.Option{{Label: "Cold"}, {ID: "opt_warm", Label: "Warm"}}},
		},
	}

	created, err := f.templates.Create(context.Background(), tpl)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.TemplateDraft, created.Status)
	assert.True(t, strings.HasPrefix(created.Questions[0].Options[0].ID, "opt_"))
	assert.Equal(t, "opt_warm", created.Questions[0].Options[1].ID)
}

func TestTemplateService_PublishBumpsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1 := f.publish(t, safetyDraft())
	assert.Equal(t, "0.1.0", v1.Version)
	assert.Equal(t, model.TemplatePublished, v1.Status)
	assert.True(t, strings.HasPrefix(v1.Fingerprint, "sha256:"))
	require.NotNil(t, v1.PublishedAt)

	// unchanged content is not republished
	again, err := f.templates.Publish(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", again.Version)

	edited := safetyDraft()
	edited.Questions[1].Text = "Which walkway is blocked?"
	_, err = f.templates.Update(ctx, v1.ID, edited)
	require.NoError(t, err)

	v2, err := f.templates.Publish(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", v2.Version)
	assert.NotEqual(t, v1.Fingerprint, v2.Fingerprint)

	versions, err := f.templates.Versions(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.1.0", "0.2.0"}, versions)

	// the first snapshot is untouched by the edit
	old, err := f.templates.Published(ctx, v1.ID, "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "Which walkway?", old.Questions[1].Text)

	latest, err := f.templates.Published(ctx, v1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", latest.Version)
}

func TestTemplateService_PublishRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := safetyDraft()
	draft.Questions[0].ParentID = "q2"
	draft.Questions[0].ConditionValue = "anything"
	_, err := f.templates.Create(ctx, draft)
	require.NoError(t, err, "drafts may be saved invalid")

	_, err = f.templates.Publish(ctx, draft.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, checklist.ErrStructuralViolation)

	_, err = f.templates.Published(ctx, draft.ID, "")
	assert.ErrorIs(t, err, checklist.ErrNotPublished)
}

func TestTemplateService_PublishedMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.templates.Published(context.Background(), "nope", "")
	assert.ErrorIs(t, err, checklist.ErrNotFound)

	f.publish(t, safetyDraft())
	_, err = f.templates.Published(context.Background(), "tpl-safety", "9.9.9")
	assert.ErrorIs(t, err, checklist.ErrNotFound)
}

func TestTemplateService_ValidateSubChecklists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.templates.Validate(ctx, vehicleDraft())
	require.NoError(t, err)
	require.False(t, res.Valid(), "unknown sub-checklist")
	assert.Equal(t, checklist.RuleSubChecklist, res.Violations[0].Rule)

	f.publish(t, safetyDraft())
	res, err = f.templates.Validate(ctx, vehicleDraft())
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
}

func TestTemplateService_ValidateCrossTemplateCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, safetyDraft())
	f.publish(t, vehicleDraft())

	// safety -> vehicle -> safety
	looped := safetyDraft()
	looped.Questions[0].HasSubChecklist = true
	looped.Questions[0].SubChecklistID = "tpl-vehicle"

	res, err := f.templates.Validate(ctx, looped)
	require.NoError(t, err)
	require.False(t, res.Valid())
	v := res.Violations[len(res.Violations)-1]
	assert.Equal(t, "q1", v.EntityID)
	assert.Contains(t, v.Message, "tpl-vehicle -> tpl-safety")
}

func TestTemplateService_GraphCachedByFingerprint(t *testing.T) {
	f := newFixture(t)
	published := f.publish(t, safetyDraft())

	g1, err := f.templates.Graph(published)
	require.NoError(t, err)
	g2, err := f.templates.Graph(published.Clone())
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	tampered := published.Clone()
	tampered.Questions[0].Text = "changed"
	tampered.Fingerprint = "sha256:stale"
	_, err = f.templates.Graph(tampered)
	assert.ErrorIs(t, err, checklist.ErrTemplateMismatch)
}

func TestTemplateService_UpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.templates.Update(context.Background(), "nope", safetyDraft())
	assert.True(t, IsNotFound(err))
}

// brokenTemplateCache fails every call, like an unreachable Redis
type brokenTemplateCache struct{}

var errCacheDown = errors.New("cache unavailable")

func (brokenTemplateCache) Set(context.Context, *model.Template) error { return errCacheDown }
func (brokenTemplateCache) Get(context.Context, string, string) (*model.Template, error) {
	return nil, errCacheDown
}
func (brokenTemplateCache) SetLatest(context.Context, string, string) error { return errCacheDown }
func (brokenTemplateCache) GetLatest(context.Context, string) (string, error) {
	return "", errCacheDown
}

func TestTemplateService_PublishedLogsCacheErrors(t *testing.T) {
	ctx := context.Background()
	rules, err := checklist.NewRuleEvaluator()
	require.NoError(t, err)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	svc := NewTemplateService(repository.NewMemoryTemplateRepo(), brokenTemplateCache{}, rules, metrics.New(), logger)

	_, err = svc.Create(ctx, safetyDraft())
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "tpl-safety")
	require.NoError(t, err)

	latest, err := svc.Published(ctx, "tpl-safety", "")
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", latest.Version)
	assert.Contains(t, logs.String(), "Failed to read latest version cache")

	pinned, err := svc.Published(ctx, "tpl-safety", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", pinned.Version)
	assert.Contains(t, logs.String(), "Failed to read template cache")
	assert.Contains(t, logs.String(), "cache unavailable")
}
