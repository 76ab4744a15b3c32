package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fieldcheck/internal/model"

	"github.com/Masterminds/semver/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when an id or version is already stored
var ErrDuplicate = errors.New("already exists")

// TemplateRepo handles MongoDB operations for templates. The working copy
// of each template lives in "templates"; every published version is frozen
// as its own document in "template_versions".
type TemplateRepo interface {
	Create(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id string) (*model.Template, error)
	Update(ctx context.Context, t *model.Template) error
	List(ctx context.Context) ([]*model.TemplateSummary, error)
	Exists(ctx context.Context, id string) (bool, error)

	SaveVersion(ctx context.Context, t *model.Template) error
	GetVersion(ctx context.Context, id, version string) (*model.Template, error)
	ListVersions(ctx context.Context, id string) ([]string, error)
	LatestPublished(ctx context.Context, id string) (*model.Template, error)
}

type templateRepo struct {
	drafts   *mongo.Collection
	versions *mongo.Collection
}

// NewTemplateRepo creates a new template repository
func NewTemplateRepo(db *mongo.Database) TemplateRepo {
	return &templateRepo{
		drafts:   db.Collection("templates"),
		versions: db.Collection("template_versions"),
	}
}

// EnsureTemplateIndexes creates the unique keys the repository relies on
func EnsureTemplateIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("templates").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "templateId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("templates index: %w", err)
	}
	_, err = db.Collection("template_versions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "templateId", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("template_versions index: %w", err)
	}
	return nil
}

func (r *templateRepo) Create(ctx context.Context, t *model.Template) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.drafts.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("template %s: %w", t.ID, ErrDuplicate)
	}
	return err
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*model.Template, error) {
	var t model.Template
	err := r.drafts.FindOne(ctx, bson.M{"templateId": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepo) Update(ctx context.Context, t *model.Template) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := r.drafts.ReplaceOne(ctx, bson.M{"templateId": t.ID}, t)
	return err
}

func (r *templateRepo) List(ctx context.Context) ([]*model.TemplateSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})
	cursor, err := r.drafts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*model.Template
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	summaries := make([]*model.TemplateSummary, 0, len(templates))
	for _, t := range templates {
		summaries = append(summaries, &model.TemplateSummary{
			ID:        t.ID,
			Title:     t.Title,
			Version:   t.Version,
			Status:    t.Status,
			Questions: len(t.Questions),
			UpdatedAt: t.UpdatedAt,
		})
	}
	return summaries, nil
}

func (r *templateRepo) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.drafts.CountDocuments(ctx, bson.M{"templateId": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *templateRepo) SaveVersion(ctx context.Context, t *model.Template) error {
	_, err := r.versions.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("template %s version %s: %w", t.ID, t.Version, ErrDuplicate)
	}
	return err
}

func (r *templateRepo) GetVersion(ctx context.Context, id, version string) (*model.Template, error) {
	var t model.Template
	err := r.versions.FindOne(ctx, bson.M{"templateId": id, "version": version}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepo) ListVersions(ctx context.Context, id string) ([]string, error) {
	raw, err := r.versions.Distinct(ctx, "version", bson.M{"templateId": id})
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			versions = append(versions, s)
		}
	}
	return SortVersions(versions), nil
}

func (r *templateRepo) LatestPublished(ctx context.Context, id string) (*model.Template, error) {
	versions, err := r.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return r.GetVersion(ctx, id, versions[len(versions)-1])
}

// SortVersions orders versions by semver ascending. Strings that do not
// parse sort first, lexically.
func SortVersions(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := semver.NewVersion(out[i])
		b, errB := semver.NewVersion(out[j])
		switch {
		case errA != nil && errB != nil:
			return out[i] < out[j]
		case errA != nil:
			return true
		case errB != nil:
			return false
		}
		return a.LessThan(b)
	})
	return out
}
