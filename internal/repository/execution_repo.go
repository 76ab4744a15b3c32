package repository

import (
	"context"
	"errors"
	"fmt"

	"fieldcheck/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStaleExecution is returned by Save when another writer advanced the
// execution since it was read
var ErrStaleExecution = errors.New("execution was modified concurrently")

// ExecutionRepo handles MongoDB operations for inspection executions
type ExecutionRepo interface {
	Create(ctx context.Context, e *model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	// Save replaces the stored execution only if its seq still equals prevSeq
	Save(ctx context.Context, e *model.Execution, prevSeq uint64) error
	ListByTemplate(ctx context.Context, templateID string) ([]*model.Execution, error)
}

type executionRepo struct {
	collection *mongo.Collection
}

// NewExecutionRepo creates a new execution repository
func NewExecutionRepo(db *mongo.Database) ExecutionRepo {
	return &executionRepo{
		collection: db.Collection("executions"),
	}
}

// EnsureExecutionIndexes creates the lookup index used by ListByTemplate
func EnsureExecutionIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("executions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "templateId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("executions index: %w", err)
	}
	return nil
}

func (r *executionRepo) Create(ctx context.Context, e *model.Execution) error {
	_, err := r.collection.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("execution %s: %w", e.ID, ErrDuplicate)
	}
	return err
}

func (r *executionRepo) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	var e model.Execution
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Answers == nil {
		e.Answers = make(map[string]model.Answer)
	}
	return &e, nil
}

func (r *executionRepo) Save(ctx context.Context, e *model.Execution, prevSeq uint64) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": e.ID, "seq": prevSeq}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("execution %s at seq %d: %w", e.ID, prevSeq, ErrStaleExecution)
	}
	return nil
}

func (r *executionRepo) ListByTemplate(ctx context.Context, templateID string) ([]*model.Execution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"templateId": templateID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var executions []*model.Execution
	if err := cursor.All(ctx, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}
