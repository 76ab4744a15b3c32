package repository

import (
	"context"
	"sync"

	"fieldcheck/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportRepo handles MongoDB operations for inspection reports
type ReportRepo interface {
	SaveSnapshot(ctx context.Context, report *model.InspectionReport) error
	GetSnapshot(ctx context.Context, executionID string) (*model.InspectionReport, error)
}

type reportRepo struct {
	snapshots *mongo.Collection
}

// NewReportRepo creates a new report repository
func NewReportRepo(db *mongo.Database) ReportRepo {
	return &reportRepo{
		snapshots: db.Collection("inspection_reports"),
	}
}

func (r *reportRepo) SaveSnapshot(ctx context.Context, report *model.InspectionReport) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.snapshots.ReplaceOne(ctx, bson.M{"executionId": report.ExecutionID}, report, opts)
	return err
}

func (r *reportRepo) GetSnapshot(ctx context.Context, executionID string) (*model.InspectionReport, error) {
	var report model.InspectionReport
	err := r.snapshots.FindOne(ctx, bson.M{"executionId": executionID}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// MemoryReportRepo is an in-process ReportRepo for development and tests
type MemoryReportRepo struct {
	mu      sync.RWMutex
	reports map[string]model.InspectionReport
}

// NewMemoryReportRepo creates an empty in-memory report repository
func NewMemoryReportRepo() *MemoryReportRepo {
	return &MemoryReportRepo{reports: make(map[string]model.InspectionReport)}
}

func (r *MemoryReportRepo) SaveSnapshot(_ context.Context, report *model.InspectionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ExecutionID] = *report
	return nil
}

func (r *MemoryReportRepo) GetSnapshot(_ context.Context, executionID string) (*model.InspectionReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[executionID]
	if !ok {
		return nil, nil
	}
	return &report, nil
}
