// Package app wires storage, caches and services from configuration
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldcheck/internal/cache"
	"fieldcheck/internal/checklist"
	"fieldcheck/internal/config"
	"fieldcheck/internal/evidence"
	"fieldcheck/internal/metrics"
	"fieldcheck/internal/repository"
	"fieldcheck/internal/service"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type App struct {
	TemplateRepo  repository.TemplateRepo
	ExecutionRepo repository.ExecutionRepo
	ReportRepo    repository.ReportRepo
	Evidence      evidence.Store
	Metrics       *metrics.Metrics

	Templates   *service.TemplateService
	Inspections *service.InspectionService
	Reports     *service.ReportService

	mongo *mongo.Client
	redis *redis.Client
}

// New connects to MongoDB and Redis and builds the services
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Metrics: metrics.New()}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	a.mongo = mongoClient

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info("Connected to MongoDB", slog.String("database", cfg.MongoDB))

	db := mongoClient.Database(cfg.MongoDB)
	if err := repository.EnsureTemplateIndexes(ctx, db); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := repository.EnsureExecutionIndexes(ctx, db); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.TemplateRepo = repository.NewTemplateRepo(db)
	a.ExecutionRepo = repository.NewExecutionRepo(db)
	a.ReportRepo = repository.NewReportRepo(db)

	a.redis = redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := a.redis.Ping(ctx).Result(); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	logger.Info("Connected to Redis", slog.String("addr", cfg.RedisAddr))

	if cfg.Evidence.Bucket != "" {
		store, err := evidence.NewS3Store(ctx, evidence.S3Config{
			Bucket:   cfg.Evidence.Bucket,
			Region:   cfg.Evidence.Region,
			Endpoint: cfg.Evidence.Endpoint,
			Prefix:   cfg.Evidence.Prefix,
		})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Evidence = store
		logger.Info("Evidence stored in S3", slog.String("bucket", cfg.Evidence.Bucket))
	} else {
		a.Evidence = evidence.NewMemoryStore()
		logger.Warn("EVIDENCE_BUCKET not set, evidence is kept in memory")
	}

	rules, err := checklist.NewRuleEvaluator()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	templateCache := cache.NewTemplateCache(a.redis, cfg.TemplateCacheTTL)
	executionCache := cache.NewExecutionCache(a.redis, cfg.ExecutionCacheTTL)

	a.Templates = service.NewTemplateService(a.TemplateRepo, templateCache, rules, a.Metrics, logger)
	a.Inspections = service.NewInspectionService(a.Templates, a.ExecutionRepo, executionCache, a.Evidence, rules, a.Metrics, logger)
	a.Reports = service.NewReportService(a.ReportRepo, rules, logger)
	a.Inspections.SetReportService(a.Reports)
	return a, nil
}

// Close releases the database connections
func (a *App) Close(ctx context.Context) {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.mongo != nil {
		a.mongo.Disconnect(ctx)
	}
}
