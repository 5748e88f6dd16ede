package database

import (
	"context"
	"fmt"
	"log/slog"

	sloggorm "github.com/orandin/slog-gorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/mitesh006/Code-duel-backend/internal/config"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/database")

// Opens the configured postgres with slog query logging, a sized pool and otel tracing
func Open(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	_, span := tracer.Start(ctx, "database.Open")
	defer span.End()

	opts := []sloggorm.Option{
		sloggorm.WithHandler(logger.Handler),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	}
	if cfg.Logging.Gorm.TraceQueries {
		opts = append(opts, sloggorm.WithTraceAll())
	}

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sloggorm.New(opts...), TranslateError: true},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire underlying database connection")
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	if err := db.Use(gormtracing.NewPlugin()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add otel plugin to gorm")
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "opened database")
	return db, nil
}
