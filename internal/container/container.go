// Package container wires configuration, logging and persistence for the
// command entrypoints.
package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"variatio/adapters/postgres"
	"variatio/app"
	"variatio/internal/config"
	"variatio/internal/errors"
	"variatio/internal/logger"
	"variatio/internal/migration"
	"variatio/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure; nil when no database is configured
	DB         *sqlx.DB
	MetricRepo ports.MetricRepository
}

// New creates a container with a logger built from cfg
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log, err := logger.New(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}

	return &Container{Config: cfg, Logger: log}, nil
}

// InitDatabase connects to PostgreSQL, runs migrations and builds the
// repositories. It is a no-op without DATABASE_URL.
func (c *Container) InitDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Logger.Info("no DATABASE_URL configured, results will not be persisted")
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("database connection test failed", err)
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	c.MetricRepo = postgres.NewMetricRepository(db)
	c.Logger.Info("database ready", zap.String("schema_version", migrator.Version()))
	return nil
}

// SessionOptions returns the session options the configured analysis
// defaults imply
func (c *Container) SessionOptions() []app.Option {
	a := c.Config.Analysis
	return []app.Option{
		app.WithMode(a.Mode),
		app.WithCorrection(a.Correction),
		app.WithAdjusterOptions(a.AdjusterOptions()),
		app.WithParallelism(a.Parallelism),
		app.WithLogger(c.Logger),
	}
}

// Shutdown flushes the logger and closes the database
func (c *Container) Shutdown() error {
	_ = c.Logger.Sync()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
