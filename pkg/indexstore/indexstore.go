package indexstore

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/querybench/querybench/pkg/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store provides persistence for the indexed run summaries.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, configKey, runID string) (*Run, error)
	ListRuns(ctx context.Context, configKey string) ([]Run, error)
	ListRunIDs(ctx context.Context, configKey string) ([]string, error)
	ListConfigKeys(ctx context.Context) ([]string, error)
	ListRunsByEngine(ctx context.Context, engine string) ([]Run, error)
	ListAllRuns(ctx context.Context) ([]Run, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new index Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "indexstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.DSN)
	case "postgres":
		dialector = postgres.Open(s.cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("running index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Index database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertRun inserts or updates a run record keyed by config_key + run_id.
func (s *store) UpsertRun(ctx context.Context, run *Run) error {
	result := s.db.WithContext(ctx).
		Where("config_key = ? AND run_id = ?",
			run.ConfigKey, run.RunID).
		Assign(run).
		FirstOrCreate(run)
	if result.Error != nil {
		return fmt.Errorf("upserting run: %w", result.Error)
	}

	return nil
}

// GetRun returns one indexed run, or nil when it has not been indexed.
func (s *store) GetRun(
	ctx context.Context, configKey, runID string,
) (*Run, error) {
	var run Run

	err := s.db.WithContext(ctx).
		Where("config_key = ? AND run_id = ?", configKey, runID).
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}

		return nil, fmt.Errorf("getting run: %w", err)
	}

	return &run, nil
}

// ListRuns returns all runs for a config key, newest first.
func (s *store) ListRuns(
	ctx context.Context, configKey string,
) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Where("config_key = ?", configKey).
		Order("run_id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// ListAllRuns returns all runs across all config keys, newest first.
func (s *store) ListAllRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Order("run_id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing all runs: %w", err)
	}

	return runs, nil
}

// ListRunIDs returns just the run IDs for a config key, newest first.
func (s *store) ListRunIDs(
	ctx context.Context, configKey string,
) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Where("config_key = ?", configKey).
		Order("run_id DESC").
		Pluck("run_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing run ids: %w", err)
	}

	return ids, nil
}

// ListConfigKeys returns the distinct config keys present in the index.
func (s *store) ListConfigKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Distinct("config_key").
		Order("config_key").
		Pluck("config_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("listing config keys: %w", err)
	}

	return keys, nil
}

// ListRunsByEngine returns all runs for one engine, newest first.
func (s *store) ListRunsByEngine(
	ctx context.Context, engine string,
) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Where("engine = ?", engine).
		Order("run_id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs by engine: %w", err)
	}

	return runs, nil
}
