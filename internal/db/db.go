// Package db opens the Postgres connection and owns the schema.
package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/estudioia/videos-api/internal/config"
	"github.com/estudioia/videos-api/internal/store"
)

// Connect opens a pooled gorm connection. Unique violations are translated to
// gorm.ErrDuplicatedKey so the store can map them to conflicts.
func Connect(cfg *config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             time.Duration(cfg.SlowQueryMs) * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	return gdb, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// AutoMigrateAndIndexes creates the tables and the indexes gorm tags cannot express.
func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(store.Models()...); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_render_jobs_project_status on render_jobs(project_id, status);`,
		`create index if not exists idx_render_jobs_owner_created on render_jobs(owner_id, created_at desc);`,
		`create index if not exists idx_render_jobs_finished on render_jobs(completed_at) where status in ('completed','failed','cancelled');`,
		// one active job per project
		`create unique index if not exists uq_render_jobs_active_project on render_jobs(project_id) where status in ('queued','processing','paused');`,
		`create index if not exists idx_presentations_project on presentations(project_id, created_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
