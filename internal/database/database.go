package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agrotrace/company-portal/portal-backend/internal/batches"
	"agrotrace/company-portal/portal-backend/internal/config"
	"agrotrace/company-portal/portal-backend/internal/lands"
)

// Connect opens the postgres connection pool. SQL is logged through zap:
// slow queries always, every statement when debug is set.
func Connect(cfg config.DatabaseConfig, logger *zap.Logger, debug bool) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	lg := gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), gormConfig(lg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	logger.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))
	return db, nil
}

// Models lists every table the portal owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&lands.Land{},
		&batches.Batch{},
		&batches.BatchSource{},
	}
}

// Migrate creates or updates the portal's tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}

// gormConfig translates driver errors so unique-index violations surface as
// gorm.ErrDuplicatedKey.
func gormConfig(lg gormlogger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         lg,
		TranslateError: true,
	}
}
