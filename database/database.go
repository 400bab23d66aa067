package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sharath018/tenant-access-backend/config"
	"github.com/sharath018/tenant-access-backend/logger"
)

// Connect opens the PostgreSQL pool and applies the pool settings.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.DSN(),
		PreferSimpleProtocol: cfg.DB.PreferSimpleProtocol,
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: newGormLogger(logger.L(), cfg.DB.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	logger.L().Info("database connected",
		zap.String("host", cfg.DB.Host),
		zap.String("database", cfg.DB.Name),
		zap.Bool("simple_protocol", cfg.DB.PreferSimpleProtocol),
	)
	return db, nil
}

// newGormLogger routes gorm's output through zap.
func newGormLogger(l *zap.Logger, level string) gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(l.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  ParseLogLevel(level),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// ParseLogLevel maps silent, error, warn and info to gorm levels. Anything
// else is warn.
func ParseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
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
