package database

import (
	"fmt"
	"time"

	"task-service/internal/model"
	"task-service/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

// InitDB initializes the database connection
func InitDB(cfg *config.Config) error {
	// Set up GORM logger configuration
	logLevel := cfg.DB.LogLevel
	if cfg.Server.Env == "production" && logLevel == logger.Info {
		logLevel = logger.Error
	}

	// Configure Postgres options
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	// Configure GORM and open connection
	var err error
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool parameters
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return MigrateSchema(zap.L(), Models()...)
}

// Models lists every persisted entity, shared directory tables first.
func Models() []interface{} {
	return []interface{}{
		&model.Tenant{},
		&model.Domain{},
		&model.User{},
		&model.Task{},
		&model.TaskComment{},
		&model.TaskAttachment{},
	}
}

// GetDB returns a reference to the database instance
func GetDB() *gorm.DB {
	return db
}

// MigrateSchema migrates the given models on the active connection.
func MigrateSchema(log *zap.Logger, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	start := time.Now()
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(models...); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	log.Info("Database migration completed successfully",
		zap.Duration("duration", time.Since(start)))
	return nil
}
