package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Extensions the schema depends on.
var Extensions = []string{"vector"}

func getLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true, // Ignore ErrRecordNotFound error for logger
			ParameterizedQueries:      true, // Don't include params in the SQL log
			Colorful:                  true,
		},
	)
}

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

// NewGormDBFromDSN opens a pooled postgres connection. SQL statements are
// logged at Info level outside production.
func NewGormDBFromDSN(dsn string, isProd bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database connection string")
	}

	level := logger.Info
	if isProd {
		level = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: getLogger(level),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	return db, nil
}

func EnsureExtensions(db *gorm.DB) error {
	for _, ext := range Extensions {
		if err := db.Exec(fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %q", ext)).Error; err != nil {
			return fmt.Errorf("create extension %s: %w", ext, err)
		}
	}
	return nil
}
