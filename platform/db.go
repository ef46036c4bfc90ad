package platform

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens the database selected by cfg.DBDriver.
func NewDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLite)
	default:
		dialector = mysql.Open(cfg.SQL.DSN())
	}
	return OpenDB(dialector, cfg.DBDriver == "sqlite")
}

// OpenDB opens a gorm handle with the application logger wired in. sqlite handles are limited
// to one connection so in-memory databases and writers don't trip over each other.
func OpenDB(dialector gorm.Dialector, singleConn bool) (*gorm.DB, error) {
	logger := gormlogger.New(Logger, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if singleConn {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// CloseDB closes the pool behind db.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
