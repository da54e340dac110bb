package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// One CLI process writes while the API server may read the same file.
const sqliteOptions = "?_journal_mode=WAL&_busy_timeout=5000"

// DB holds the run history connection
type DB struct {
	*gorm.DB
}

// NewDatabase opens (or creates) the run history at dbPath and migrates
// the run, episode, Q-value, tier and event tables.
func NewDatabase(dbPath string) (*DB, error) {
	level := logger.Silent
	if log.IsLevelEnabled(log.TraceLevel) {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dbPath+sqliteOptions), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run history %s: %w", dbPath, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&Run{},
		&EpisodeRecord{},
		&QValueRecord{},
		&TierSummary{},
		&Event{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate run history: %w", err)
	}

	log.WithField("path", dbPath).Debug("Run history opened")
	return &DB{db}, nil
}

// Close releases the connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
