package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// SQLiteStore implements Interface backed by a SQLite database in WAL mode,
// so the presentation layer can read while a pipeline run writes.
type SQLiteStore struct {
	DataStore
	Path string
}

// New creates a SQLite-backed store for the given database path.
func New(path string) *SQLiteStore {
	return &SQLiteStore{Path: path}
}

// Open connects to the database, enables WAL mode and migrates the schema.
func (store *SQLiteStore) Open() error {
	if store.Path == "" {
		return errors.NewStd("database path is not set")
	}
	if dir := filepath.Dir(store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("creating database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(store.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	// WAL keeps readers from blocking the single writer.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return errors.New(fmt.Errorf("enabling WAL mode: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		return errors.New(fmt.Errorf("enabling foreign keys: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if sqlDB, err := db.DB(); err == nil {
		// SQLite allows one writer; a single connection avoids busy errors.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&Clip{}, &Detection{}, &NightOutput{}, &Setting{}); err != nil {
		return errors.New(fmt.Errorf("migrating schema: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.DB = db
	logger().Info("Database opened", "path", store.Path)
	return nil
}

// Close closes the underlying connection pool.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
