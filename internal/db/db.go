// Package db opens the embedded SQLite database the engine persists to.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"convstore/internal/store"
)

// Open connects to the SQLite file at path with WAL journaling and
// foreign-key enforcement on. Cascade and set-null rules in the schema
// depend on the foreign_keys pragma, so every connection goes through
// here.
func Open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		path,
	)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return gdb, nil
}

// Migrate brings the schema up to date. It must run once before the
// repository is used in a process; the engine itself never migrates.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(store.AllModels()...)
}
