// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"academyhub/database"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated SQLite database private to the test and installs it
// as database.DB for the duration of the test.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection serializes the async activity-log writes with the test's own
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prevDB, prevRedis := database.DB, database.RedisClient
	database.DB = db
	database.RedisClient = nil
	t.Cleanup(func() {
		database.DB = prevDB
		database.RedisClient = prevRedis
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
