// Package testutil hands repo and service tests a migrated database and a
// quiet logger, both shared across one test binary.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/storyboard-backend/internal/data/db"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

var (
	sharedLogger = sync.OnceValues(func() (*logger.Logger, error) { return logger.New("test") })
	sharedDB     = sync.OnceValues(openDB)
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := sharedLogger()
	if err != nil {
		tb.Fatalf("test logger: %v", err)
	}
	return log
}

// DB runs against TEST_POSTGRES_DSN when set. Otherwise it is one in-memory
// sqlite connection, so every test in the binary sees the same tables.
// Tests keep rows apart with fresh uuids and usernames.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	gdb, err := sharedDB()
	if err != nil {
		tb.Fatalf("test db: %v", err)
	}
	return gdb
}

func openDB() (*gorm.DB, error) {
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}
	dialector := sqlite.Open(":memory:")
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		dialector = postgres.Open(dsn)
	}
	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if gdb.Dialector.Name() == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// each new connection would open its own empty :memory: database
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, db.AutoMigrateAll(gdb)
}

// Tx is rolled back when the test ends.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() { tx.Rollback() })
	return tx
}

func DBC(tx *gorm.DB) dbctx.Context {
	return dbctx.Context{Ctx: context.Background(), Tx: tx}
}
