package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tasktracker/pkg/db"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database, migrates models into
// it and closes it when the test ends.
func NewTestDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", dbName(t.Name()))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  db.NewZapGormLogger(zap.NewNop(), logger.Silent, false),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql.DB from gorm: %v", err)
	}

	// One connection keeps the shared in-memory database alive and mirrors
	// the single writer used in production.
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return gdb
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func dbName(testName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, testName)
}
