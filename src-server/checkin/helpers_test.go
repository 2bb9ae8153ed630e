package checkin_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"manobal/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var t0 = time.Date(2024, time.May, 25, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })

	if err := model.CreateSchema(context.Background(), bundb); err != nil {
		t.Fatal(err)
	}
	return bundb
}

func countActive(t *testing.T, db *bun.DB, userID string) int {
	t.Helper()
	count, err := db.NewSelect().
		Model((*model.CheckIn)(nil)).
		Where("user_id = ?", userID).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return count
}

func reload(t *testing.T, db *bun.DB, id string) *model.CheckIn {
	t.Helper()
	checkInModel := new(model.CheckIn)
	if err := db.NewSelect().
		Model(checkInModel).
		Where("id = ?", id).
		Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return checkInModel
}
