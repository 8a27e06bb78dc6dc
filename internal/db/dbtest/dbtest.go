// Package dbtest поднимает мигрированную sqlite-базу для тестов.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"slidecraft/internal/db"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()
	d, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}
