package database

import (
	"slices"
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_audit_log.up.sql":   {Data: []byte("CREATE TABLE audit_log ()")},
		"001_quotes.up.sql":      {Data: []byte("CREATE TABLE quotes ()")},
		"001_quotes.down.sql":    {Data: []byte("DROP TABLE quotes")},
		"003_holidays.up.sql":    {Data: []byte("CREATE TABLE holidays ()")},
		"README.md":              {Data: []byte("migrations")},
		"archive/000_old.up.sql": {Data: []byte("SELECT 1")},
	}

	got, err := PendingMigrations(fsys, map[string]bool{"001_quotes.up.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"002_audit_log.up.sql", "003_holidays.up.sql"}
	if !slices.Equal(got, want) {
		t.Errorf("PendingMigrations() = %v, want %v", got, want)
	}
}

func TestPendingMigrationsAllApplied(t *testing.T) {
	fsys := fstest.MapFS{"001_quotes.up.sql": {Data: []byte("SELECT 1")}}

	got, err := PendingMigrations(fsys, map[string]bool{"001_quotes.up.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("PendingMigrations() = %v, want none", got)
	}
}
