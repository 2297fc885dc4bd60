package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migrations[0].version != "001_users.sql" {
		t.Errorf("first migration = %q", migrations[0].version)
	}
	for i, m := range migrations {
		if i > 0 && migrations[i-1].version >= m.version {
			t.Errorf("migrations out of order: %q before %q", migrations[i-1].version, m.version)
		}
		if !strings.Contains(m.sql, "users") {
			t.Errorf("%s: unexpected content", m.version)
		}
	}
}
