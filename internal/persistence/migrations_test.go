package persistence

import (
	"reflect"
	"testing"
)

func TestPendingMigrationsOrdersAndSkipsApplied(t *testing.T) {
	filenames := []string{
		"0003_indexes.sql",
		"0001_schema.sql",
		"0002_projects.sql",
	}
	applied := map[string]bool{"0001_schema.sql": true}

	got := pendingMigrations(filenames, applied)
	want := []string{"0002_projects.sql", "0003_indexes.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
}

func TestPendingMigrationsAllApplied(t *testing.T) {
	applied := map[string]bool{"0001_schema.sql": true}
	if got := pendingMigrations([]string{"0001_schema.sql"}, applied); len(got) != 0 {
		t.Fatalf("pending = %v, want none", got)
	}
}

func TestPendingMigrationsFreshDatabase(t *testing.T) {
	got := pendingMigrations([]string{"0002_b.sql", "0001_a.sql"}, nil)
	want := []string{"0001_a.sql", "0002_b.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
}
