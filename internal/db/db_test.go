package db

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	files, err := migrationFiles(fstest.MapFS{
		"0002_more.sql":  {Data: []byte("SELECT 1;")},
		"0001_first.sql": {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("notes")},
		"nested/x.sql":   {Data: []byte("SELECT 1;")},
	})
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(files) != 2 || files[0] != "0001_first.sql" || files[1] != "0002_more.sql" {
		t.Fatalf("unexpected migration order %v", files)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(Migrations())
	if err != nil {
		t.Fatalf("list embedded migrations: %v", err)
	}
	if len(files) == 0 || files[0] != "0001_feedback.sql" {
		t.Fatalf("expected embedded feedback migration, got %v", files)
	}
}

func TestRunMigrationsIntegration(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if _, err := RunMigrations(ctx, pool, Migrations()); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	applied, err := RunMigrations(ctx, pool, Migrations())
	if err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("second run should apply nothing, got %v", applied)
	}

	var exists bool
	if err := pool.QueryRow(ctx, "SELECT to_regclass('public.agent_evaluation') IS NOT NULL").Scan(&exists); err != nil {
		t.Fatalf("check table: %v", err)
	}
	if !exists {
		t.Fatalf("expected agent_evaluation table")
	}
}
