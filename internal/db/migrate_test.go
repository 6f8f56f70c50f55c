package db

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestMigrationFiles_Ordered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("migrations out of order: %s before %s", files[i-1], files[i])
		}
	}
	for _, f := range files {
		if !strings.HasSuffix(f, ".sql") {
			t.Errorf("non-sql migration %s", f)
		}
	}
}

// Requires a running Postgres database
// Run: docker-compose up -d postgres, then set DATABASE_URL
func TestRunMigrations(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set - run docker-compose up -d postgres")
	}

	database, err := NewPostgres(url, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()

	// Concurrent migrators serialize on the advisory lock
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = RunMigrations(ctx, database.Pool(), zap.NewNop())
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("RunMigrations() #%d error = %v", i, err)
		}
	}

	// A second pass is a no-op
	if err := RunMigrations(ctx, database.Pool(), zap.NewNop()); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}

	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	for _, f := range files {
		var n int
		version := strings.TrimSuffix(f, ".sql")
		if err := database.Pool().QueryRow(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", version, err)
		}
		if n != 1 {
			t.Errorf("migration %s recorded %d times, want 1", version, n)
		}
	}

	var seeded bool
	if err := database.Pool().QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tables WHERE table_id = 'syn35048407')").Scan(&seeded); err != nil {
		t.Fatalf("seed check: %v", err)
	}
	if !seeded {
		t.Error("member table not seeded")
	}
}
