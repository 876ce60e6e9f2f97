package storage

import (
	"testing"

	"github.com/coindata-pipeline/internal/config"
	"github.com/coindata-pipeline/internal/errors"
	"github.com/coindata-pipeline/internal/types"
)

// setupRunRepository connects to a local Postgres. Tests are skipped when no
// server is reachable; the pipeline_runs table must exist (cmd/migrate).
func setupRunRepository(t *testing.T) *RunRepository {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "coin_pipeline",
		User:           "pipeline",
		Password:       "",
		MaxConnections: 5,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	repo := NewRunRepository(db)

	return repo
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := testContext(t)

	run := types.NewRun()
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() = nil, want the created run")
	}
	if got.ID != run.ID {
		t.Errorf("ID = %v, want %v", got.ID, run.ID)
	}
	if got.Status != types.RunStatusRunning {
		t.Errorf("Status = %v, want %v", got.Status, types.RunStatusRunning)
	}
}

func TestRunRepository_UpdateLifecycle(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := testContext(t)

	run := types.NewRun()
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	run.RowCount = 5000
	csvKey := "cryptocurrency-data/coin_data_test.csv"
	run.CSVObjectKey = &csvKey
	run.MarkSucceeded()

	if err := repo.Update(ctx, run); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.RunStatusSucceeded {
		t.Errorf("Status = %v, want %v", got.Status, types.RunStatusSucceeded)
	}
	if got.RowCount != 5000 {
		t.Errorf("RowCount = %v, want 5000", got.RowCount)
	}
	if got.CSVObjectKey == nil || *got.CSVObjectKey != csvKey {
		t.Errorf("CSVObjectKey = %v, want %v", got.CSVObjectKey, csvKey)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not persisted")
	}
}

func TestRunRepository_UpdateUnknownRun(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := testContext(t)

	run := types.NewRun()
	run.MarkSucceeded()

	err := repo.Update(ctx, run)
	if err == nil {
		t.Fatal("Update() error = nil, want error for unknown run")
	}
	if !errors.IsKind(err, errors.KindDatabase) {
		t.Errorf("KindOf(err) = %q, want %q", errors.KindOf(err), errors.KindDatabase)
	}
}

func TestRunRepository_GetByIDMissing(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := testContext(t)

	got, err := repo.GetByID(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByID() = %+v, want nil for missing run", got)
	}
}

func TestRunRepository_List(t *testing.T) {
	repo := setupRunRepository(t)
	ctx := testContext(t)

	first := types.NewRun()
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second := types.NewRun()
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	runs, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) < 2 {
		t.Fatalf("len(runs) = %d, want at least 2", len(runs))
	}

	// Newest first.
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("runs not ordered newest-first at index %d", i)
		}
	}
}
