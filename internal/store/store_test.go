package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("mouthswap_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	if err := s.StartJob(ctx, "job_1", "dest.mp4", "mouth.mp4", "out.mp4"); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	failures := []types.FrameStatus{
		{Index: 7, Kind: "triangulation_failed", Detail: "triangulate: no triangles"},
		{Index: 3, Kind: "invalid_landmark_count", Detail: "filter: expected 68 landmarks"},
	}
	if err := s.RecordFailures(ctx, "job_1", failures); err != nil {
		t.Fatalf("RecordFailures failed: %v", err)
	}
	if err := s.FinishJob(ctx, "job_1", Totals{Frames: 10, Swapped: 8, PassedThrough: 2}); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}

	got, err := s.Failures(ctx, "job_1")
	if err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if len(got) != 2 || got[0].Index != 3 || got[1].Index != 7 {
		t.Errorf("Expected failures for frames 3 and 7 in order, got %+v", got)
	}

	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Frames != 10 || jobs[0].Swapped != 8 || jobs[0].Failures != 2 {
		t.Errorf("Unexpected job totals: %+v", jobs[0])
	}
	if jobs[0].FinishedAt == nil {
		t.Error("Expected finished_at to be set")
	}

	// Re-running the same job clears its old failures.
	if err := s.StartJob(ctx, "job_1", "dest.mp4", "mouth.mp4", "out.mp4"); err != nil {
		t.Fatalf("StartJob (rerun) failed: %v", err)
	}
	got, err = s.Failures(ctx, "job_1")
	if err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected failures to be cleared on rerun, got %d", len(got))
	}

	if err := s.FinishJob(ctx, "missing", Totals{}); err == nil {
		t.Error("Expected FinishJob on an unknown job to fail")
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListJobs(ctx); err == nil {
		t.Error("Expected ListJobs to fail after Reset dropped the tables")
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
