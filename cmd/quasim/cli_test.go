package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quasim/internal/config"
	"quasim/internal/store"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	timeout = time.Minute
	t.Cleanup(func() { workspace = "" })
	return ws
}

func TestInitCmd(t *testing.T) {
	ws := setupWorkspace(t)
	cmd := &cobra.Command{}

	if err := runInit(cmd, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".quasim", "config.json")); os.IsNotExist(err) {
		t.Error("config.json was not created")
	}
	if _, err := os.Stat(filepath.Join(ws, ".quasim", "inventory.yaml")); os.IsNotExist(err) {
		t.Error("sample inventory was not created")
	}

	// Idempotent: a second init must not fail or clobber.
	if err := runInit(cmd, nil); err != nil {
		t.Errorf("runInit second run failed: %v", err)
	}
}

func TestSimulateCmdPersistsRun(t *testing.T) {
	ws := setupWorkspace(t)
	cmd := &cobra.Command{}

	// Keep it small for test speed.
	simSteps = 16
	simSeed = 7
	defer func() { simSteps = 0; simSeed = 0 }()

	if err := runSimulate(cmd, nil); err != nil {
		t.Fatalf("runSimulate failed: %v", err)
	}

	cfg, err := config.Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(cfg.Audit.DatabasePath, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	runs, err := st.RecentRuns("simulate", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if _, err := os.Stat(runs[0].Artifact); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	events, err := st.EventsByRun(runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 {
		t.Error("no audit events persisted for the run")
	}
}

func TestOptimizeCmdWritesArtifact(t *testing.T) {
	ws := setupWorkspace(t)
	cmd := &cobra.Command{}

	// Shrink the optimization via env overrides.
	t.Setenv("QUASIM_STEPS", "16")

	cfg := config.Default(ws)
	cfg.Simulation.Optimizer.Epochs = 3
	cfg.Simulation.Optimizer.CheckpointEvery = 0
	if err := config.Save(ws, cfg); err != nil {
		t.Fatal(err)
	}

	if err := runOptimize(cmd, nil); err != nil {
		t.Fatalf("runOptimize failed: %v", err)
	}

	loaded, err := config.Load(ws)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(loaded.Audit.DatabasePath, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	runs, err := st.RecentRuns("optimize", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d optimize runs, want 1", len(runs))
	}
}

func TestHcalPlanCmd(t *testing.T) {
	setupWorkspace(t)
	cmd := &cobra.Command{}

	if err := runInit(cmd, nil); err != nil {
		t.Fatal(err)
	}

	hcalProfile = "mig-3g.20gb"
	defer func() { hcalProfile = "" }()
	if err := runPlan(cmd, nil); err != nil {
		t.Fatalf("runPlan failed: %v", err)
	}

	hcalProfile = "does-not-exist"
	if err := runPlan(cmd, nil); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestStatusCmdBeforeAndAfterRuns(t *testing.T) {
	setupWorkspace(t)
	cmd := &cobra.Command{}

	if err := showStatus(cmd, nil); err != nil {
		t.Fatalf("status on empty workspace failed: %v", err)
	}

	simSteps = 16
	defer func() { simSteps = 0 }()
	if err := runSimulate(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if err := showStatus(cmd, nil); err != nil {
		t.Fatalf("status after run failed: %v", err)
	}
}
