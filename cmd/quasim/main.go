package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quasim/internal/audit"
	"quasim/internal/config"
	"quasim/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "quasim",
	Short: "QuASIM - coupled classical-quantum simulation toolkit",
	Long: `QuASIM simulates a coupled Ornstein-Uhlenbeck / qubit-dephasing system,
optimizes per-timestep control schedules against an information-geometry
objective, and manages the accelerator hosts that run large sweeps.

Artifacts, audit events, and run records live under .quasim/ in the
workspace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// statusCmd shows toolkit status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace and store status",
	RunE:  showStatus,
}

// initCmd seeds a workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a quasim workspace",
	Long: `Creates the .quasim/ directory with a default config.json and a sample
device inventory. Run this once per workspace.`,
	RunE: runInit,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the -w flag or the current directory.
func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, _ := os.Getwd()
	return cwd
}

// signalContext returns a context canceled by SIGINT/SIGTERM or the global
// timeout, whichever comes first.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// runtime bundles the shared plumbing behind every subcommand: config,
// persistent store, and the audit recorder wired through to it.
type runtime struct {
	cfg      config.Config
	store    *store.Store
	recorder *audit.Recorder
}

func openRuntime() (*runtime, error) {
	ws := resolveWorkspace()
	cfg, err := config.Load(ws)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Audit.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	rec, err := audit.NewRecorder(audit.Options{
		BufferSize: cfg.Audit.BufferSize,
		Path:       cfg.Audit.LogPath,
		Sink:       st,
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, store: st, recorder: rec}, nil
}

func (r *runtime) Close() {
	if err := r.recorder.Close(); err != nil {
		logger.Warn("failed to close audit recorder", zap.Error(err))
	}
	if err := r.store.Close(); err != nil {
		logger.Warn("failed to close store", zap.Error(err))
	}
}

// writeArtifact persists v as an indented JSON artifact and returns its path.
func (r *runtime) writeArtifact(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(r.cfg.ArtifactsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	path := filepath.Join(r.cfg.ArtifactsDir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// showStatus displays workspace status
func showStatus(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	fmt.Println("QuASIM Toolkit Status")
	fmt.Println("=====================")
	fmt.Printf("Workspace: %s\n", ws)

	cfg, err := config.Load(ws)
	if err != nil {
		return err
	}
	fmt.Printf("Database:  %s\n", cfg.Audit.DatabasePath)
	fmt.Printf("Inventory: %s\n", cfg.Hcal.InventoryPath)
	fmt.Printf("Artifacts: %s\n", cfg.ArtifactsDir)

	if _, err := os.Stat(cfg.Audit.DatabasePath); os.IsNotExist(err) {
		fmt.Println("\nNo runs recorded yet. Try 'quasim simulate'.")
		return nil
	}
	st, err := store.Open(cfg.Audit.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.RecentRuns("", 5)
	if err != nil {
		return err
	}
	fmt.Printf("\nRecent runs (%d):\n", len(runs))
	for _, run := range runs {
		fmt.Printf("  %s  %-9s  J=%-12.6f  %s\n",
			run.StartedAt.Format(time.RFC3339), run.Kind, run.Objective, run.ID)
	}
	return nil
}

// runInit seeds the workspace with config and a sample inventory
func runInit(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfgPath := filepath.Join(ws, config.Dir, "config.json")
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Println("Workspace already initialized. Use 'quasim status' to inspect it.")
		return nil
	}

	cfg := config.Default(ws)
	if err := config.Save(ws, cfg); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Hcal.InventoryPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.Hcal.InventoryPath, []byte(sampleInventory), 0644); err != nil {
			return fmt.Errorf("failed to write sample inventory: %w", err)
		}
	}

	fmt.Printf("Initialized workspace at %s\n", filepath.Join(ws, config.Dir))
	fmt.Println("Edit inventory.yaml to match your hosts, then try:")
	fmt.Println("  quasim simulate")
	fmt.Println("  quasim hcal discover")
	return nil
}

const sampleInventory = `devices:
  - id: gpu-0
    kind: a100
    memory_mib: 40960
    profile: default
profiles:
  default:
    min_memory_mib: 0
  mig-3g.20gb:
    min_memory_mib: 20480
    kinds: [a100, h100]
`
