package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quasim/internal/bench"
	"quasim/internal/store"
)

var (
	benchRuns    int
	benchWorkers int
)

// benchCmd measures simulator throughput
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the simulator with real wall-clock timings",
	Long: `Runs the configured simulation repeatedly across a worker pool and reports
measured latencies. Every sample is a real simulation; nothing is synthetic.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRuns, "runs", 0, "Override number of benchmark runs")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 0, "Override worker pool size")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	cfg := bench.Config{
		Runs:       rt.cfg.Bench.Runs,
		Workers:    rt.cfg.Bench.Workers,
		Simulation: rt.cfg.Simulation,
	}
	if benchRuns > 0 {
		cfg.Runs = benchRuns
	}
	if benchWorkers > 0 {
		cfg.Workers = benchWorkers
	}

	res, err := bench.Run(ctx, cfg, logger, rt.recorder)
	if err != nil {
		return err
	}

	artifact, err := rt.writeArtifact(fmt.Sprintf("bench-%s.json", res.RunID), res)
	if err != nil {
		return err
	}
	if err := rt.store.SaveRun(store.RunRecord{
		ID:        res.RunID,
		Kind:      "bench",
		StartedAt: res.StartedAt,
		Duration:  res.Elapsed,
		Objective: res.MeanMs,
		Artifact:  artifact,
	}); err != nil {
		return err
	}

	fmt.Printf("Benchmark %s: %d runs, %d workers\n", res.RunID, res.Runs, res.Workers)
	fmt.Printf("  min  %8.3f ms\n", res.MinMs)
	fmt.Printf("  mean %8.3f ms\n", res.MeanMs)
	fmt.Printf("  p95  %8.3f ms\n", res.P95Ms)
	fmt.Printf("  max  %8.3f ms\n", res.MaxMs)
	fmt.Printf("  rate %8.1f runs/s\n", res.PerSecond)
	fmt.Printf("Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
	fmt.Printf("Artifact: %s\n", artifact)
	return nil
}
