// Package bench measures real wall-clock timings of the coupled simulator.
// Unlike a synthetic harness, every sample is an actual control.Simulate call;
// the aggregate statistics describe this machine, not a fabricated baseline.
package bench

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"quasim/internal/audit"
	"quasim/internal/control"
)

// Config sizes a benchmark run.
type Config struct {
	Runs       int            `json:"runs"`
	Workers    int            `json:"workers"`
	Simulation control.Config `json:"simulation"`
}

// DefaultConfig benchmarks the stock simulation with a small pool.
func DefaultConfig() Config {
	return Config{Runs: 50, Workers: 4, Simulation: control.DefaultConfig()}
}

// Sample is one timed simulation.
type Sample struct {
	Run       int     `json:"run"`
	Millis    float64 `json:"ms"`
	Objective float64 `json:"objective"`
}

// Result aggregates a benchmark run.
type Result struct {
	RunID     string        `json:"run_id"`
	Runs      int           `json:"runs"`
	Workers   int           `json:"workers"`
	Samples   []Sample      `json:"samples"`
	MinMs     float64       `json:"min_ms"`
	MeanMs    float64       `json:"mean_ms"`
	P95Ms     float64       `json:"p95_ms"`
	MaxMs     float64       `json:"max_ms"`
	PerSecond float64       `json:"per_second"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Run executes cfg.Runs simulations across cfg.Workers goroutines and
// aggregates the timings. The same seeded schedule is used for every sample
// so the samples differ only in machine noise.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, recorder *audit.Recorder) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", cfg.Runs)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	runID := uuid.NewString()
	schedule := control.InitialSchedule(cfg.Simulation)
	samples := make([]Sample, cfg.Runs)
	started := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Runs; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			res, err := control.Simulate(cfg.Simulation, schedule)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			samples[i] = Sample{
				Run:       i,
				Millis:    float64(time.Since(t0).Microseconds()) / 1000.0,
				Objective: res.Objective,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if recorder != nil {
			recorder.Failure(runID, "bench", err)
		}
		return nil, err
	}
	elapsed := time.Since(started)

	millis := make([]float64, cfg.Runs)
	for i, s := range samples {
		millis[i] = s.Millis
	}
	sorted := append([]float64(nil), millis...)
	sort.Float64s(sorted)

	result := &Result{
		RunID:     runID,
		Runs:      cfg.Runs,
		Workers:   cfg.Workers,
		Samples:   samples,
		MinMs:     floats.Min(sorted),
		MeanMs:    stat.Mean(sorted, nil),
		P95Ms:     stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MaxMs:     floats.Max(sorted),
		PerSecond: float64(cfg.Runs) / elapsed.Seconds(),
		StartedAt: started.UTC(),
		Elapsed:   elapsed,
	}

	logger.Info("benchmark complete",
		zap.String("run", runID),
		zap.Int("runs", cfg.Runs),
		zap.Int("workers", cfg.Workers),
		zap.Float64("mean_ms", result.MeanMs),
		zap.Float64("p95_ms", result.P95Ms))
	if recorder != nil {
		recorder.BenchComplete(runID, cfg.Runs, result.MeanMs, elapsed.Milliseconds())
	}
	return result, nil
}
