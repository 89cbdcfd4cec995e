package control

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"quasim/internal/audit"
)

// HistoryEntry is one epoch of the descent.
type HistoryEntry struct {
	Epoch     int       `json:"epoch"`
	Objective float64   `json:"objective"`
	Schedule  []float64 `json:"schedule"`
}

// Checkpoint is a periodic snapshot of the descent, persisted by the caller.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Epoch     int       `json:"epoch"`
	Objective float64   `json:"objective"`
	Schedule  []float64 `json:"schedule"`
	SavedAt   time.Time `json:"saved_at"`
}

// Outcome is the full result of an optimization run.
type Outcome struct {
	RunID       string         `json:"run_id"`
	Schedule    []float64      `json:"schedule"`
	Objective   float64        `json:"objective"`
	History     []HistoryEntry `json:"history"`
	Checkpoints []Checkpoint   `json:"checkpoints,omitempty"`
	Elapsed     time.Duration  `json:"elapsed_ns"`
}

// Optimizer descends a control schedule by central finite differences with a
// fixed learning rate, clipping every coordinate to [ClipMin, ClipMax] after
// each update. Logger and recorder are injected; either may be nil.
type Optimizer struct {
	cfg      Config
	logger   *zap.Logger
	recorder *audit.Recorder
}

// NewOptimizer builds an Optimizer over cfg.
func NewOptimizer(cfg Config, logger *zap.Logger, recorder *audit.Recorder) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{cfg: cfg, logger: logger, recorder: recorder}
}

// Run optimizes the schedule, starting from a0 or from the seeded initial
// fill when a0 is nil. Cancellation is honored between epochs; a canceled run
// returns the best schedule found so far along with ctx.Err().
func (o *Optimizer) Run(ctx context.Context, a0 []float64) (*Outcome, error) {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a0 == nil {
		a0 = InitialSchedule(cfg)
	}
	if len(a0) != cfg.Steps {
		return nil, fmt.Errorf("initial schedule length %d, config wants %d steps", len(a0), cfg.Steps)
	}

	runID := uuid.NewString()
	start := time.Now()
	if o.recorder != nil {
		o.recorder.OptimizeStart(runID, cfg.Optimizer.Epochs, cfg.Steps)
	}

	a := make([]float64, cfg.Steps)
	copy(a, a0)
	clipSchedule(a)

	out := &Outcome{RunID: runID, Schedule: a}
	grad := make([]float64, cfg.Steps)
	probe := make([]float64, cfg.Steps)
	eps := cfg.Optimizer.FDEpsilon

	for epoch := 1; epoch <= cfg.Optimizer.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			out.Objective = objective(cfg, a)
			out.Elapsed = time.Since(start)
			if o.recorder != nil {
				o.recorder.Failure(runID, "optimize", ctx.Err())
			}
			return out, ctx.Err()
		default:
		}

		// Central differences around the frozen epoch schedule.
		copy(probe, a)
		for k := 0; k < cfg.Steps; k++ {
			base := probe[k]
			probe[k] = base + eps
			plus := objective(cfg, probe)
			probe[k] = base - eps
			minus := objective(cfg, probe)
			probe[k] = base
			grad[k] = (plus - minus) / (2 * eps)
		}

		floats.AddScaled(a, -cfg.Optimizer.LearningRate, grad)
		clipSchedule(a)

		j := objective(cfg, a)
		snapshot := make([]float64, cfg.Steps)
		copy(snapshot, a)
		out.History = append(out.History, HistoryEntry{Epoch: epoch, Objective: j, Schedule: snapshot})

		o.logger.Debug("optimizer epoch",
			zap.String("run", runID),
			zap.Int("epoch", epoch),
			zap.Float64("objective", j))
		if o.recorder != nil {
			o.recorder.OptimizeEpoch(runID, epoch, j)
		}

		if every := cfg.Optimizer.CheckpointEvery; every > 0 && epoch%every == 0 {
			out.Checkpoints = append(out.Checkpoints, Checkpoint{
				RunID:     runID,
				Epoch:     epoch,
				Objective: j,
				Schedule:  snapshot,
				SavedAt:   time.Now().UTC(),
			})
		}
	}

	out.Objective = objective(cfg, a)
	out.Elapsed = time.Since(start)
	if o.recorder != nil {
		o.recorder.OptimizeComplete(runID, cfg.Optimizer.Epochs, out.Objective, out.Elapsed.Milliseconds())
	}
	o.logger.Info("optimization complete",
		zap.String("run", runID),
		zap.Int("epochs", cfg.Optimizer.Epochs),
		zap.Float64("objective", out.Objective),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

func clipSchedule(a []float64) {
	for i, v := range a {
		switch {
		case v < ClipMin:
			a[i] = ClipMin
		case v > ClipMax:
			a[i] = ClipMax
		}
	}
}
