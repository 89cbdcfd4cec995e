package audit

import "fmt"

// Convenience constructors for the common event families. Each one fills the
// structured fields so callers stay one-liners.

// SimulationComplete records a finished simulation run.
func (r *Recorder) SimulationComplete(runID string, steps int, objective float64, durationMs int64) {
	r.Log(Event{
		Type:       EventSimulationComplete,
		RunID:      runID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"steps": steps, "objective": objective},
		Message:    fmt.Sprintf("simulation %s: J=%.6f over %d steps (%dms)", runID, objective, steps, durationMs),
	})
}

// OptimizeStart records the beginning of an optimization run.
func (r *Recorder) OptimizeStart(runID string, epochs, steps int) {
	r.Log(Event{
		Type:    EventOptimizeStart,
		RunID:   runID,
		Success: true,
		Fields:  map[string]interface{}{"epochs": epochs, "steps": steps},
		Message: fmt.Sprintf("optimize %s: %d epochs over %d-step schedule", runID, epochs, steps),
	})
}

// OptimizeEpoch records one optimizer epoch.
func (r *Recorder) OptimizeEpoch(runID string, epoch int, objective float64) {
	r.Log(Event{
		Type:    EventOptimizeEpoch,
		RunID:   runID,
		Success: true,
		Fields:  map[string]interface{}{"epoch": epoch, "objective": objective},
		Message: fmt.Sprintf("optimize %s: epoch %d J=%.6f", runID, epoch, objective),
	})
}

// OptimizeComplete records a finished optimization run.
func (r *Recorder) OptimizeComplete(runID string, epochs int, objective float64, durationMs int64) {
	r.Log(Event{
		Type:       EventOptimizeComplete,
		RunID:      runID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"epochs": epochs, "objective": objective},
		Message:    fmt.Sprintf("optimize %s: converged to J=%.6f after %d epochs (%dms)", runID, objective, epochs, durationMs),
	})
}

// Checkpoint records a persisted optimizer checkpoint.
func (r *Recorder) Checkpoint(runID string, epoch int, path string) {
	r.Log(Event{
		Type:    EventCheckpoint,
		RunID:   runID,
		Target:  path,
		Success: true,
		Fields:  map[string]interface{}{"epoch": epoch},
		Message: fmt.Sprintf("checkpoint %s: epoch %d -> %s", runID, epoch, path),
	})
}

// BenchComplete records a finished benchmark run.
func (r *Recorder) BenchComplete(runID string, runs int, meanMs float64, durationMs int64) {
	r.Log(Event{
		Type:       EventBenchComplete,
		RunID:      runID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"runs": runs, "mean_ms": meanMs},
		Message:    fmt.Sprintf("bench %s: %d runs, mean %.2fms (%dms total)", runID, runs, meanMs, durationMs),
	})
}

// PlanComputed records a reconfiguration plan.
func (r *Recorder) PlanComputed(target string, actions, skipped int) {
	r.Log(Event{
		Type:    EventPlanComputed,
		Target:  target,
		Success: true,
		Fields:  map[string]interface{}{"actions": actions, "skipped": skipped},
		Message: fmt.Sprintf("plan: %d actions toward profile %s (%d skipped)", actions, target, skipped),
	})
}

// ApplyAction records one applied (or dry-run) reconfiguration action.
func (r *Recorder) ApplyAction(device, from, to string, commit bool) {
	r.Log(Event{
		Type:    EventApplyAction,
		Target:  device,
		Success: true,
		Fields:  map[string]interface{}{"from": from, "to": to, "commit": commit},
		Message: fmt.Sprintf("apply: %s %s -> %s (commit=%v)", device, from, to, commit),
	})
}

// ApplyCommit records a committed inventory rewrite.
func (r *Recorder) ApplyCommit(path string, actions int) {
	r.Log(Event{
		Type:    EventApplyCommit,
		Target:  path,
		Success: true,
		Fields:  map[string]interface{}{"actions": actions},
		Message: fmt.Sprintf("apply: committed %d actions to %s", actions, path),
	})
}

// CalibrateStart records the beginning of a device calibration.
func (r *Recorder) CalibrateStart(runID, device string) {
	r.Log(Event{
		Type:    EventCalibrateStart,
		RunID:   runID,
		Target:  device,
		Success: true,
		Message: fmt.Sprintf("calibrate %s: device %s", runID, device),
	})
}

// CalibrateComplete records a finished device calibration.
func (r *Recorder) CalibrateComplete(runID, device string, objective float64, durationMs int64, success bool, errMsg string) {
	r.Log(Event{
		Type:       EventCalibrateComplete,
		RunID:      runID,
		Target:     device,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"objective": objective},
		Message:    fmt.Sprintf("calibrate %s: device %s J=%.6f (success=%v, %dms)", runID, device, objective, success, durationMs),
	})
}

// CalibrateStop records an operator-requested calibration stop.
func (r *Recorder) CalibrateStop(device string) {
	r.Log(Event{
		Type:    EventCalibrateStop,
		Target:  device,
		Success: true,
		Message: fmt.Sprintf("calibrate: stop requested for %s", device),
	})
}

// NormalizeComplete records a finished export normalization.
func (r *Recorder) NormalizeComplete(source string, conversations, messages int) {
	r.Log(Event{
		Type:    EventNormalizeComplete,
		Target:  source,
		Success: true,
		Fields:  map[string]interface{}{"conversations": conversations, "messages": messages},
		Message: fmt.Sprintf("normalize: %s -> %d conversations, %d messages", source, conversations, messages),
	})
}

// Failure records a generic failure event.
func (r *Recorder) Failure(runID string, op string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Log(Event{
		Type:    EventError,
		RunID:   runID,
		Target:  op,
		Success: false,
		Error:   msg,
		Message: fmt.Sprintf("error in %s: %s", op, msg),
	})
}
