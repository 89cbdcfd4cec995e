package hcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quasim/internal/audit"
	"quasim/internal/control"
)

// ErrNotCalibrating marks a stop request for a device with no calibration in
// flight.
var ErrNotCalibrating = errors.New("no calibration in flight")

// Calibrator runs the control optimizer against device-derived parameters and
// coordinates stop requests through per-device state files.
type Calibrator struct {
	StateDir string
	Logger   *zap.Logger
	Recorder *audit.Recorder
}

type calibState struct {
	RunID     string    `json:"run_id"`
	Device    string    `json:"device"`
	StartedAt time.Time `json:"started_at"`
}

// DeriveConfig specializes a base simulation config for one device. The seed
// is mixed with the device id so every device gets its own deterministic
// schedule; gamma/omega labels on the device override the physical rates.
func DeriveConfig(base control.Config, dev Device) control.Config {
	cfg := base
	h := fnv.New64a()
	h.Write([]byte(dev.ID))
	cfg.Seed = base.Seed ^ int64(h.Sum64())

	if v, ok := dev.Labels["gamma"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Gamma = f
		}
	}
	if v, ok := dev.Labels["omega"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Omega = f
		}
	}
	return cfg
}

// Calibrate optimizes a control schedule for the device. A state file is
// written for the duration of the run; removing it (via Stop) cancels the
// optimization. The partial outcome is returned alongside the cancellation
// error in that case.
func (c *Calibrator) Calibrate(ctx context.Context, dev Device, base control.Config) (*control.Outcome, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(c.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	runID := uuid.NewString()
	statePath := c.statePath(dev.ID)
	state := calibState{RunID: runID, Device: dev.ID, StartedAt: time.Now().UTC()}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calibration state: %w", err)
	}
	if err := os.WriteFile(statePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write calibration state: %w", err)
	}
	defer os.Remove(statePath)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopPoll := make(chan struct{})
	go func() {
		// Poll for an out-of-band stop: the state file disappearing.
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				close(stopPoll)
				return
			case <-ticker.C:
				if _, err := os.Stat(statePath); os.IsNotExist(err) {
					logger.Info("calibration stop requested", zap.String("device", dev.ID))
					cancel()
				}
			}
		}
	}()
	defer func() {
		cancel()
		<-stopPoll
	}()

	cfg := DeriveConfig(base, dev)
	if c.Recorder != nil {
		c.Recorder.CalibrateStart(runID, dev.ID)
	}
	start := time.Now()
	opt := control.NewOptimizer(cfg, logger, c.Recorder)

	out, err := opt.Run(runCtx, nil)
	elapsed := time.Since(start)
	if c.Recorder != nil {
		objective := 0.0
		errMsg := ""
		if out != nil {
			objective = out.Objective
		}
		if err != nil {
			errMsg = err.Error()
		}
		c.Recorder.CalibrateComplete(runID, dev.ID, objective, elapsed.Milliseconds(), err == nil, errMsg)
	}
	if err != nil {
		return out, fmt.Errorf("calibration of %s: %w", dev.ID, err)
	}
	return out, nil
}

// Stop cancels an in-flight calibration by removing its state file.
func (c *Calibrator) Stop(deviceID string) error {
	statePath := c.statePath(deviceID)
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return fmt.Errorf("%w: device %q", ErrNotCalibrating, deviceID)
	}
	if err := os.Remove(statePath); err != nil {
		return fmt.Errorf("failed to remove calibration state: %w", err)
	}
	if c.Recorder != nil {
		c.Recorder.CalibrateStop(deviceID)
	}
	return nil
}

// Active returns the state of an in-flight calibration, if any.
func (c *Calibrator) Active(deviceID string) (runID string, startedAt time.Time, err error) {
	data, err := os.ReadFile(c.statePath(deviceID))
	if os.IsNotExist(err) {
		return "", time.Time{}, fmt.Errorf("%w: device %q", ErrNotCalibrating, deviceID)
	}
	if err != nil {
		return "", time.Time{}, err
	}
	var state calibState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", time.Time{}, fmt.Errorf("corrupt calibration state: %w", err)
	}
	return state.RunID, state.StartedAt, nil
}

func (c *Calibrator) statePath(deviceID string) string {
	return filepath.Join(c.StateDir, deviceID+".calibrating.json")
}
