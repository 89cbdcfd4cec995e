package hcal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasim/internal/audit"
	"quasim/internal/control"
)

func calibTestConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.Steps = 16
	cfg.Optimizer.Epochs = 4
	cfg.Optimizer.CheckpointEvery = 0
	return cfg
}

func TestDeriveConfigPerDevice(t *testing.T) {
	base := calibTestConfig()
	a := Device{ID: "gpu-0"}
	b := Device{ID: "gpu-1"}

	cfgA := DeriveConfig(base, a)
	cfgB := DeriveConfig(base, b)
	assert.NotEqual(t, cfgA.Seed, cfgB.Seed, "devices must get distinct seeds")
	assert.Equal(t, cfgA.Seed, DeriveConfig(base, a).Seed, "derivation is deterministic")

	labeled := Device{ID: "gpu-2", Labels: map[string]string{"gamma": "0.8", "omega": "2.5"}}
	cfg := DeriveConfig(base, labeled)
	assert.Equal(t, 0.8, cfg.Gamma)
	assert.Equal(t, 2.5, cfg.Omega)

	bad := Device{ID: "gpu-3", Labels: map[string]string{"gamma": "not-a-number"}}
	assert.Equal(t, base.Gamma, DeriveConfig(base, bad).Gamma, "bad labels fall back to base")
}

func TestCalibrateProducesSchedule(t *testing.T) {
	rec, err := audit.NewRecorder(audit.Options{BufferSize: 64})
	require.NoError(t, err)
	c := &Calibrator{StateDir: t.TempDir(), Recorder: rec}
	dev := Device{ID: "gpu-0", Kind: "a100", MemoryMiB: 40960}

	out, err := c.Calibrate(context.Background(), dev, calibTestConfig())
	require.NoError(t, err)
	require.Len(t, out.Schedule, 16)
	for _, v := range out.Schedule {
		assert.GreaterOrEqual(t, v, control.ClipMin)
		assert.LessOrEqual(t, v, control.ClipMax)
	}

	// State file cleaned up after the run.
	_, _, err = c.Active(dev.ID)
	require.ErrorIs(t, err, ErrNotCalibrating)

	events := rec.Recent(64)
	require.NotEmpty(t, events)
	assert.Equal(t, audit.EventCalibrateStart, events[0].Type)
	assert.Equal(t, audit.EventCalibrateComplete, events[len(events)-1].Type)
}

func TestStopWithoutCalibration(t *testing.T) {
	c := &Calibrator{StateDir: t.TempDir()}
	require.ErrorIs(t, c.Stop("gpu-0"), ErrNotCalibrating)
}

func TestStopCancelsCalibration(t *testing.T) {
	c := &Calibrator{StateDir: t.TempDir()}
	dev := Device{ID: "gpu-0"}

	// Long-running calibration so the stop lands mid-flight.
	cfg := calibTestConfig()
	cfg.Steps = 64
	cfg.Optimizer.Epochs = 100000

	done := make(chan error, 1)
	go func() {
		_, err := c.Calibrate(context.Background(), dev, cfg)
		done <- err
	}()

	// Wait for the state file to appear, then stop.
	require.Eventually(t, func() bool {
		_, _, err := c.Active(dev.ID)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Stop(dev.ID))

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(30 * time.Second):
		t.Fatal("calibration did not stop")
	}
}

func TestCalibrateHonorsContext(t *testing.T) {
	c := &Calibrator{StateDir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Calibrate(ctx, Device{ID: "gpu-0"}, calibTestConfig())
	require.ErrorIs(t, err, context.Canceled)
}
