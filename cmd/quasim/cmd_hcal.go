package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quasim/internal/hcal"
	"quasim/internal/store"
)

var (
	hcalProfile string
	hcalCommit  bool
	hcalWatch   bool
)

// hcalCmd groups the host calibration planner commands
var hcalCmd = &cobra.Command{
	Use:   "hcal",
	Short: "Host calibration: inventory, reconfiguration plans, device calibration",
}

var hcalDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the device inventory",
	Long: `Loads and validates the YAML device inventory. With --watch the command
keeps running and re-prints the inventory whenever the file changes.`,
	RunE: runDiscover,
}

var hcalPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a reconfiguration plan toward a target profile",
	RunE:  runPlan,
}

var hcalApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a reconfiguration plan (dry run unless --commit)",
	RunE:  runApply,
}

var hcalCalibrateCmd = &cobra.Command{
	Use:   "calibrate [device-id]",
	Short: "Optimize a control schedule for one device",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalibrate,
}

var hcalStopCmd = &cobra.Command{
	Use:   "stop [device-id]",
	Short: "Stop an in-flight device calibration",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	hcalDiscoverCmd.Flags().BoolVar(&hcalWatch, "watch", false, "Re-emit the inventory on file changes")
	hcalPlanCmd.Flags().StringVar(&hcalProfile, "profile", "", "Target profile (required)")
	hcalPlanCmd.MarkFlagRequired("profile")
	hcalApplyCmd.Flags().StringVar(&hcalProfile, "profile", "", "Target profile (required)")
	hcalApplyCmd.MarkFlagRequired("profile")
	hcalApplyCmd.Flags().BoolVar(&hcalCommit, "commit", false, "Rewrite the inventory instead of dry-running")

	hcalCmd.AddCommand(hcalDiscoverCmd)
	hcalCmd.AddCommand(hcalPlanCmd)
	hcalCmd.AddCommand(hcalApplyCmd)
	hcalCmd.AddCommand(hcalCalibrateCmd)
	hcalCmd.AddCommand(hcalStopCmd)
	rootCmd.AddCommand(hcalCmd)
}

func printInventory(inv *hcal.Inventory) {
	fmt.Printf("%-10s %-8s %10s  %s\n", "DEVICE", "KIND", "MEMORY", "PROFILE")
	for _, d := range inv.Devices {
		fmt.Printf("%-10s %-8s %7d MiB  %s\n", d.ID, d.Kind, d.MemoryMiB, d.Profile)
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if !hcalWatch {
		inv, err := hcal.Load(rt.cfg.Hcal.InventoryPath)
		if err != nil {
			return err
		}
		printInventory(inv)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	ch, err := hcal.Watch(ctx, rt.cfg.Hcal.InventoryPath, logger)
	if err != nil {
		return err
	}
	for inv := range ch {
		fmt.Printf("--- %s\n", time.Now().Format(time.RFC3339))
		printInventory(inv)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	inv, err := hcal.Load(rt.cfg.Hcal.InventoryPath)
	if err != nil {
		return err
	}
	plan, err := inv.Plan(hcalProfile)
	if err != nil {
		return err
	}
	rt.recorder.PlanComputed(plan.Target, len(plan.Actions), len(plan.Skipped))

	fmt.Printf("Plan toward profile %q: %d actions, %d skipped\n",
		plan.Target, len(plan.Actions), len(plan.Skipped))
	for _, a := range plan.Actions {
		fmt.Printf("  ~ %-10s %s -> %s\n", a.Device, a.From, a.To)
	}
	for _, s := range plan.Skipped {
		fmt.Printf("  - %-10s skipped: %s\n", s.Device, s.Reason)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	inv, err := hcal.Load(rt.cfg.Hcal.InventoryPath)
	if err != nil {
		return err
	}
	plan, err := inv.Plan(hcalProfile)
	if err != nil {
		return err
	}
	rt.recorder.PlanComputed(plan.Target, len(plan.Actions), len(plan.Skipped))

	if err := hcal.Apply(inv, plan, rt.cfg.Hcal.InventoryPath, hcalCommit, rt.recorder); err != nil {
		return err
	}
	if hcalCommit {
		fmt.Printf("Committed %d actions to %s\n", len(plan.Actions), rt.cfg.Hcal.InventoryPath)
	} else {
		fmt.Printf("Dry run: %d actions would be applied. Re-run with --commit.\n", len(plan.Actions))
	}
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	inv, err := hcal.Load(rt.cfg.Hcal.InventoryPath)
	if err != nil {
		return err
	}
	dev, err := inv.Device(args[0])
	if err != nil {
		return err
	}

	calibrator := &hcal.Calibrator{
		StateDir: rt.cfg.Hcal.StateDir,
		Logger:   logger,
		Recorder: rt.recorder,
	}
	started := time.Now()
	out, err := calibrator.Calibrate(ctx, dev, rt.cfg.Simulation)
	if err != nil {
		return err
	}

	artifact, err := rt.writeArtifact(fmt.Sprintf("calibrate-%s-%s.json", dev.ID, out.RunID), out)
	if err != nil {
		return err
	}
	if err := rt.store.SaveRun(store.RunRecord{
		ID:        out.RunID,
		Kind:      "calibrate",
		StartedAt: started,
		Duration:  out.Elapsed,
		Objective: out.Objective,
		Artifact:  artifact,
	}); err != nil {
		return err
	}

	fmt.Printf("Calibrated %s: J=%.6f (%s)\n", dev.ID, out.Objective, out.Elapsed.Round(time.Millisecond))
	fmt.Printf("Artifact: %s\n", artifact)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	calibrator := &hcal.Calibrator{
		StateDir: rt.cfg.Hcal.StateDir,
		Logger:   logger,
		Recorder: rt.recorder,
	}
	if err := calibrator.Stop(args[0]); err != nil {
		return err
	}
	fmt.Printf("Stop requested for %s\n", args[0])
	return nil
}
