package hcal

import (
	"fmt"

	"quasim/internal/audit"
)

// Action is one device reconfiguration step.
type Action struct {
	Device string `json:"device" yaml:"device"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Reason string `json:"reason" yaml:"reason"`
}

// Skip is a device the plan leaves untouched, with the reason.
type Skip struct {
	Device string `json:"device" yaml:"device"`
	Reason string `json:"reason" yaml:"reason"`
}

// Plan is a set of actions moving the inventory toward a target profile.
type Plan struct {
	Target  string   `json:"target" yaml:"target"`
	Actions []Action `json:"actions" yaml:"actions"`
	Skipped []Skip   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Plan computes the actions required to move every compatible device to the
// target profile. Devices already on the target, or incompatible with it,
// are reported as skipped.
func (inv *Inventory) Plan(target string) (*Plan, error) {
	profile, ok := inv.Profiles[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, target)
	}

	plan := &Plan{Target: target}
	for _, dev := range inv.Devices {
		if dev.Profile == target {
			plan.Skipped = append(plan.Skipped, Skip{Device: dev.ID, Reason: "already at target profile"})
			continue
		}
		if ok, reason := profile.Compatible(dev); !ok {
			plan.Skipped = append(plan.Skipped, Skip{Device: dev.ID, Reason: reason})
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Device: dev.ID,
			From:   dev.Profile,
			To:     target,
			Reason: fmt.Sprintf("profile %q -> %q", dev.Profile, target),
		})
	}
	return plan, nil
}

// Apply executes a plan against the inventory. Without commit this is a dry
// run: actions are audited but nothing changes on disk. With commit the
// device profiles are updated and the inventory is rewritten at path.
func Apply(inv *Inventory, plan *Plan, path string, commit bool, recorder *audit.Recorder) error {
	if _, ok := inv.Profiles[plan.Target]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, plan.Target)
	}

	for _, action := range plan.Actions {
		if recorder != nil {
			recorder.ApplyAction(action.Device, action.From, action.To, commit)
		}
		if !commit {
			continue
		}
		found := false
		for i := range inv.Devices {
			if inv.Devices[i].ID == action.Device {
				inv.Devices[i].Profile = action.To
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrUnknownDevice, action.Device)
		}
	}

	if !commit {
		return nil
	}
	if err := inv.Save(path); err != nil {
		return err
	}
	if recorder != nil {
		recorder.ApplyCommit(path, len(plan.Actions))
	}
	return nil
}
