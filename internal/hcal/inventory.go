// Package hcal plans and applies reconfiguration of the accelerator hosts
// that back large simulation sweeps. The planner is data-driven: it works
// against a YAML device inventory and a profile catalog, never against a
// hardware mock. Applying a plan is a dry run unless explicitly committed.
package hcal

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownProfile marks a plan or device referencing a profile the
	// catalog does not define.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrUnknownDevice marks a lookup of a device id not in the inventory.
	ErrUnknownDevice = errors.New("unknown device")
)

// Device is one accelerator in the inventory.
type Device struct {
	ID        string            `yaml:"id"`
	Kind      string            `yaml:"kind"`
	MemoryMiB int               `yaml:"memory_mib"`
	Profile   string            `yaml:"profile"`
	Labels    map[string]string `yaml:"labels,omitempty"`
}

// Profile is a named reconfiguration target with its requirements.
type Profile struct {
	MinMemoryMiB int      `yaml:"min_memory_mib"`
	Kinds        []string `yaml:"kinds,omitempty"` // allowed device kinds; empty allows any
}

// Inventory is the full device and profile catalog of one host.
type Inventory struct {
	Devices  []Device           `yaml:"devices"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Save writes the inventory back to disk.
func (inv *Inventory) Save(path string) error {
	data, err := yaml.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	return nil
}

// Validate checks id uniqueness and profile references.
func (inv *Inventory) Validate() error {
	seen := make(map[string]bool, len(inv.Devices))
	for _, d := range inv.Devices {
		if d.ID == "" {
			return fmt.Errorf("device with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Profile != "" {
			if _, ok := inv.Profiles[d.Profile]; !ok {
				return fmt.Errorf("device %s: %w: %q", d.ID, ErrUnknownProfile, d.Profile)
			}
		}
	}
	return nil
}

// Device returns the device with the given id.
func (inv *Inventory) Device(id string) (Device, error) {
	for _, d := range inv.Devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
}

// Compatible reports whether dev can host the profile, with a reason when it
// cannot.
func (p Profile) Compatible(dev Device) (bool, string) {
	if dev.MemoryMiB < p.MinMemoryMiB {
		return false, fmt.Sprintf("memory %d MiB below required %d MiB", dev.MemoryMiB, p.MinMemoryMiB)
	}
	if len(p.Kinds) > 0 {
		for _, k := range p.Kinds {
			if k == dev.Kind {
				return true, ""
			}
		}
		return false, fmt.Sprintf("kind %q not in %v", dev.Kind, p.Kinds)
	}
	return true, ""
}
