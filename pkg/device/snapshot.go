package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

// Snapshot is the on-disk form of a device's state, shaped like the
// get_interfaces_ip and get_config getters of common automation libraries.
// JSON files parse too since YAML is a superset.
type Snapshot struct {
	InterfacesIP topology.RawInterfaces `yaml:"interfaces_ip"`
	Config       struct {
		Running string `yaml:"running"`
	} `yaml:"config"`
}

var snapshotExtensions = []string{".yaml", ".yml", ".json"}

// SnapshotReader reads device state from files instead of live devices.
// A device's Snapshot path wins; otherwise <Dir>/<name>.{yaml,yml,json} is
// tried in that order.
type SnapshotReader struct {
	Dir string
}

func (r *SnapshotReader) ReadState(_ context.Context, dev Device) (topology.DeviceState, error) {
	path, err := r.locate(dev)
	if err != nil {
		return topology.DeviceState{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return topology.DeviceState{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return topology.DeviceState{}, &topology.InputShapeError{
			Device: dev.Name,
			Field:  "snapshot",
			Reason: fmt.Sprintf("%s: %v", path, err),
		}
	}

	interfaces := snap.InterfacesIP
	if interfaces == nil {
		// Fall back to the configuration when only get_config was saved.
		if interfaces, err = ParseInterfaces(snap.Config.Running); err != nil {
			return topology.DeviceState{}, &topology.InputShapeError{Device: dev.Name, Field: "config", Reason: err.Error()}
		}
	}

	return topology.DeviceState{
		Name:       dev.Name,
		Interfaces: interfaces,
		Config:     snap.Config.Running,
	}, nil
}

func (r *SnapshotReader) locate(dev Device) (string, error) {
	if dev.Snapshot != "" {
		if filepath.IsAbs(dev.Snapshot) || r.Dir == "" {
			return dev.Snapshot, nil
		}
		return filepath.Join(r.Dir, dev.Snapshot), nil
	}

	for _, ext := range snapshotExtensions {
		path := filepath.Join(r.Dir, dev.Name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat snapshot: %w", err)
		}
	}

	return "", fmt.Errorf("no snapshot for %s in %s", dev.Name, r.Dir)
}

// WriteSnapshot stores state in the form SnapshotReader reads back.
func WriteSnapshot(path string, st topology.DeviceState) error {
	var snap Snapshot
	snap.InterfacesIP = st.Interfaces
	snap.Config.Running = st.Config

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
