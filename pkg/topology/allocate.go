package topology

import (
	"fmt"
)

const (
	DefaultFirstAdapter    = 1
	DefaultAdapters        = 1
	DefaultPortsPerAdapter = 8
	DefaultInterfaceFormat = "Ethernet%d/%d"
)

// AllocOptions describes the simulator's per-node port layout.
type AllocOptions struct {
	FirstAdapter    int
	Adapters        int
	PortsPerAdapter int
	// InterfaceFormat renders the simulator interface name from adapter and port.
	InterfaceFormat string
}

func DefaultAllocOptions() AllocOptions {
	return AllocOptions{
		FirstAdapter:    DefaultFirstAdapter,
		Adapters:        DefaultAdapters,
		PortsPerAdapter: DefaultPortsPerAdapter,
		InterfaceFormat: DefaultInterfaceFormat,
	}
}

// Capacity is the number of ports one simulated node offers.
func (o AllocOptions) Capacity() int {
	return o.Adapters * o.PortsPerAdapter
}

func (o AllocOptions) validate() error {
	if o.FirstAdapter < 0 {
		return fmt.Errorf("first adapter must not be negative, got %d", o.FirstAdapter)
	}
	if o.Adapters < 1 {
		return fmt.Errorf("at least one adapter is required, got %d", o.Adapters)
	}
	if o.PortsPerAdapter < 1 {
		return fmt.Errorf("at least one port per adapter is required, got %d", o.PortsPerAdapter)
	}
	if o.InterfaceFormat == "" {
		return fmt.Errorf("interface format is empty")
	}
	return nil
}

// StartupConfigName is the startup-config file name of the seq-th node.
func StartupConfigName(seq int) string {
	return fmt.Sprintf("i%d_startup-config.cfg", seq)
}

// Allocate keeps only the interfaces that sit on one of links and gives each
// an adapter, a port and a simulator name, in discovery order per node. Ports
// fill one adapter before moving to the next. The input nodes are not
// modified.
func Allocate(nodes []Node, links []Link, opts AllocOptions) ([]Node, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation options: %w", err)
	}

	surviving := make(map[string]bool, len(links))
	for _, l := range links {
		surviving[l.Subnet] = true
	}

	allocated := make([]Node, 0, len(nodes))
	for i, node := range nodes {
		kept := make([]Interface, 0, len(node.Interfaces))
		for _, intf := range node.Interfaces {
			if surviving[intf.Subnet] {
				kept = append(kept, intf)
			}
		}

		if len(kept) > opts.Capacity() {
			return nil, &CapacityExceededError{
				Node:       node.Name,
				Interfaces: len(kept),
				Capacity:   opts.Capacity(),
			}
		}

		for j := range kept {
			kept[j].Adapter = opts.FirstAdapter + j/opts.PortsPerAdapter
			kept[j].Port = j % opts.PortsPerAdapter
			kept[j].SimName = fmt.Sprintf(opts.InterfaceFormat, kept[j].Adapter, kept[j].Port)
		}

		node.Interfaces = kept
		node.StartupConfig = StartupConfigName(i + 1)
		allocated = append(allocated, node)
	}

	return allocated, nil
}
