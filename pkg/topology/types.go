package topology

import (
	"net/netip"
)

// PrefixInfo is the per-address payload of the ipv4 address family.
// PrefixLength is a pointer so a missing field can be told apart from /0.
type PrefixInfo struct {
	PrefixLength *int `json:"prefix_length" yaml:"prefix_length"`
}

// RawInterfaces is a device's interface address data as reported by the
// device: interface name -> address family -> address -> prefix info.
type RawInterfaces map[string]map[string]map[string]PrefixInfo

// DeviceState is everything gathered from one device before modeling starts.
type DeviceState struct {
	Name       string
	Interfaces RawInterfaces
	Config     string
}

// Interface is one addressed interface of a node, with the simulator
// adapter and port it was given.
type Interface struct {
	Node      string     `yaml:"node"`
	Name      string     `yaml:"name"`
	Address   netip.Addr `yaml:"address"`
	PrefixLen int        `yaml:"prefix_len"`
	Subnet    string     `yaml:"subnet"`

	// Set by Allocate.
	Adapter int    `yaml:"adapter"`
	Port    int    `yaml:"port"`
	SimName string `yaml:"sim_name,omitempty"`
}

// Node is one discovered device. Interfaces and StartupConfig are filled by
// Allocate, SimID and SimDir once the simulator has created the node.
type Node struct {
	Name          string      `yaml:"name"`
	Interfaces    []Interface `yaml:"interfaces"`
	SimID         string      `yaml:"sim_id,omitempty"`
	SimDir        string      `yaml:"sim_dir,omitempty"`
	StartupConfig string      `yaml:"startup_config,omitempty"`
}

// Link is a subnet shared by two or more nodes.
type Link struct {
	ID     int      `yaml:"id"`
	Subnet string   `yaml:"subnet"`
	Nodes  []string `yaml:"nodes"`
}

// Member is one end of a simulator link.
type Member struct {
	NodeID  string `json:"node_id" yaml:"node_id"`
	Adapter int    `json:"adapter_number" yaml:"adapter_number"`
	Port    int    `json:"port_number" yaml:"port_number"`
}

// LinkDescriptor is what the simulator needs to wire one Link.
type LinkDescriptor struct {
	LinkID  int      `yaml:"link_id"`
	Subnet  string   `yaml:"subnet"`
	Members []Member `yaml:"members"`
}
