package device

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/atvirokodosprendimai/netmodel/pkg/ssh"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const showRunningConfig = "show running-config"

// Session is the part of an SSH client the reader needs.
type Session interface {
	Run(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Dialer opens a Session to a device.
type Dialer func(ctx context.Context, host string, port int) (Session, error)

// SSHDialer returns a Dialer backed by pkg/ssh.
func SSHDialer(opts ssh.Options) Dialer {
	return func(ctx context.Context, host string, port int) (Session, error) {
		return ssh.NewClient(ctx, host, port, opts)
	}
}

// SSHReader logs into a device, fetches its running configuration and
// derives the interface addresses from it.
type SSHReader struct {
	Dial Dialer
}

func (r *SSHReader) ReadState(ctx context.Context, dev Device) (topology.DeviceState, error) {
	port := dev.Port
	if port == 0 {
		port = DefaultSSHPort
	}

	log.Debug().Str("device", dev.Name).Str("host", dev.Host).Int("port", port).Msg("connecting")
	client, err := r.Dial(ctx, dev.Host, port)
	if err != nil {
		return topology.DeviceState{}, fmt.Errorf("failed to connect to %s: %w", dev.Name, err)
	}
	defer client.Close()

	output, err := client.Run(ctx, showRunningConfig)
	if err != nil {
		return topology.DeviceState{}, fmt.Errorf("failed to read running config of %s: %w", dev.Name, err)
	}

	config := cleanOutput(output)
	interfaces, err := ParseInterfaces(config)
	if err != nil {
		return topology.DeviceState{}, &topology.InputShapeError{Device: dev.Name, Field: "config", Reason: err.Error()}
	}

	return topology.DeviceState{
		Name:       dev.Name,
		Interfaces: interfaces,
		Config:     config,
	}, nil
}

// cleanOutput strips CRs and the "Building configuration..." banner some
// devices print before the configuration.
func cleanOutput(output string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Building configuration") || strings.HasPrefix(line, "Current configuration") {
			continue
		}
		return strings.Join(lines[i:], "\n")
	}
	return ""
}

// ParseInterfaces extracts interface addresses from configuration text in
// the interfaces_ip shape. Both "ip address A MASK" and "ip(v4) address A/LEN"
// forms are understood; secondary addresses are included.
func ParseInterfaces(config string) (topology.RawInterfaces, error) {
	raw := topology.RawInterfaces{}
	current := ""

	for _, line := range strings.Split(config, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			current = ""
			if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "interface" {
				current = fields[1]
				raw[current] = map[string]map[string]topology.PrefixInfo{}
			}
			continue
		}
		if current == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 || (fields[0] != "ip" && fields[0] != "ipv4") || fields[1] != "address" {
			continue
		}

		addr, length, ok, err := parseAddress(fields[2:])
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", current, err)
		}
		if !ok {
			continue
		}

		if raw[current][topology.FamilyIPv4] == nil {
			raw[current][topology.FamilyIPv4] = map[string]topology.PrefixInfo{}
		}
		raw[current][topology.FamilyIPv4][addr] = topology.PrefixInfo{PrefixLength: &length}
	}

	return raw, nil
}

// parseAddress reads the arguments of an address line. ok is false for forms
// without a static address such as "ip address dhcp".
func parseAddress(args []string) (addr string, length int, ok bool, err error) {
	if strings.Contains(args[0], "/") {
		p, err := netip.ParsePrefix(args[0])
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid address %q", args[0])
		}
		return p.Addr().String(), p.Bits(), true, nil
	}

	a, err := netip.ParseAddr(args[0])
	if err != nil {
		return "", 0, false, nil
	}
	if len(args) < 2 {
		return "", 0, false, fmt.Errorf("address %s has no mask", a)
	}

	length, err = maskLength(args[1])
	if err != nil {
		return "", 0, false, err
	}
	return a.String(), length, true, nil
}

func maskLength(mask string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimPrefix(mask, "/")); err == nil && n >= 0 && n <= 32 {
		return n, nil
	}

	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return 0, fmt.Errorf("invalid mask %q", mask)
	}
	b := m.As4()
	ones, bits := net.IPv4Mask(b[0], b[1], b[2], b[3]).Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous mask %q", mask)
	}
	return ones, nil
}
