package topology

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

const FamilyIPv4 = "ipv4"

// Normalize turns a device's raw interface data into Interface records, one
// per interface that has an IPv4 address. Records come out in natural name
// order, which is the order ports are handed out in later.
func Normalize(node string, raw RawInterfaces) ([]Interface, error) {
	if strings.TrimSpace(node) == "" {
		return nil, &InputShapeError{Field: "name", Reason: "device name is empty"}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.SortFunc(names, NaturalCompare)

	interfaces := make([]Interface, 0, len(names))
	for _, name := range names {
		addrs, ok := raw[name][FamilyIPv4]
		if !ok || len(addrs) == 0 {
			continue
		}

		intf, err := normalizeInterface(node, name, addrs)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, intf)
	}

	return interfaces, nil
}

func normalizeInterface(node, name string, addrs map[string]PrefixInfo) (Interface, error) {
	var (
		best    netip.Addr
		bestLen int
	)

	for raw, info := range addrs {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return Interface{}, &InputShapeError{Device: node, Field: name, Reason: fmt.Sprintf("invalid address %q", raw)}
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			return Interface{}, &InputShapeError{Device: node, Field: name, Reason: fmt.Sprintf("address %q is not IPv4", raw)}
		}
		if info.PrefixLength == nil {
			return Interface{}, &InputShapeError{Device: node, Field: name, Reason: fmt.Sprintf("address %s has no prefix_length", addr)}
		}
		if *info.PrefixLength < 0 || *info.PrefixLength > 32 {
			return Interface{}, &InputShapeError{Device: node, Field: name, Reason: fmt.Sprintf("prefix length %d out of range", *info.PrefixLength)}
		}

		// One address per interface: keep the highest so repeated runs agree.
		if !best.IsValid() || addr.Compare(best) > 0 {
			best = addr
			bestLen = *info.PrefixLength
		}
	}

	if len(addrs) > 1 {
		log.Warn().Str("node", node).Str("interface", name).Int("addresses", len(addrs)).
			Str("kept", best.String()).Msg("interface has several IPv4 addresses, keeping one")
	}

	return Interface{
		Node:      node,
		Name:      name,
		Address:   best,
		PrefixLen: bestLen,
		Subnet:    SubnetKey(best, bestLen),
	}, nil
}

// SubnetKey returns the canonical CIDR of addr/bits with host bits cleared.
// Callers validate bits.
func SubnetKey(addr netip.Addr, bits int) string {
	return netip.PrefixFrom(addr, bits).Masked().String()
}

// NaturalCompare orders interface names with embedded numbers compared by
// value, so Ethernet0/2 sorts before Ethernet0/10.
func NaturalCompare(a, b string) int {
	x, y := a, b
	for x != "" && y != "" {
		cx, rx := leadingChunk(x)
		cy, ry := leadingChunk(y)

		if isDigit(cx[0]) && isDigit(cy[0]) {
			nx := strings.TrimLeft(cx, "0")
			ny := strings.TrimLeft(cy, "0")
			if c := cmp.Compare(len(nx), len(ny)); c != 0 {
				return c
			}
			if c := strings.Compare(nx, ny); c != 0 {
				return c
			}
		} else if c := strings.Compare(cx, cy); c != 0 {
			return c
		}

		x, y = rx, ry
	}

	if c := cmp.Compare(len(x), len(y)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func leadingChunk(s string) (chunk, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
