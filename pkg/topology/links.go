package topology

import (
	"maps"
	"slices"
)

// Subnet is a subnet key together with the distinct nodes that have an
// interface in it.
type Subnet struct {
	Key       string
	PrefixLen int
	Nodes     []string
}

// Correlate groups the interfaces of all nodes by subnet key. The result is
// sorted by key so link numbering does not depend on map order.
func Correlate(nodes []Node) []Subnet {
	byKey := make(map[string]*Subnet)

	for _, node := range nodes {
		for _, intf := range node.Interfaces {
			s, ok := byKey[intf.Subnet]
			if !ok {
				s = &Subnet{Key: intf.Subnet, PrefixLen: intf.PrefixLen}
				byKey[intf.Subnet] = s
			}
			if !slices.Contains(s.Nodes, node.Name) {
				s.Nodes = append(s.Nodes, node.Name)
			}
		}
	}

	subnets := make([]Subnet, 0, len(byKey))
	for _, key := range slices.Sorted(maps.Keys(byKey)) {
		subnets = append(subnets, *byKey[key])
	}

	return subnets
}

// Synthesize numbers every subnet with at least two member nodes as a Link,
// starting at 1. Subnets whose prefix length is in excludePrefixLens are
// skipped before numbering.
func Synthesize(subnets []Subnet, excludePrefixLens []int) []Link {
	links := make([]Link, 0)
	id := 0

	for _, s := range subnets {
		if slices.Contains(excludePrefixLens, s.PrefixLen) {
			continue
		}
		if len(s.Nodes) < 2 {
			continue
		}

		id++
		links = append(links, Link{
			ID:     id,
			Subnet: s.Key,
			Nodes:  slices.Clone(s.Nodes),
		})
	}

	return links
}

// Prune returns links without the ones whose id is listed. Remaining links
// keep their ids.
func Prune(links []Link, ids []int) []Link {
	kept := make([]Link, 0, len(links))
	for _, l := range links {
		if slices.Contains(ids, l.ID) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// UnknownLinkIDs returns the ids that do not name any of links.
func UnknownLinkIDs(links []Link, ids []int) []int {
	var unknown []int
	for _, id := range ids {
		if !slices.ContainsFunc(links, func(l Link) bool { return l.ID == id }) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}
