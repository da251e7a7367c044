package topology

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// BuildLinkMap resolves every link into simulator link members using the
// node ids assigned by the simulator and the ports from Allocate. Links with
// a member that has no id or no port are left out and reported in the
// returned error; the others are still returned.
func BuildLinkMap(links []Link, nodes []Node) ([]LinkDescriptor, error) {
	byName := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	var errs *multierror.Error
	descriptors := make([]LinkDescriptor, 0, len(links))

	for _, link := range links {
		desc := LinkDescriptor{
			LinkID:  link.ID,
			Subnet:  link.Subnet,
			Members: make([]Member, 0, len(link.Nodes)),
		}

		var err error
		for _, name := range link.Nodes {
			var m Member
			m, err = resolveMember(byName, name, link.Subnet)
			if err != nil {
				break
			}
			desc.Members = append(desc.Members, m)
		}

		if err != nil {
			errs = multierror.Append(errs, &CollaboratorError{
				Op:     "resolve",
				Entity: fmt.Sprintf("link %d (%s)", link.ID, link.Subnet),
				Err:    err,
			})
			continue
		}

		descriptors = append(descriptors, desc)
	}

	return descriptors, errs.ErrorOrNil()
}

func resolveMember(nodes map[string]Node, name, subnet string) (Member, error) {
	node, ok := nodes[name]
	if !ok {
		return Member{}, fmt.Errorf("unknown node %q", name)
	}
	if node.SimID == "" {
		return Member{}, fmt.Errorf("node %q has no simulator id", name)
	}

	for _, intf := range node.Interfaces {
		if intf.Subnet == subnet && intf.SimName != "" {
			return Member{NodeID: node.SimID, Adapter: intf.Adapter, Port: intf.Port}, nil
		}
	}

	return Member{}, fmt.Errorf("node %q has no port on %s", name, subnet)
}
