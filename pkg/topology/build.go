package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/atvirokodosprendimai/netmodel/pkg/rewrite"
)

// DefaultExcludePrefixLengths skips /24 subnets, which on the modeled
// networks are loopbacks and test LANs rather than router links.
var DefaultExcludePrefixLengths = []int{24}

// Decider picks which candidate links to leave out of the simulation.
type Decider interface {
	Decide(ctx context.Context, candidates []Link) ([]int, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, candidates []Link) ([]int, error)

func (f DeciderFunc) Decide(ctx context.Context, candidates []Link) ([]int, error) {
	return f(ctx, candidates)
}

// Options tune how Build turns device state into a plan.
type Options struct {
	Alloc                AllocOptions
	ExcludePrefixLengths []int
	ExcludePatterns      []string
}

// DefaultOptions returns the allocation defaults, the /24 exclusion and the
// default rewrite exclusions.
func DefaultOptions() Options {
	return Options{
		Alloc:                DefaultAllocOptions(),
		ExcludePrefixLengths: DefaultExcludePrefixLengths,
		ExcludePatterns:      rewrite.DefaultExcludePatterns,
	}
}

// Plan is the complete simulated topology derived from one run's device
// state, ready to be created in the simulator.
type Plan struct {
	Nodes      []Node            `yaml:"nodes"`
	Candidates []Link            `yaml:"candidates"`
	Pruned     []int             `yaml:"pruned,omitempty"`
	Links      []Link            `yaml:"links"`
	Configs    map[string]string `yaml:"configs"`

	// SimLinks maps the ids of links already created in the simulator to
	// the simulator's link ids.
	SimLinks map[int]string `yaml:"sim_links,omitempty"`
}

// Node returns the plan's node called name.
func (p *Plan) Node(name string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Mappings returns the rename pairs of a node's surviving interfaces in
// allocation order.
func Mappings(node Node) []rewrite.Mapping {
	mappings := make([]rewrite.Mapping, 0, len(node.Interfaces))
	for _, intf := range node.Interfaces {
		mappings = append(mappings, rewrite.Mapping{
			Native:  intf.Name,
			Sim:     intf.SimName,
			Address: intf.Address.String(),
		})
	}
	return mappings
}

// Build runs the whole modeling pipeline over device states gathered up
// front. decide may be nil, in which case every candidate link is kept. Any
// malformed input aborts the build.
func Build(ctx context.Context, states []DeviceState, decide Decider, opts Options) (*Plan, error) {
	rw, err := rewrite.New(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(states))
	seen := make(map[string]bool, len(states))
	for _, st := range states {
		if seen[st.Name] {
			return nil, &InputShapeError{Device: st.Name, Field: "name", Reason: "duplicate device name"}
		}
		seen[st.Name] = true

		interfaces, err := Normalize(st.Name, st.Interfaces)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, Node{Name: st.Name, Interfaces: interfaces})
		log.Debug().Str("node", st.Name).Int("interfaces", len(interfaces)).Msg("normalized interfaces")
	}

	candidates := Synthesize(Correlate(nodes), opts.ExcludePrefixLengths)
	log.Info().Int("links", len(candidates)).Msg("discovered candidate links")

	var pruned []int
	if decide != nil {
		pruned, err = decide.Decide(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to decide which links to prune: %w", err)
		}
		if unknown := UnknownLinkIDs(candidates, pruned); len(unknown) > 0 {
			log.Warn().Ints("ids", unknown).Msg("ignoring unknown link ids")
		}
	}
	links := Prune(candidates, pruned)

	allocated, err := Allocate(nodes, links, opts.Alloc)
	if err != nil {
		return nil, err
	}

	configs := make(map[string]string, len(allocated))
	for _, node := range allocated {
		var raw string
		for _, st := range states {
			if st.Name == node.Name {
				raw = st.Config
				break
			}
		}

		out, err := rw.Rewrite(raw, Mappings(node))
		if err != nil {
			var missing *rewrite.StanzaNotFoundError
			if errors.As(err, &missing) {
				return nil, &InputShapeError{Device: node.Name, Field: "config", Reason: err.Error()}
			}
			return nil, fmt.Errorf("failed to rewrite config of %s: %w", node.Name, err)
		}
		configs[node.Name] = out
	}

	return &Plan{
		Nodes:      allocated,
		Candidates: candidates,
		Pruned:     pruned,
		Links:      links,
		Configs:    configs,
	}, nil
}
