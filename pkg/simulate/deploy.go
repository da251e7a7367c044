// Package simulate creates a built plan in the simulator: nodes first, then
// the links between them, then each node's startup configuration.
package simulate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

// NodeRef is what the simulator assigns to a created node.
type NodeRef struct {
	ID  string
	Dir string
}

type NodeCreator interface {
	CreateNode(ctx context.Context, name string, index, total int) (NodeRef, error)
}

// LinkCreator wires a link and returns the simulator's id for it.
type LinkCreator interface {
	CreateLink(ctx context.Context, desc topology.LinkDescriptor) (string, error)
}

// Sink delivers a startup configuration named file to a created node.
type Sink interface {
	Transfer(ctx context.Context, node topology.Node, file string, content []byte) error
}

type Options struct {
	Concurrency     int
	NodeTimeout     time.Duration
	LinkTimeout     time.Duration
	TransferTimeout time.Duration
}

// Report is the outcome of a deployment. Nodes carry the simulator ids of
// every node that exists in the simulator and SimLinks the ids of every
// link, including those from earlier deployments. Links lists only the
// links created by this deployment.
type Report struct {
	Nodes       []topology.Node
	Links       []topology.LinkDescriptor
	SimLinks    map[int]string
	Transferred []string
	Errors      *multierror.Error
}

func (r *Report) Err() error {
	return r.Errors.ErrorOrNil()
}

type Deployer struct {
	Nodes NodeCreator
	Links LinkCreator
	Sink  Sink
	Opts  Options
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Deploy creates p in the simulator. A failure for one node, link or
// transfer is recorded in the report and only stops the work that depends
// on that entity; the returned error is the report's aggregated error.
//
// Nodes with a SimID and links listed in p.SimLinks already exist and are
// not created again, so deploying the plan a failed run left behind only
// creates what is missing. Configs are transferred to every existing node.
func (d *Deployer) Deploy(ctx context.Context, p *topology.Plan) (*Report, error) {
	report := &Report{SimLinks: make(map[int]string, len(p.Links))}
	for id, simID := range p.SimLinks {
		report.SimLinks[id] = simID
	}
	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		report.Errors = multierror.Append(report.Errors, err)
		mu.Unlock()
	}

	nodes := make([]topology.Node, len(p.Nodes))
	copy(nodes, p.Nodes)

	g := new(errgroup.Group)
	if d.Opts.Concurrency > 0 {
		g.SetLimit(d.Opts.Concurrency)
	}
	for i := range nodes {
		if nodes[i].SimID != "" {
			log.Debug().Str("node", nodes[i].Name).Str("id", nodes[i].SimID).Msg("node already exists")
			continue
		}
		g.Go(func() error {
			node := &nodes[i]
			nctx, cancel := withTimeout(ctx, d.Opts.NodeTimeout)
			defer cancel()

			ref, err := d.Nodes.CreateNode(nctx, node.Name, i, len(nodes))
			if err != nil {
				// A node can exist even though setting it up failed.
				if ref.ID != "" {
					node.SimID, node.SimDir = ref.ID, ref.Dir
				}
				record(&topology.CollaboratorError{Op: "create node", Entity: node.Name, Err: err})
				return nil
			}
			node.SimID, node.SimDir = ref.ID, ref.Dir
			log.Info().Str("node", node.Name).Str("id", ref.ID).Msg("node created")
			return nil
		})
	}
	_ = g.Wait()
	report.Nodes = nodes

	if err := ctx.Err(); err != nil {
		record(err)
		return report, report.Err()
	}

	// Links whose members were not all created come back as resolve errors.
	descriptors, err := topology.BuildLinkMap(p.Links, nodes)
	if err != nil {
		record(err)
	}

	for _, desc := range descriptors {
		if simID, ok := report.SimLinks[desc.LinkID]; ok {
			log.Debug().Int("link", desc.LinkID).Str("id", simID).Msg("link already exists")
			continue
		}

		lctx, cancel := withTimeout(ctx, d.Opts.LinkTimeout)
		simID, err := d.Links.CreateLink(lctx, desc)
		cancel()
		if err != nil {
			record(&topology.CollaboratorError{
				Op:     "create link",
				Entity: fmt.Sprintf("%d (%s)", desc.LinkID, desc.Subnet),
				Err:    err,
			})
			continue
		}
		report.Links = append(report.Links, desc)
		report.SimLinks[desc.LinkID] = simID
		log.Info().Int("link", desc.LinkID).Str("subnet", desc.Subnet).Msg("link created")
	}

	if d.Sink == nil {
		return report, report.Err()
	}

	g = new(errgroup.Group)
	if d.Opts.Concurrency > 0 {
		g.SetLimit(d.Opts.Concurrency)
	}
	transferred := make([]bool, len(nodes))
	for i, node := range nodes {
		if node.SimID == "" {
			continue
		}
		g.Go(func() error {
			tctx, cancel := withTimeout(ctx, d.Opts.TransferTimeout)
			defer cancel()

			content := []byte(p.Configs[node.Name])
			if err := d.Sink.Transfer(tctx, node, node.StartupConfig, content); err != nil {
				record(&topology.CollaboratorError{Op: "transfer config to", Entity: node.Name, Err: err})
				return nil
			}
			transferred[i] = true
			log.Info().Str("node", node.Name).Str("file", node.StartupConfig).Msg("config transferred")
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range transferred {
		if ok {
			report.Transferred = append(report.Transferred, nodes[i].Name)
		}
	}

	return report, report.Err()
}
