// Package graphdb writes a plan's topology into Neo4j so it can be browsed
// and queried next to the simulation.
package graphdb

import (
	"context"
	"fmt"
	"slices"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const (
	constraintDevice = `CREATE CONSTRAINT uniq_device_name IF NOT EXISTS
		FOR (d:Device)
		REQUIRE d.name IS UNIQUE`
	constraintSubnet = `CREATE CONSTRAINT uniq_subnet_prefix IF NOT EXISTS
		FOR (s:Subnet)
		REQUIRE s.prefix IS UNIQUE`
	mergeDevice = `MERGE (d:Device {name: $name})
		SET d.sim_id = $sim_id, d.startup_config = $startup_config`
	mergeSubnet = `MERGE (s:Subnet {prefix: $prefix})
		SET s.link_id = $link_id, s.pruned = $pruned`
	mergeAttachment = `MATCH (d:Device {name: $device}), (s:Subnet {prefix: $prefix})
		MERGE (d)-[a:ATTACHED {interface: $interface}]->(s)
		SET a.address = $address, a.sim_name = $sim_name, a.adapter = $adapter, a.port = $port`
)

// Runner executes one write query.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) error
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) Run(ctx context.Context, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, r.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(r.database))
	return err
}

type Exporter struct {
	runner Runner
	close  func(context.Context) error
}

// Connect opens a driver to uri and checks it can reach the server.
func Connect(ctx context.Context, uri, user, password, database string) (*Exporter, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", uri, err)
	}

	return &Exporter{
		runner: &driverRunner{driver: driver, database: database},
		close:  driver.Close,
	}, nil
}

func NewExporter(r Runner) *Exporter {
	return &Exporter{runner: r}
}

func (e *Exporter) Close(ctx context.Context) error {
	if e.close == nil {
		return nil
	}
	return e.close(ctx)
}

// Export merges devices, subnets and the interfaces that attach them. Every
// candidate link is written; pruned ones are flagged. Running it twice leaves
// the graph unchanged.
func (e *Exporter) Export(ctx context.Context, p *topology.Plan) error {
	for _, q := range []string{constraintDevice, constraintSubnet} {
		if err := e.runner.Run(ctx, q, map[string]any{}); err != nil {
			return fmt.Errorf("failed to prepare database: %w", err)
		}
	}

	for _, node := range p.Nodes {
		err := e.runner.Run(ctx, mergeDevice, map[string]any{
			"name":           node.Name,
			"sim_id":         node.SimID,
			"startup_config": node.StartupConfig,
		})
		if err != nil {
			return fmt.Errorf("failed to export device %s: %w", node.Name, err)
		}
	}

	links := p.Candidates
	if len(links) == 0 {
		links = p.Links
	}
	for _, link := range links {
		err := e.runner.Run(ctx, mergeSubnet, map[string]any{
			"prefix":  link.Subnet,
			"link_id": link.ID,
			"pruned":  slices.Contains(p.Pruned, link.ID),
		})
		if err != nil {
			return fmt.Errorf("failed to export link %d: %w", link.ID, err)
		}
	}

	// Only allocated interfaces are in the plan, so pruned subnets have no
	// attachments.
	for _, node := range p.Nodes {
		for _, intf := range node.Interfaces {
			err := e.runner.Run(ctx, mergeAttachment, map[string]any{
				"device":    node.Name,
				"prefix":    intf.Subnet,
				"interface": intf.Name,
				"address":   intf.Address.String(),
				"sim_name":  intf.SimName,
				"adapter":   intf.Adapter,
				"port":      intf.Port,
			})
			if err != nil {
				return fmt.Errorf("failed to export interface %s of %s: %w", intf.Name, node.Name, err)
			}
		}
	}

	log.Info().Int("devices", len(p.Nodes)).Int("links", len(links)).Msg("exported topology to neo4j")
	return nil
}
