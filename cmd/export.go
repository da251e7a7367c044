package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atvirokodosprendimai/netmodel/pkg/graphdb"
	"github.com/atvirokodosprendimai/netmodel/pkg/plan"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the planned topology to Neo4j",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := planPassword(false)
		if err != nil {
			return err
		}

		f, err := plan.Load(g.planPath, password)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		n := g.cfg.Neo4j
		exporter, err := graphdb.Connect(ctx, n.URI, n.User, n.Password, n.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := exporter.Close(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to close neo4j driver")
			}
		}()

		return exporter.Export(ctx, &f.Plan)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
