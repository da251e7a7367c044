package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/atvirokodosprendimai/netmodel/pkg/plan"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a saved plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := planPassword(false)
		if err != nil {
			return err
		}

		f, err := plan.Load(g.planPath, password)
		if err != nil {
			return err
		}

		show(cmd.OutOrStdout(), f)
		return nil
	},
}

func show(out io.Writer, f *plan.File) {
	if f.Project != nil {
		fmt.Fprintf(out, "Project %s (%s)\n", f.Project.Name, f.Project.URL)
	}

	nodes := table.NewWriter()
	nodes.AppendHeader(table.Row{"Node", "Interface", "Address", "Subnet", "Adapter/Port", "GNS3 name"})
	for _, n := range f.Plan.Nodes {
		for _, intf := range n.Interfaces {
			nodes.AppendRow(table.Row{
				n.Name, intf.Name, intf.Address, intf.Subnet,
				fmt.Sprintf("%d/%d", intf.Adapter, intf.Port), intf.SimName,
			})
		}
		nodes.AppendSeparator()
	}
	nodes.SetStyle(table.StyleLight)
	fmt.Fprintln(out, nodes.Render())

	links := table.NewWriter()
	links.AppendHeader(table.Row{"ID", "Subnet", "Nodes", "Pruned"})
	for _, l := range f.Plan.Candidates {
		links.AppendRow(table.Row{l.ID, l.Subnet, fmt.Sprint(l.Nodes), slices.Contains(f.Plan.Pruned, l.ID)})
	}
	links.SetStyle(table.StyleLight)
	fmt.Fprintln(out, links.Render())
}

func init() {
	rootCmd.AddCommand(showCmd)
}
