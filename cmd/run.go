package cmd

import (
	"github.com/spf13/cobra"
)

var rf discoverFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover the network and deploy it in one go",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := planPassword(true)
		if err != nil {
			return err
		}

		f, err := discover(cmd.Context(), g.cfg, rf, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := f.Save(g.planPath, password); err != nil {
			return err
		}

		return deployAndSave(cmd.Context(), g.cfg, f, password, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addDiscoverFlags(runCmd, &rf)
}
