package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atvirokodosprendimai/netmodel/pkg/config"
	"github.com/atvirokodosprendimai/netmodel/pkg/gns3"
	"github.com/atvirokodosprendimai/netmodel/pkg/plan"
	"github.com/atvirokodosprendimai/netmodel/pkg/simulate"
	"github.com/atvirokodosprendimai/netmodel/pkg/ssh"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create the planned network in GNS3",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := planPassword(false)
		if err != nil {
			return err
		}

		f, err := plan.Load(g.planPath, password)
		if err != nil {
			return err
		}

		return deployAndSave(cmd.Context(), g.cfg, f, password, cmd.OutOrStdout())
	},
}

func newSink(cfg *config.Config) (simulate.Sink, func() error, error) {
	if cfg.Transfer.Mode == config.TransferDir {
		return &simulate.DirSink{Root: cfg.Transfer.Dir}, func() error { return nil }, nil
	}
	if cfg.Transfer.Host == "" {
		return nil, nil, fmt.Errorf("transfer.host is not configured")
	}

	user := cfg.Transfer.User
	if user == "" {
		user = cfg.SSH.User
	}
	sink := simulate.NewSSHSink(cfg.Transfer.Host, cfg.Transfer.Port, ssh.Options{
		User:     user,
		Password: cfg.SSH.Password,
		Timeout:  cfg.Timeouts.Transfer,
	})
	if cfg.Transfer.ConfigDir != "" {
		sink.ConfigDir = cfg.Transfer.ConfigDir
	}
	return sink, sink.Close, nil
}

func deploy(ctx context.Context, cfg *config.Config, f *plan.File, sink simulate.Sink) (*simulate.Report, error) {
	if cfg.GNS3.TemplateID == "" {
		return nil, fmt.Errorf("gns3.template_id is not configured")
	}

	client := gns3.NewClient(cfg.GNS3.URL, cfg.GNS3.RatePerSecond)
	v, err := client.WaitReady(ctx, cfg.Timeouts.Ready)
	if err != nil {
		return nil, fmt.Errorf("gns3 server at %s is not reachable: %w", cfg.GNS3.URL, err)
	}
	log.Info().Str("version", v.Version).Msg("connected to gns3")

	projectID := cfg.GNS3.ProjectID
	if projectID == "" && f.Project != nil {
		projectID = f.Project.ID
	}
	ws, err := gns3.OpenWorkspace(ctx, client, projectID, cfg.GNS3.ProjectName, cfg.GNS3.TemplateID)
	if err != nil {
		return nil, err
	}
	if f.Project != nil && f.Project.ID != ws.Project().ID {
		forgetSimIDs(&f.Plan)
	}
	f.Project = &plan.Project{ID: ws.Project().ID, Name: ws.Project().Name, URL: ws.URL()}

	d := &simulate.Deployer{
		Nodes: ws,
		Links: ws,
		Sink:  sink,
		Opts: simulate.Options{
			Concurrency:     cfg.Concurrency,
			NodeTimeout:     cfg.Timeouts.Node,
			LinkTimeout:     cfg.Timeouts.Link,
			TransferTimeout: cfg.Timeouts.Transfer,
		},
	}

	report, err := d.Deploy(ctx, &f.Plan)
	f.Plan.Nodes = report.Nodes
	f.Plan.SimLinks = report.SimLinks
	return report, err
}

// forgetSimIDs drops the ids a deployment into another project recorded.
func forgetSimIDs(p *topology.Plan) {
	for i := range p.Nodes {
		p.Nodes[i].SimID, p.Nodes[i].SimDir = "", ""
	}
	p.SimLinks = nil
}

// deployAndSave deploys f, records the simulator ids in the plan file and
// prints a summary. The plan is saved even when some entities failed.
func deployAndSave(ctx context.Context, cfg *config.Config, f *plan.File, password string, out io.Writer) error {
	sink, closeSink, err := newSink(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Warn().Err(err).Msg("failed to close transfer connection")
		}
	}()

	report, deployErr := deploy(ctx, cfg, f, sink)
	if report == nil {
		return deployErr
	}

	if err := f.Save(g.planPath, password); err != nil {
		log.Error().Err(err).Msg("failed to update plan file")
	}

	printReport(out, report)
	if f.Project != nil {
		fmt.Fprintln(out, "Project URL is: ", f.Project.URL)
		fmt.Fprintln(out, "Project name is: ", f.Project.Name)
	}

	return deployErr
}

func printReport(out io.Writer, r *simulate.Report) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Node", "GNS3 ID", "Startup config", "Transferred"})
	transferred := make(map[string]bool, len(r.Transferred))
	for _, name := range r.Transferred {
		transferred[name] = true
	}
	for _, n := range r.Nodes {
		t.AppendRow(table.Row{n.Name, n.SimID, n.StartupConfig, transferred[n.Name]})
	}
	t.SetStyle(table.StyleLight)
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "%d links created\n", len(r.Links))
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
