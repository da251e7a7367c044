package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atvirokodosprendimai/netmodel/pkg/config"
	"github.com/atvirokodosprendimai/netmodel/pkg/device"
	"github.com/atvirokodosprendimai/netmodel/pkg/plan"
	"github.com/atvirokodosprendimai/netmodel/pkg/prompt"
	"github.com/atvirokodosprendimai/netmodel/pkg/ssh"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

type discoverFlags struct {
	exclude   []int
	noPrompt  bool
	outDir    string
	snapshots string
}

var df discoverFlags

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Read the devices and build a plan of the simulated network",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := planPassword(true)
		if err != nil {
			return err
		}

		f, err := discover(cmd.Context(), g.cfg, df, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if err := f.Save(g.planPath, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", g.planPath)
		return nil
	},
}

// newReader picks how each device is read: from a snapshot file when one is
// configured for it, otherwise over SSH.
func newReader(cfg *config.Config, snapshotDir string) (device.Reader, error) {
	sshOpts := ssh.Options{
		User:     cfg.SSH.User,
		Password: cfg.SSH.Password,
		Timeout:  cfg.Timeouts.Device,
	}
	if cfg.SSH.AskPassword && sshOpts.Password == "" {
		pw, err := prompt.ReadPassword("Enter device SSH password: ")
		if err != nil {
			return nil, err
		}
		sshOpts.Password = pw
	}

	snapshots := &device.SnapshotReader{Dir: snapshotDir}
	live := &device.RetryReader{
		Reader:  &device.SSHReader{Dial: device.SSHDialer(sshOpts)},
		Retries: cfg.Retries,
		Timeout: cfg.Timeouts.Device,
	}

	return device.ReaderFunc(func(ctx context.Context, dev device.Device) (topology.DeviceState, error) {
		if dev.Snapshot != "" || (snapshotDir != "" && dev.Host == "") {
			return snapshots.ReadState(ctx, dev)
		}
		if dev.Host == "" {
			return topology.DeviceState{}, &topology.InputShapeError{Device: dev.Name, Field: "host", Reason: "no host or snapshot"}
		}
		if dev.Port == 0 {
			dev.Port = cfg.SSH.Port
		}
		return live.ReadState(ctx, dev)
	}), nil
}

func newDecider(flags discoverFlags, out io.Writer) topology.Decider {
	if flags.noPrompt || len(flags.exclude) > 0 || !prompt.IsInteractive() {
		return topology.DeciderFunc(func(ctx context.Context, candidates []topology.Link) ([]int, error) {
			fmt.Fprintln(out, "Candidate links:")
			fmt.Fprintln(out, prompt.LinkTable(candidates))
			return prompt.Static(flags.exclude).Decide(ctx, candidates)
		})
	}
	return &prompt.Interactive{In: os.Stdin, Out: out}
}

func discover(ctx context.Context, cfg *config.Config, flags discoverFlags, out io.Writer) (*plan.File, error) {
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}

	snapshotDir := flags.snapshots
	if snapshotDir == "" {
		snapshotDir = cfg.SnapshotDir
	}
	reader, err := newReader(cfg, snapshotDir)
	if err != nil {
		return nil, err
	}

	states, err := device.PollAll(ctx, reader, cfg.Devices, cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	log.Info().Int("devices", len(states)).Msg("device state collected")

	p, err := topology.Build(ctx, states, newDecider(flags, out), cfg.TopologyOptions())
	if err != nil {
		return nil, err
	}

	if len(p.Pruned) > 0 {
		fmt.Fprintln(out, "Links after pruning:")
		fmt.Fprintln(out, prompt.LinkTable(p.Links))
	}

	raw := make(map[string]string, len(states))
	for _, st := range states {
		raw[st.Name] = st.Config
	}

	if flags.outDir != "" {
		if err := writeConfigs(flags.outDir, p, raw); err != nil {
			return nil, err
		}
	}

	return plan.New(p, raw), nil
}

// writeConfigs stores each device's raw configuration as <name>.cfg and the
// rewritten one under its startup config name.
func writeConfigs(dir string, p *topology.Plan, raw map[string]string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, node := range p.Nodes {
		if err := os.WriteFile(filepath.Join(dir, node.Name+".cfg"), []byte(raw[node.Name]), 0644); err != nil {
			return fmt.Errorf("failed to write config of %s: %w", node.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, node.StartupConfig), []byte(p.Configs[node.Name]), 0644); err != nil {
			return fmt.Errorf("failed to write startup config of %s: %w", node.Name, err)
		}
	}

	log.Info().Str("dir", dir).Msg("configs written")
	return nil
}

func addDiscoverFlags(cmd *cobra.Command, flags *discoverFlags) {
	cmd.Flags().IntSliceVarP(&flags.exclude, "exclude", "x", nil, "ids of candidate links to leave out, skips the prompt")
	cmd.Flags().BoolVar(&flags.noPrompt, "no-prompt", false, "keep every candidate link without asking")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "directory for raw and rewritten configs")
	cmd.Flags().StringVar(&flags.snapshots, "snapshots", "", "directory with device snapshots to read instead of live devices")
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	addDiscoverFlags(discoverCmd, &df)
}
