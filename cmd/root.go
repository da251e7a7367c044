// Package cmd for parsing command line arguments
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atvirokodosprendimai/netmodel/pkg/config"
	"github.com/atvirokodosprendimai/netmodel/pkg/prompt"
)

const DefaultPlanFile = "netmodel-plan.yaml"

type globals struct {
	configPath string
	planPath   string
	debug      bool
	encrypt    bool

	cfg      *config.Config
	password string
}

var g globals

var rootCmd = &cobra.Command{
	Use:   "netmodel",
	Short: "Model a live router network in GNS3",
	Long: `netmodel reads interface addresses and configuration from routers,
infers the links between them from shared subnets and recreates the
network as a GNS3 project with rewritten startup configurations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(g.debug)

		cfg, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.cfg = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).
		With().
		Timestamp().
		Logger()
}

// planPassword asks for the plan encryption password once per run. A new
// plan gets the password confirmed.
func planPassword(confirm bool) (string, error) {
	if !g.encrypt || g.password != "" {
		return g.password, nil
	}

	var err error
	if confirm {
		g.password, err = prompt.ReadPasswordTwice("Enter plan encryption password: ")
	} else {
		g.password, err = prompt.ReadPassword("Enter plan encryption password: ")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return g.password, nil
}

func init() {
	setupLogger(false)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default ./netmodel.yaml)")
	flags.StringVarP(&g.planPath, "plan", "p", DefaultPlanFile, "plan file")
	flags.BoolVarP(&g.debug, "debug", "d", false, "show debug level logs")
	flags.BoolVar(&g.encrypt, "encrypt", false, "encrypt the plan file with a password (asks for password)")
}
