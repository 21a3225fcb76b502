package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/config"
	"github.com/itohio/sscd/pkg/gui"
	"github.com/itohio/sscd/pkg/link"
	"github.com/itohio/sscd/pkg/rig"
)

var (
	logLevel   = "info"
	configPath = "config.yaml"
	debug      = false
	useMock    = false

	// loaded before every command runs
	cfg *config.Config
)

var (
	gScan         = "Scan:"
	gInstruments  = "Instruments:"
	gData         = "Data:"
	commandGroups = []string{
		gScan,
		gInstruments,
		gData,
	}
)

func setupLogger(level string) error {
	if debug {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if !color.NoColor {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.TimeOnly,
		})
	}

	return nil
}

func handleCmdError(err error) {
	var perr *link.ProtocolError
	switch {
	case errors.As(err, &perr):
		fmt.Fprintf(os.Stderr, "\nError: %s sent an unexpected reply to %q: %q\n", perr.Device, perr.Command, perr.Response)
		fmt.Fprintln(os.Stderr, "Is the right instrument connected to the configured port?")
	case errors.Is(err, link.ErrTimeout):
		fmt.Fprintln(os.Stderr, "\nError: an instrument did not answer in time")
		fmt.Fprintln(os.Stderr, "Check the cables, the power and the port names in the config file.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sscd",
		Short: "sscd runs steady-state circular dichroism scans",
		Long: `sscd runs steady-state circular dichroism scans.

It drives the lock-in amplifier, the photoelastic modulator and the
monochromator stage, and writes one result file per scan.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c

			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			return setupLogger(level)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.BoolVarP(&debug, "debug", "d", false, "log every transfer with the instruments")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.BoolVar(&useMock, "mock", false, "simulate every instrument")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewScanCommand(),
		NewStageCommand(),
		NewPumpCommand(),
		NewLIACommand(),
		NewPlotCommand(),
		NewRunsCommand(),
		NewConfigCommand(),
		gui.NewGUICommand(func() gui.Options {
			return gui.Options{Config: cfg, ConfigPath: configPath, Mock: useMock}
		}, gScan),
	)

	return cmd
}

// openRig opens the instruments a command needs.
func openRig(want rig.Devices) (*rig.Rig, error) {
	return rig.Open(cfg, want, useMock, logrus.NewEntry(logrus.StandardLogger()))
}
