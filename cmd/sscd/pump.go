package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/pump"
	"github.com/itohio/sscd/pkg/rig"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func onOff(on bool, onText, offText string) string {
	if on {
		return bold("%s", color.GreenString(onText))
	}
	return bold("%s", color.RedString(offText))
}

// withPump opens the pump laser for one command.
func withPump(fn func(p *pump.Pump) error) error {
	r, err := openRig(rig.Pump)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r.Pump)
}

func newPumpActionCommand(use, short string, action func(p *pump.Pump) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := withPump(action); err != nil {
				return fmt.Errorf("failed to %s: %w", short, err)
			}
			logrus.Infof("pump laser: %s", use)
			return nil
		},
	}
}

func NewPumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pump",
		Short:   "Control the pump laser",
		GroupID: gInstruments,
	}

	shutter := &cobra.Command{
		Use:   "shutter",
		Short: "Open or close the pump laser shutter",
	}
	shutter.AddCommand(
		newPumpActionCommand("open", "open the shutter", (*pump.Pump).OpenShutter),
		newPumpActionCommand("close", "close the shutter", (*pump.Pump).CloseShutter),
	)

	cmd.AddCommand(
		newPumpActionCommand("on", "power the diode", (*pump.Pump).On),
		newPumpActionCommand("off", "power the diode down", (*pump.Pump).Off),
		shutter,
		&cobra.Command{
			Use:   "power [watts]",
			Short: "Set the output power",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				watts, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid power: %v", err)
				}
				if err := withPump(func(p *pump.Pump) error { return p.SetPower(watts) }); err != nil {
					return err
				}
				logrus.Infof("pump laser power set to %g W", watts)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the diode, shutter and output power state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPump(func(p *pump.Pump) error {
					on, err := p.DiodeIsOn()
					if err != nil {
						return err
					}
					open, err := p.ShutterIsOpen()
					if err != nil {
						return err
					}
					watts, err := p.CurrentPower()
					if err != nil {
						return err
					}

					cmd.Println(bold("Pump laser:"))
					cmd.Printf("  Diode: %s\n", onOff(on, "on", "off"))
					cmd.Printf("  Shutter: %s\n", onOff(open, "open", "closed"))
					cmd.Printf("  Output power: %s\n", bold("%.3f W", watts))
					return nil
				})
			},
		},
	)

	return cmd
}
