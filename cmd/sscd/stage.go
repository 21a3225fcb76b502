package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/calibration"
	"github.com/itohio/sscd/pkg/rig"
)

func parseIntArg(arg, valueName string) (int, error) {
	value, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}
	return value, nil
}

// parsePosition parses a stage position, rejecting values outside int32.
func parsePosition(arg string) (int32, error) {
	value, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid position: %v", err)
	}
	return int32(value), nil
}

func NewStageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stage",
		Short:   "Move the monochromator stage",
		GroupID: gInstruments,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "abs [position]",
			Short: "Move to an absolute position and wait until it is reached",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := parsePosition(args[0])
				if err != nil {
					return err
				}
				return moveStage(cmd.Context(), pos)
			},
		},
		&cobra.Command{
			Use:   "interpolate [calibration] [wavelength]",
			Short: "Move to the calibrated position of a wavelength",
			Long: `Move to the calibrated position of a wavelength.

The position is looked up (or interpolated) in the calibration table. The stage
first moves below the position by the configured backoff and then approaches
it from below.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				wl, err := parseIntArg(args[1], "wavelength")
				if err != nil {
					return err
				}
				table, err := calibration.Load(args[0])
				if err != nil {
					return err
				}
				pos, err := table.Lookup(wl)
				if err != nil {
					return err
				}
				logrus.Infof("%dnm is at position %d", wl, pos)

				approach := max(pos-cfg.Stage.Backoff, 0)
				return moveStage(cmd.Context(), approach, pos)
			},
		},
		&cobra.Command{
			Use:   "pos",
			Short: "Print the current position",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := openRig(rig.Stage)
				if err != nil {
					return err
				}
				defer r.Close()

				reading, err := r.Stage.Position()
				if err != nil {
					return err
				}
				cmd.Println(reading)
				return nil
			},
		},
		&cobra.Command{
			Use:   "home",
			Short: "Send the stage to its home position",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				r, err := openRig(rig.Stage)
				if err != nil {
					return err
				}
				defer r.Close()

				if err := r.Stage.Home(); err != nil {
					return err
				}
				logrus.Info("stage homing")
				return nil
			},
		},
	)

	return cmd
}

// moveStage visits every target in order, waiting for each to be reached.
func moveStage(ctx context.Context, targets ...int32) error {
	r, err := openRig(rig.Stage)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, target := range targets {
		if err := r.Stage.Move(ctx, target); err != nil {
			return err
		}
		logrus.Infof("stage at %d", target)
	}
	return nil
}
