package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/lia"
	"github.com/itohio/sscd/pkg/rig"
	"github.com/itohio/sscd/pkg/sample"
)

// withLIA opens and configures the lock-in amplifier for one command.
func withLIA(fn func(d *lia.LIA) error) error {
	r, err := openRig(rig.LIA)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r.LIA)
}

func NewLIACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lia",
		Short:   "Query the lock-in amplifier",
		GroupID: gInstruments,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "idn",
			Short: "Print the identification and whether it is the expected amplifier",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withLIA(func(d *lia.LIA) error {
					idn, err := d.Identify()
					if err != nil {
						return err
					}
					cmd.Printf("%s (%s)\n", idn, onOff(idn == lia.Identity, "expected", "unexpected"))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "read",
			Short: "Print the X, noise, R and DC outputs and one snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withLIA(func(d *lia.LIA) error {
					outputs := []struct {
						name string
						read func() (string, error)
					}{
						{"X", d.AC},
						{"XN", d.Noise},
						{"R", d.SignalMag},
						{"IN3", d.DC},
					}
					for _, o := range outputs {
						v, err := o.read()
						if err != nil {
							return fmt.Errorf("failed to read %s: %w", o.name, err)
						}
						cmd.Printf("  %-4s %s\n", o.name, bold("%s", strings.TrimSpace(v)))
					}

					text, err := d.Snapshot()
					if err != nil {
						return err
					}
					snap, err := sample.ParseSnapshot(text)
					if err != nil {
						return err
					}
					cmd.Printf("  snapshot ac=%g r=%g xn=%g dc=%g\n", snap.AC, snap.R, snap.XN, snap.DC)
					return nil
				})
			},
		},
	)

	return cmd
}
