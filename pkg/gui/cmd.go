package gui

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/version"
)

// NewGUICommand creates the command opening the main window. options is
// called when the command runs, after the configuration has been loaded.
func NewGUICommand(options func() Options, groupID string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gui",
		Short:   "Start the scan GUI",
		GroupID: groupID,
		Long: `Start the scan GUI.

The window plots every scan live. Settings changed in the GUI are saved to the
config file.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			log := logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit)
			log.Info("sscd gui")
			Run(options(), log)
		},
	}

	return cmd
}
