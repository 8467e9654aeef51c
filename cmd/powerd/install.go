package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	daemonutils "github.com/aipc-tools/powerd/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   "Install powerd to start at logon",
		GroupID: gInstallation,
		Long: `Install powerd daemon as a scheduled task that starts at logon.

The task runs with highest privileges, so changing the power plan does not
need an elevation prompt. Run this command from an elevated shell. The
--config flag, if given, is passed on to the daemon.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Install(configPath)
			if err != nil {
				return fmt.Errorf("failed to install daemon: %w", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("The scheduled task will use the current binary (%s) at logon so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``powerd install'' again.\n", exePath)

			return nil
		},
	}
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall powerd",
		GroupID: gInstallation,
		Long: `Stop the powerd daemon and remove its scheduled task.

The active power plan is left as it is.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				return fmt.Errorf("failed to uninstall daemon: %w", err)
			}

			logrus.Infof("uninstallation succeeded")

			return nil
		},
	}
}
