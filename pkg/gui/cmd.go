package gui

import (
	"context"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aipc-tools/powerd/pkg/client"
	"github.com/aipc-tools/powerd/pkg/version"
)

// NewTrayCommand returns the "tray" command. getClient is called after flags
// are parsed so --addr is honored.
func NewTrayCommand(getClient func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Show powerd in the system tray",
		Long: `Show powerd in the system tray.

The tray shows the active power plan and lets you switch the policy mode. It
talks to a running daemon and does not control the power plan itself.`,
		Run: func(_ *cobra.Command, _ []string) {
			Run(getClient())
		},
	}

	return cmd
}

// Run shows the tray icon and blocks until the user quits.
func Run(apiClient *client.Client) {
	logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit).Info("powerd tray")

	ctx, cancel := context.WithCancel(context.Background())
	t := &tray{api: apiClient}

	systray.Run(func() { t.onReady(ctx) }, func() {
		cancel()
		logrus.Info("powerd tray exiting")
	})
}
