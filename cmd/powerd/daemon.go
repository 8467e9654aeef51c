package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aipc-tools/powerd/pkg/daemon"
	"github.com/aipc-tools/powerd/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	listen := ""

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run powerd daemon in the foreground",
		GroupID: gAdvanced,
		Long: `Run powerd daemon in the foreground.

The daemon listens on 0.0.0.0 at the configured port (PORT environment
variable, then "port" in the config file, then 3012). Send SIGHUP to reload
the config file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("powerd daemon starting")
			return daemon.Run(configPath, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (host:port), overrides the configured port")

	return cmd
}
