package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aipc-tools/powerd/pkg/client"
	"github.com/aipc-tools/powerd/pkg/gui"
)

var (
	logLevel   = "info"
	configPath = ""
	daemonAddr = client.DefaultAddr
)

var apiClient = client.NewClient(daemonAddr)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: powerd daemon is not running")
		fmt.Fprintf(os.Stderr, "Is the daemon listening on %s? Have you installed it?\n", daemonAddr)
	case errors.Is(err, client.ErrRejected):
		fmt.Fprintln(os.Stderr, "\nValid plans: powersaver, balanced, high")
		fmt.Fprintln(os.Stderr, "Valid modes: standard, optimized, always-high")
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
		Use:   "powerd",
		Short: "powerd keeps the Windows power plan in line with a policy mode",
		Long: `powerd keeps the Windows power plan in line with a policy mode.

It runs as a small daemon that switches between the power saver, balanced and
high performance plans depending on the selected mode and whether the PC is
plugged in, and exposes a JSON API for dashboards.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			apiClient = client.NewClient(daemonAddr)
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (JSON)")
	globalFlags.StringVar(&daemonAddr, "addr", daemonAddr, "powerd daemon address (host:port)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewPlanCommand(),
		NewModeCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
		gui.NewTrayCommand(func() *client.Client { return apiClient }),
	)

	return cmd
}
