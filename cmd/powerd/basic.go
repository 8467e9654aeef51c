package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aipc-tools/powerd/pkg/powerplan"
	"github.com/aipc-tools/powerd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)

			daemonVersion, err := apiClient.GetVersion()
			if err != nil {
				logrus.Debugf("failed to get daemon version: %v", err)
				return
			}
			if daemonVersion != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": daemonVersion,
				}).Warn("Version mismatch between client and daemon. Reinstall the daemon with this binary.")
			}
		},
	}
}

func NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "plan [powersaver|balanced|high]",
		Short:     "Activate a power plan now",
		GroupID:   gBasic,
		ValidArgs: planNames(),
		Args:      cobra.ExactArgs(1),
		Long: `Activate a power plan now.

This overrides the policy mode until the next reconciliation pass, which puts
back the plan the mode asks for. Use "powerd mode" to change what the daemon
keeps active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient.SetPlan(powerplan.Plan(args[0]))
			if err != nil {
				return err
			}

			if !resp.Success {
				return fmt.Errorf("daemon could not activate %s plan (still %s): %s", args[0], resp.CurrentPlan, resp.Error)
			}

			logrus.Infof("successfully activated %s plan", resp.CurrentPlan)

			return nil
		},
	}
}

func NewModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "mode [standard|optimized|always-high]",
		Short:     "Set the policy mode",
		GroupID:   gBasic,
		ValidArgs: modeNames(),
		Args:      cobra.ExactArgs(1),
		Long: `Set the policy mode.

  standard     balanced plan, always
  optimized    high performance on AC power, balanced on battery
  always-high  high performance, always

The mode is kept in memory by the daemon and resets to standard when it
restarts.`,
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := apiClient.SetMode(powerplan.Mode(args[0]))
			if err != nil {
				return err
			}

			logrus.Infof("successfully set power mode to %s", resp.PowerMode)

			st, err := apiClient.GetStatus()
			if err == nil {
				logrus.Infof("active plan: %s", st.CurrentPlan)
			}

			return nil
		},
	}
}
