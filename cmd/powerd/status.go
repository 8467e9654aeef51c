package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of powerd",
		Long:    `Get the policy mode, the active power plan, AC state and battery info from the daemon.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return err
			}

			if asJSON {
				return writeStatusJSON(cmd.OutOrStdout(), st)
			}
			writeStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the daemon response as JSON")

	return cmd
}

func writeStatusJSON(w io.Writer, st *powerinfo.Status) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func writeStatus(w io.Writer, st *powerinfo.Status) {
	fmt.Fprintln(w, bold("Power status:"))
	fmt.Fprintf(w, "  Policy mode: %s\n", bold("%s", st.PowerMode))
	fmt.Fprintf(w, "  Active plan: %s\n", planText(st.CurrentPlan))
	fmt.Fprintf(w, "  On AC power: %s\n", bool2Text(st.IsACConnected))
	if want := powerplan.Target(st.PowerMode, st.IsACConnected); want != st.CurrentPlan && want.Valid() {
		fmt.Fprintf(w, "    The %s mode asks for the %s plan; the daemon will switch on its next pass.\n", st.PowerMode, want)
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Battery status:"))
	if st.Battery == nil {
		fmt.Fprintln(w, "  No battery found.")
		return
	}

	fmt.Fprintf(w, "  Current charge: %s\n", bold("%d%%", st.Battery.Percent))

	state := color.GreenString("plugged in")
	if !st.Battery.PowerPlugged {
		state = color.RedString("discharging")
	}
	fmt.Fprintf(w, "  State: %s\n", bold("%s", state))

	if st.Battery.TimeLeft != nil {
		left := time.Duration(*st.Battery.TimeLeft) * time.Second
		fmt.Fprintf(w, "  Time left: %s\n", bold("%s", left.Round(time.Minute)))
	}
}

func planText(p powerplan.Plan) string {
	switch p {
	case powerplan.High:
		return color.New(color.Bold, color.FgRed).Sprint(p)
	case powerplan.PowerSaver:
		return color.New(color.Bold, color.FgGreen).Sprint(p)
	default:
		return bold("%s", p)
	}
}
