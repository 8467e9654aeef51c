package main

import (
	"github.com/fatih/color"

	"github.com/aipc-tools/powerd/pkg/powerplan"
)

func planNames() []string {
	names := make([]string, 0, len(powerplan.Plans))
	for _, p := range powerplan.Plans {
		names = append(names, string(p))
	}
	return names
}

func modeNames() []string {
	names := make([]string, 0, len(powerplan.Modes))
	for _, m := range powerplan.Modes {
		names = append(names, string(m))
	}
	return names
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
