package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

func TestWriteStatus(t *testing.T) {
	color.NoColor = true
	left := uint64(5430)

	tests := []struct {
		name     string
		st       powerinfo.Status
		contains []string
		missing  []string
	}{
		{
			name: "desktop",
			st: powerinfo.Status{
				Success: true, CurrentPlan: powerplan.Balanced, IsACConnected: true, PowerMode: powerplan.Standard,
			},
			contains: []string{"Policy mode: standard", "Active plan: balanced", "No battery found."},
			missing:  []string{"next pass"},
		},
		{
			name: "laptop on battery",
			st: powerinfo.Status{
				Success: true, CurrentPlan: powerplan.Balanced, IsACConnected: false, PowerMode: powerplan.Optimized,
				Battery: &powerinfo.BatteryInfo{Percent: 64, TimeLeft: &left},
			},
			contains: []string{"Current charge: 64%", "State: discharging", "Time left: 1h31m0s"},
			missing:  []string{"next pass"},
		},
		{
			name: "plan pending",
			st: powerinfo.Status{
				Success: true, CurrentPlan: powerplan.Balanced, IsACConnected: true, PowerMode: powerplan.AlwaysHigh,
				Battery: &powerinfo.BatteryInfo{Percent: 100, PowerPlugged: true},
			},
			contains: []string{"asks for the high plan", "State: plugged in"},
			missing:  []string{"Time left"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeStatus(&buf, &tt.st)
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.missing {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestWriteStatusJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatusJSON(&buf, &powerinfo.Status{
		Success: true, CurrentPlan: powerplan.High, IsACConnected: true, PowerMode: powerplan.Optimized,
	}))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "high", raw["currentPlan"])
	assert.Equal(t, "optimized", raw["powerMode"])
	assert.Nil(t, raw["battery"])
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"daemon", "status", "plan", "mode", "version", "install", "uninstall", "tray"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	assert.ElementsMatch(t, []string{"powersaver", "balanced", "high"}, planNames())
	assert.ElementsMatch(t, []string{"standard", "optimized", "always-high"}, modeNames())
}
