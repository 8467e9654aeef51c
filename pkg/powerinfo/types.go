package powerinfo

import "github.com/aipc-tools/powerd/pkg/powerplan"

// BatteryInfo is the battery section of the status response. Keys match
// the psutil-style shape existing dashboards consume.
type BatteryInfo struct {
	Percent      int     `json:"percent"`
	PowerPlugged bool    `json:"power_plugged"`
	TimeLeft     *uint64 `json:"time_left"`
}

// Status is the body of GET /api/power/status.
type Status struct {
	Success       bool           `json:"success"`
	CurrentPlan   powerplan.Plan `json:"currentPlan"`
	IsACConnected bool           `json:"isACConnected"`
	PowerMode     powerplan.Mode `json:"powerMode"`
	Battery       *BatteryInfo   `json:"battery"`
}

type SetPlanRequest struct {
	Plan string `json:"plan"`
}

// SetPlanResponse is returned with 200 whether or not the plan could be
// activated; Success tells them apart.
type SetPlanResponse struct {
	Success     bool           `json:"success"`
	CurrentPlan powerplan.Plan `json:"currentPlan"`
	Error       string         `json:"error,omitempty"`
}

type SetModeRequest struct {
	Mode string `json:"mode"`
}

type SetModeResponse struct {
	Success   bool           `json:"success"`
	PowerMode powerplan.Mode `json:"powerMode"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
