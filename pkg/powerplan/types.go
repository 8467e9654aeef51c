package powerplan

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Plan is one of the power plans powerd knows how to activate.
type Plan string

const (
	PowerSaver Plan = "powersaver"
	Balanced   Plan = "balanced"
	High       Plan = "high"
)

// Plans lists every known plan.
var Plans = []Plan{PowerSaver, Balanced, High}

// Windows 10/11 built-in scheme GUIDs.
var planGUIDs = map[Plan]string{
	PowerSaver: "a1841308-3541-4fab-bc81-f71556f20b4a",
	Balanced:   "381b4222-f694-41f0-9685-ff5bb260df2e",
	High:       "8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c",
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planGUIDs[p]
	return ok
}

// GUID returns the OS scheme identifier of p, or "" if p is unknown.
func (p Plan) GUID() string {
	return planGUIDs[p]
}

func (p Plan) String() string {
	return string(p)
}

// UnmarshalJSON rejects unknown plan names.
func (p *Plan) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return pkgerrors.Wrapf(ErrInvalidPlan, "%s", err)
	}
	parsed, err := ParsePlan(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlan converts a wire name into a Plan.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return "", pkgerrors.Wrapf(ErrInvalidPlan, "%q", s)
	}
	return p, nil
}

// PlanFromGUID matches a scheme GUID, case-insensitively.
func PlanFromGUID(guid string) (Plan, bool) {
	guid = strings.ToLower(strings.TrimSpace(guid))
	for p, g := range planGUIDs {
		if g == guid {
			return p, true
		}
	}
	return "", false
}

// Mode is the policy that maps AC state to a target plan.
type Mode string

const (
	Standard   Mode = "standard"
	Optimized  Mode = "optimized"
	AlwaysHigh Mode = "always-high"
)

// Modes lists every known mode.
var Modes = []Mode{Standard, Optimized, AlwaysHigh}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case Standard, Optimized, AlwaysHigh:
		return true
	}
	return false
}

func (m Mode) String() string {
	return string(m)
}

// UnmarshalJSON rejects unknown mode names.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return pkgerrors.Wrapf(ErrInvalidMode, "%s", err)
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode converts a wire name into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", pkgerrors.Wrapf(ErrInvalidMode, "%q", s)
	}
	return m, nil
}

// Target returns the plan a mode wants for the given AC state.
//
//	standard     any   -> balanced
//	optimized    AC    -> high
//	optimized    no AC -> balanced
//	always-high  any   -> high
func Target(mode Mode, acConnected bool) Plan {
	switch mode {
	case AlwaysHigh:
		return High
	case Optimized:
		if acConnected {
			return High
		}
		return Balanced
	default:
		return Balanced
	}
}
