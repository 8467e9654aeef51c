package powerplan

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPlan = errors.New("invalid power plan")
	ErrInvalidMode = errors.New("invalid power mode")

	ErrPermissionDenied = errors.New("permission denied")
	ErrToolNotFound     = errors.New("power plan tool not found")
	ErrCommandFailed    = errors.New("power plan command failed")

	// ErrUnsupported is returned by probes on hosts without power plans.
	ErrUnsupported = errors.New("power plans are not supported on this platform")
	// ErrUnknownPlan means the probe ran but the output matched no known plan.
	ErrUnknownPlan = errors.New("active power plan not recognized")
)

// ApplyError describes why a plan could not be activated. It unwraps to
// one of ErrPermissionDenied, ErrToolNotFound or ErrCommandFailed.
type ApplyError struct {
	Plan   Plan
	Kind   error
	Detail string
}

func (e *ApplyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to activate %s plan: %v", e.Plan, e.Kind)
	}
	return fmt.Sprintf("failed to activate %s plan: %v: %s", e.Plan, e.Kind, e.Detail)
}

func (e *ApplyError) Unwrap() error {
	return e.Kind
}

// ProbeError is a failed attempt to read the active plan. Callers recover
// from it with OrLastKnown.
type ProbeError struct {
	Err    error
	Detail string
}

func (e *ProbeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to probe active power plan: %v", e.Err)
	}
	return fmt.Sprintf("failed to probe active power plan: %v: %s", e.Err, e.Detail)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// OrLastKnown returns probed when err is nil and lastKnown otherwise.
func OrLastKnown(probed Plan, err error, lastKnown Plan) Plan {
	if err != nil || !probed.Valid() {
		return lastKnown
	}
	return probed
}
