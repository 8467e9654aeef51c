package powercfg

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/aipc-tools/powerd/pkg/powerplan"
)

const powercfgExe = "powercfg"

// Supported reports whether this OS has power plans powercfg can manage.
func Supported() bool {
	return runtime.GOOS == "windows"
}

// Probe reads the active power plan.
type Probe struct {
	runner    Runner
	supported bool

	mu    sync.RWMutex
	names NameTable
}

// NewProbe returns a Probe. When supported is false every call returns
// ErrUnsupported without running anything.
func NewProbe(runner Runner, supported bool, names NameTable) *Probe {
	return &Probe{
		runner:    runner,
		supported: supported,
		names:     names,
	}
}

// SetNames replaces the localized name table.
func (p *Probe) SetNames(names NameTable) {
	p.mu.Lock()
	p.names = names
	p.mu.Unlock()
}

// CurrentPlan queries powercfg for the active scheme. Every failure is
// returned as a *powerplan.ProbeError.
func (p *Probe) CurrentPlan(ctx context.Context) (powerplan.Plan, error) {
	if !p.supported {
		return "", &powerplan.ProbeError{Err: powerplan.ErrUnsupported}
	}

	res, err := p.runner.Run(ctx, powercfgExe, "/GETACTIVESCHEME")
	if err != nil {
		kind := powerplan.ErrCommandFailed
		if errors.Is(err, ErrNotFound) {
			kind = powerplan.ErrToolNotFound
		}
		return "", &powerplan.ProbeError{Err: kind, Detail: commandDetail(res, err)}
	}

	p.mu.RLock()
	names := p.names
	p.mu.RUnlock()

	return ResolvePlan(res.Stdout, names)
}

// ResolvePlan maps `powercfg /GETACTIVESCHEME` output to a plan: by GUID
// first, then by localized display name.
func ResolvePlan(output string, names NameTable) (powerplan.Plan, error) {
	lower := strings.ToLower(output)
	for _, plan := range powerplan.Plans {
		if strings.Contains(lower, plan.GUID()) {
			return plan, nil
		}
	}
	if plan, ok := names.Lookup(lower); ok {
		return plan, nil
	}
	return "", &powerplan.ProbeError{
		Err:    powerplan.ErrUnknownPlan,
		Detail: strings.TrimSpace(output),
	}
}

func commandDetail(res Result, err error) string {
	if s := strings.TrimSpace(res.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		return s
	}
	return err.Error()
}
