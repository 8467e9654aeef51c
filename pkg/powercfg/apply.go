package powercfg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/powerplan"
)

const (
	powershellExe = "powershell"

	// ERROR_ACCESS_DENIED
	exitAccessDenied = 5
)

var accessDeniedMarkers = []string{
	"access denied",
	"access is denied",
	"액세스가 거부",
}

// Applier activates power plans.
type Applier struct {
	runner    Runner
	supported bool
}

// NewApplier returns an Applier. When supported is false, Apply only
// logs and succeeds.
func NewApplier(runner Runner, supported bool) *Applier {
	return &Applier{
		runner:    runner,
		supported: supported,
	}
}

// Apply activates plan. If powercfg is refused for lack of privileges it
// retries once through an elevated PowerShell. Failures are returned as
// *powerplan.ApplyError.
func (a *Applier) Apply(ctx context.Context, plan powerplan.Plan) error {
	if !plan.Valid() {
		return pkgerrors.Wrapf(powerplan.ErrInvalidPlan, "%q", plan)
	}

	if !a.supported {
		logrus.WithField("plan", plan).Info("simulating power plan change")
		return nil
	}

	guid := plan.GUID()
	res, err := a.runner.Run(ctx, powercfgExe, "/SETACTIVE", guid)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNotFound) {
		return &powerplan.ApplyError{Plan: plan, Kind: powerplan.ErrToolNotFound, Detail: err.Error()}
	}

	if !isAccessDenied(res) {
		return &powerplan.ApplyError{Plan: plan, Kind: powerplan.ErrCommandFailed, Detail: commandDetail(res, err)}
	}

	logrus.WithFields(logrus.Fields{
		"plan":   plan,
		"detail": commandDetail(res, err),
	}).Warn("powercfg was denied, retrying elevated")

	res, err = a.runner.Run(ctx, powershellExe, elevatedArgs(guid)...)
	if err != nil {
		return &powerplan.ApplyError{Plan: plan, Kind: powerplan.ErrPermissionDenied, Detail: commandDetail(res, err)}
	}

	logrus.WithField("plan", plan).Info("power plan changed through elevated powershell")
	return nil
}

// elevatedArgs runs powercfg through a UAC prompt. Start-Process alone exits 0
// once the child is launched, so the child's exit code is passed through.
func elevatedArgs(guid string) []string {
	script := fmt.Sprintf(
		"$p = Start-Process -FilePath '%s' -ArgumentList '/SETACTIVE','%s' -Verb RunAs -Wait -PassThru -WindowStyle Hidden; exit $p.ExitCode",
		powercfgExe, guid,
	)
	return []string{"-NoProfile", "-NonInteractive", "-Command", script}
}

func isAccessDenied(res Result) bool {
	if res.ExitCode == exitAccessDenied {
		return true
	}
	out := strings.ToLower(res.Stderr + "\n" + res.Stdout)
	for _, m := range accessDeniedMarkers {
		if strings.Contains(out, m) {
			return true
		}
	}
	return false
}
