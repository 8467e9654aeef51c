package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/events"
	"github.com/aipc-tools/powerd/pkg/metrics"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

const (
	triggerTick = "tick"
	triggerMode = "mode"
	triggerPlan = "plan"
)

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a reconcile schedule such as "@every 5s".
func ParseSchedule(expr string) (cron.Schedule, error) {
	s, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid reconcile schedule %q", expr)
	}
	return s, nil
}

// PlanProber reads the active plan from the OS.
type PlanProber interface {
	CurrentPlan(ctx context.Context) (powerplan.Plan, error)
}

// PlanApplier activates a plan on the OS.
type PlanApplier interface {
	Apply(ctx context.Context, plan powerplan.Plan) error
}

// PowerSource reports AC and battery state. IsACConnected must fail open.
type PowerSource interface {
	IsACConnected() bool
	BatteryInfo() *powerinfo.BatteryInfo
}

// State is what powerd believes about the host.
type State struct {
	Mode        powerplan.Mode
	ActivePlan  powerplan.Plan
	ACConnected bool
}

// DefaultState is the state at process start.
func DefaultState() State {
	return State{
		Mode:        powerplan.Standard,
		ActivePlan:  powerplan.Balanced,
		ACConnected: true,
	}
}

// Engine keeps the active plan in line with the policy mode. Tick, SetMode
// and SetPlan are serialized by opMu, which is held across OS commands;
// mu only guards state so Snapshot never waits on a command.
type Engine struct {
	prober  PlanProber
	applier PlanApplier
	source  PowerSource
	hub     *events.EventHub

	opMu sync.Mutex

	mu    sync.RWMutex
	state State

	lastPrintTime time.Time
	lastStatus    loopStatus
	interval      time.Duration
}

// NewEngine returns an Engine in DefaultState. hub may be nil.
func NewEngine(prober PlanProber, applier PlanApplier, source PowerSource, hub *events.EventHub) *Engine {
	e := &Engine{
		prober:   prober,
		applier:  applier,
		source:   source,
		hub:      hub,
		state:    DefaultState(),
		interval: 5 * time.Second,
	}
	setPlanGauge(e.state.ActivePlan)
	setModeGauge(e.state.Mode)
	metrics.ACConnected.Set(1)
	return e
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// BatteryInfo reads the battery fresh; nil on hosts without one.
func (e *Engine) BatteryInfo() *powerinfo.BatteryInfo {
	return e.source.BatteryInfo()
}

// Tick runs one reconciliation pass. Failures are logged and returned;
// the next tick tries again.
func (e *Engine) Tick(ctx context.Context) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	metrics.ReconcileTicks.WithLabelValues(triggerTick).Inc()

	err := e.reconcileLocked(ctx, triggerTick)
	if err != nil {
		logrus.Errorf("reconcile failed, will retry next tick: %v", err)
	}
	return err
}

// SetMode stores mode and reconciles once before returning. The mode is
// kept even if activating the target plan fails.
func (e *Engine) SetMode(ctx context.Context, mode powerplan.Mode) (State, error) {
	if !mode.Valid() {
		return e.Snapshot(), pkgerrors.Wrapf(powerplan.ErrInvalidMode, "%q", mode)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	prev := e.state.Mode
	e.state.Mode = mode
	e.mu.Unlock()

	setModeGauge(mode)
	if prev != mode {
		logrus.WithFields(logrus.Fields{
			"from": prev,
			"to":   mode,
		}).Info("power mode changed")
		e.hub.PublishModeChanged(string(prev), string(mode))
	}

	metrics.ReconcileTicks.WithLabelValues(triggerMode).Inc()
	err := e.reconcileLocked(ctx, triggerMode)
	if err != nil {
		logrus.WithField("mode", mode).Errorf("mode stored but plan change failed: %v", err)
	}

	return e.Snapshot(), err
}

// SetPlan activates plan directly, bypassing the policy until the next tick.
func (e *Engine) SetPlan(ctx context.Context, plan powerplan.Plan) (State, error) {
	if !plan.Valid() {
		return e.Snapshot(), pkgerrors.Wrapf(powerplan.ErrInvalidPlan, "%q", plan)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	err := e.applyLocked(ctx, plan, triggerPlan)
	return e.Snapshot(), err
}

// Run ticks immediately and then on schedule until ctx is done. It returns
// after the in-flight tick, if any, has finished.
func (e *Engine) Run(ctx context.Context, schedule cron.Schedule) {
	now := time.Now()
	if next := schedule.Next(now); next.After(now) {
		// printStatus reads interval from SetMode and SetPlan, which may
		// already be serving requests.
		e.opMu.Lock()
		e.interval = next.Sub(now)
		e.opMu.Unlock()
	}

	_ = e.Tick(ctx)

	for {
		timer := time.NewTimer(time.Until(schedule.Next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_ = e.Tick(ctx)
		}
	}
}

func (e *Engine) reconcileLocked(ctx context.Context, trigger string) error {
	ac := e.source.IsACConnected()
	current := e.probePlanLocked(ctx)

	e.mu.Lock()
	e.state.ACConnected = ac
	mode := e.state.Mode
	e.mu.Unlock()

	if ac {
		metrics.ACConnected.Set(1)
	} else {
		metrics.ACConnected.Set(0)
	}

	target := powerplan.Target(mode, ac)
	e.printStatus(mode, ac, current, target)

	if target == current {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"mode":        mode,
		"acConnected": ac,
		"from":        current,
		"to":          target,
	}).Info("active plan does not match policy, changing")

	return e.applyLocked(ctx, target, trigger)
}

// probePlanLocked refreshes ActivePlan from the OS, keeping the last known
// plan when the probe fails.
func (e *Engine) probePlanLocked(ctx context.Context) powerplan.Plan {
	probed, err := e.prober.CurrentPlan(ctx)
	if err != nil {
		if errors.Is(err, powerplan.ErrUnsupported) {
			logrus.Tracef("plan probe unavailable, using last known plan: %v", err)
		} else {
			metrics.ProbeFailures.WithLabelValues("plan").Inc()
			logrus.Warnf("plan probe failed, using last known plan: %v", err)
		}
	}

	e.mu.Lock()
	prev := e.state.ActivePlan
	plan := powerplan.OrLastKnown(probed, err, prev)
	e.state.ActivePlan = plan
	e.mu.Unlock()

	if plan != prev {
		logrus.WithFields(logrus.Fields{
			"from": prev,
			"to":   plan,
		}).Info("active plan changed outside powerd")
		setPlanGauge(plan)
	}

	return plan
}

func (e *Engine) applyLocked(ctx context.Context, plan powerplan.Plan, trigger string) error {
	start := time.Now()
	err := e.applier.Apply(ctx, plan)
	metrics.ApplyLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlanApplies.WithLabelValues(string(plan), "error").Inc()
		return err
	}
	metrics.PlanApplies.WithLabelValues(string(plan), "ok").Inc()

	e.mu.Lock()
	prev := e.state.ActivePlan
	e.state.ActivePlan = plan
	e.mu.Unlock()

	setPlanGauge(plan)
	logrus.WithFields(logrus.Fields{
		"from":    prev,
		"to":      plan,
		"trigger": trigger,
	}).Info("power plan changed")

	e.hub.PublishPlanChanged(string(prev), string(plan), trigger)

	return nil
}

func setPlanGauge(active powerplan.Plan) {
	for _, p := range powerplan.Plans {
		v := 0.0
		if p == active {
			v = 1
		}
		metrics.ActivePlan.WithLabelValues(string(p)).Set(v)
	}
}

func setModeGauge(selected powerplan.Mode) {
	for _, m := range powerplan.Modes {
		v := 0.0
		if m == selected {
			v = 1
		}
		metrics.PolicyMode.WithLabelValues(string(m)).Set(v)
	}
}

type loopStatus struct {
	mode        powerplan.Mode
	acConnected bool
	current     powerplan.Plan
	target      powerplan.Plan
}

func (e *Engine) printStatus(mode powerplan.Mode, ac bool, current, target powerplan.Plan) {
	currentStatus := loopStatus{
		mode:        mode,
		acConnected: ac,
		current:     current,
		target:      target,
	}

	fields := logrus.Fields{
		"mode":        mode,
		"acConnected": ac,
		"currentPlan": current,
		"targetPlan":  target,
	}

	defer func() { e.lastPrintTime = time.Now() }()

	// Skip printing if nothing changed since the previous pass.
	if time.Since(e.lastPrintTime) < e.interval+time.Second && e.lastStatus == currentStatus {
		logrus.WithFields(fields).Trace("reconcile status")
		return
	}

	logrus.WithFields(fields).Debug("reconcile status")

	e.lastStatus = currentStatus
}
