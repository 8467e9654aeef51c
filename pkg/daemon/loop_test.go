package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipc-tools/powerd/pkg/events"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

// fakeOS plays the prober, applier and power source at once. Applied plans
// become visible to the next probe, like on a real host.
type fakeOS struct {
	mu       sync.Mutex
	plan     powerplan.Plan
	probeErr error
	applyErr error
	ac       bool
	battery  *powerinfo.BatteryInfo
	applied  []powerplan.Plan

	delay    time.Duration
	inFlight int32
	overlaps int32
}

func newFakeOS(plan powerplan.Plan, ac bool) *fakeOS {
	return &fakeOS{plan: plan, ac: ac}
}

func (f *fakeOS) CurrentPlan(context.Context) (powerplan.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return "", f.probeErr
	}
	return f.plan, nil
}

func (f *fakeOS) Apply(_ context.Context, plan powerplan.Plan) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.AddInt32(&f.overlaps, 1)
	}
	defer atomic.AddInt32(&f.inFlight, -1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, plan)
	if f.applyErr != nil {
		return f.applyErr
	}
	f.plan = plan
	return nil
}

func (f *fakeOS) IsACConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ac
}

func (f *fakeOS) BatteryInfo() *powerinfo.BatteryInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.battery
}

func (f *fakeOS) setAC(ac bool) {
	f.mu.Lock()
	f.ac = ac
	f.mu.Unlock()
}

func (f *fakeOS) appliedPlans() []powerplan.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]powerplan.Plan(nil), f.applied...)
}

func newTestEngine(f *fakeOS) *Engine {
	return NewEngine(f, f, f, nil)
}

func TestDefaultState(t *testing.T) {
	e := newTestEngine(newFakeOS(powerplan.Balanced, true))
	assert.Equal(t, State{
		Mode:        powerplan.Standard,
		ActivePlan:  powerplan.Balanced,
		ACConnected: true,
	}, e.Snapshot())
}

func TestTickFollowsPolicy(t *testing.T) {
	tests := []struct {
		name     string
		mode     powerplan.Mode
		ac       bool
		start    powerplan.Plan
		wantPlan powerplan.Plan
	}{
		{"standard on AC", powerplan.Standard, true, powerplan.High, powerplan.Balanced},
		{"standard on battery", powerplan.Standard, false, powerplan.High, powerplan.Balanced},
		{"optimized on AC", powerplan.Optimized, true, powerplan.Balanced, powerplan.High},
		{"optimized on battery", powerplan.Optimized, false, powerplan.High, powerplan.Balanced},
		{"always-high on AC", powerplan.AlwaysHigh, true, powerplan.PowerSaver, powerplan.High},
		{"always-high on battery", powerplan.AlwaysHigh, false, powerplan.Balanced, powerplan.High},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeOS(tt.start, tt.ac)
			e := newTestEngine(f)
			_, err := e.SetMode(context.Background(), tt.mode)
			require.NoError(t, err)

			require.NoError(t, e.Tick(context.Background()))

			s := e.Snapshot()
			assert.Equal(t, tt.wantPlan, s.ActivePlan)
			assert.Equal(t, tt.ac, s.ACConnected)
			assert.Equal(t, tt.mode, s.Mode)
		})
	}
}

func TestTickIsIdempotent(t *testing.T) {
	f := newFakeOS(powerplan.High, true)
	e := newTestEngine(f)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Tick(context.Background()))
	}

	assert.Equal(t, []powerplan.Plan{powerplan.Balanced}, f.appliedPlans())
}

func TestTickNoCommandWhenAlreadyOnTarget(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	require.NoError(t, e.Tick(context.Background()))

	assert.Empty(t, f.appliedPlans())
}

func TestSetModeReconcilesBeforeReturning(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	s, err := e.SetMode(context.Background(), powerplan.Optimized)
	require.NoError(t, err)

	assert.Equal(t, powerplan.Optimized, s.Mode)
	assert.Equal(t, powerplan.High, s.ActivePlan)
	assert.Equal(t, []powerplan.Plan{powerplan.High}, f.appliedPlans())
}

func TestOptimizedFollowsPowerSource(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	_, err := e.SetMode(context.Background(), powerplan.Optimized)
	require.NoError(t, err)
	assert.Equal(t, powerplan.High, e.Snapshot().ActivePlan)

	f.setAC(false)
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, powerplan.Balanced, e.Snapshot().ActivePlan)
	assert.False(t, e.Snapshot().ACConnected)

	f.setAC(true)
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, powerplan.High, e.Snapshot().ActivePlan)
}

func TestSetModeKeepsModeWhenApplyFails(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	f.applyErr = &powerplan.ApplyError{Plan: powerplan.High, Kind: powerplan.ErrPermissionDenied}
	e := newTestEngine(f)

	s, err := e.SetMode(context.Background(), powerplan.AlwaysHigh)
	require.Error(t, err)
	assert.ErrorIs(t, err, powerplan.ErrPermissionDenied)

	assert.Equal(t, powerplan.AlwaysHigh, s.Mode)
	assert.Equal(t, powerplan.Balanced, s.ActivePlan)
}

func TestSetModeInvalid(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	s, err := e.SetMode(context.Background(), powerplan.Mode("turbo"))
	assert.ErrorIs(t, err, powerplan.ErrInvalidMode)
	assert.Equal(t, DefaultState(), s)
	assert.Empty(t, f.appliedPlans())
}

func TestSetPlan(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	s, err := e.SetPlan(context.Background(), powerplan.PowerSaver)
	require.NoError(t, err)
	assert.Equal(t, powerplan.PowerSaver, s.ActivePlan)
	assert.Equal(t, []powerplan.Plan{powerplan.PowerSaver}, f.appliedPlans())

	// The policy takes the plan back on the next tick.
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, powerplan.Balanced, e.Snapshot().ActivePlan)
}

func TestSetPlanInvalidLeavesStateAlone(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	s, err := e.SetPlan(context.Background(), powerplan.Plan("ultimate"))
	assert.ErrorIs(t, err, powerplan.ErrInvalidPlan)
	assert.Equal(t, powerplan.Balanced, s.ActivePlan)
	assert.Empty(t, f.appliedPlans())
}

func TestSetPlanFailureKeepsPreviousPlan(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	f.applyErr = &powerplan.ApplyError{Plan: powerplan.High, Kind: powerplan.ErrCommandFailed}
	e := newTestEngine(f)

	s, err := e.SetPlan(context.Background(), powerplan.High)
	var applyErr *powerplan.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, powerplan.Balanced, s.ActivePlan)
}

func TestProbeFailureKeepsLastKnownPlan(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	_, err := e.SetPlan(context.Background(), powerplan.High)
	require.NoError(t, err)

	f.mu.Lock()
	f.probeErr = &powerplan.ProbeError{Err: powerplan.ErrCommandFailed}
	f.mu.Unlock()

	// Last known is high, target is balanced, so one apply happens.
	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, powerplan.Balanced, e.Snapshot().ActivePlan)
	assert.Equal(t, []powerplan.Plan{powerplan.High, powerplan.Balanced}, f.appliedPlans())
}

func TestProbeReportsOutsideChange(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)
	_, err := e.SetMode(context.Background(), powerplan.AlwaysHigh)
	require.NoError(t, err)

	// Someone switches the plan from the control panel.
	f.mu.Lock()
	f.plan = powerplan.PowerSaver
	f.mu.Unlock()

	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, powerplan.High, e.Snapshot().ActivePlan)
	assert.Equal(t, []powerplan.Plan{powerplan.High, powerplan.High}, f.appliedPlans())
}

func TestOperationsDoNotOverlap(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	f.delay = 2 * time.Millisecond
	e := newTestEngine(f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = e.Tick(context.Background())
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = e.SetPlan(context.Background(), powerplan.Plans[i%len(powerplan.Plans)])
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = e.SetMode(context.Background(), powerplan.Modes[i%len(powerplan.Modes)])
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&f.overlaps))
	s := e.Snapshot()
	assert.True(t, s.ActivePlan.Valid())
	assert.True(t, s.Mode.Valid())
}

func TestSnapshotDoesNotWaitForCommands(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	f.delay = 200 * time.Millisecond
	e := newTestEngine(f)

	go func() { _, _ = e.SetPlan(context.Background(), powerplan.High) }()
	time.Sleep(20 * time.Millisecond)

	done := make(chan State, 1)
	go func() { done <- e.Snapshot() }()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Snapshot blocked on an in-flight plan change")
	}
}

func TestEventsPublished(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	hub := events.NewEventHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	e := NewEngine(f, f, f, hub)

	_, err := e.SetMode(context.Background(), powerplan.Optimized)
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, events.ModeChanged, ev.Name)
	mode, err := events.DecodeAs[events.ModeChangedEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "standard", mode.From)
	assert.Equal(t, "optimized", mode.To)

	ev = <-ch
	assert.Equal(t, events.PlanChanged, ev.Name)
	plan, err := events.DecodeAs[events.PlanChangedEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "balanced", plan.From)
	assert.Equal(t, "high", plan.To)
	assert.Equal(t, triggerMode, plan.Trigger)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFakeOS(powerplan.High, true)
	e := newTestEngine(f)

	sched, err := ParseSchedule("@every 10ms")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, sched)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return e.Snapshot().ActivePlan == powerplan.Balanced
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStartsWhileModeChanges(t *testing.T) {
	f := newFakeOS(powerplan.Balanced, true)
	e := newTestEngine(f)

	sched, err := ParseSchedule("@every 10ms")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	start := make(chan struct{})
	done := make(chan struct{})
	go func() {
		<-start
		e.Run(ctx, sched)
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.SetMode(context.Background(), powerplan.Optimized)
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	s := e.Snapshot()
	assert.Equal(t, powerplan.Optimized, s.Mode)
	assert.Equal(t, powerplan.High, s.ActivePlan)
	assert.Zero(t, atomic.LoadInt32(&f.overlaps))
}

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"@every 5s", "*/5 * * * * *", "* * * * *"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}
	_, err := ParseSchedule("every five seconds")
	assert.Error(t, err)
}
