package gui

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/client"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
	"github.com/aipc-tools/powerd/pkg/powerplan"
)

const refreshInterval = 5 * time.Second

type tray struct {
	api *client.Client

	mStatus  *systray.MenuItem
	mPlan    *systray.MenuItem
	mBattery *systray.MenuItem
	modes    map[powerplan.Mode]*systray.MenuItem
}

// view is what the tray shows for one status response.
type view struct {
	title   string
	tooltip string
	status  string
	plan    string
	battery string
	mode    powerplan.Mode
}

var modeTitles = map[powerplan.Mode]string{
	powerplan.Standard:   "Standard (balanced)",
	powerplan.Optimized:  "Optimized (high on AC)",
	powerplan.AlwaysHigh: "Always high performance",
}

var planTitles = map[powerplan.Plan]string{
	powerplan.PowerSaver: "Power saver",
	powerplan.Balanced:   "Balanced",
	powerplan.High:       "High performance",
}

func offlineView() view {
	return view{
		title:   "⚠ powerd",
		tooltip: "powerd - daemon not reachable",
		status:  "Status: Disconnected",
		plan:    "Plan: -",
		battery: "Battery: -",
	}
}

func statusView(st *powerinfo.Status) view {
	v := view{
		title:   "⚡ " + planTitles[st.CurrentPlan],
		tooltip: fmt.Sprintf("powerd - %s plan, %s mode", st.CurrentPlan, st.PowerMode),
		plan:    "Plan: " + planTitles[st.CurrentPlan],
		mode:    st.PowerMode,
	}

	if st.IsACConnected {
		v.status = "Power: AC adapter"
	} else {
		v.status = "Power: Battery"
	}

	switch b := st.Battery; {
	case b == nil:
		v.battery = "Battery: none"
	case b.TimeLeft != nil:
		left := time.Duration(*b.TimeLeft) * time.Second
		v.battery = fmt.Sprintf("Battery: %d%% (%s left)", b.Percent, left.Round(time.Minute))
	default:
		v.battery = fmt.Sprintf("Battery: %d%%", b.Percent)
	}

	return v
}

func (t *tray) onReady(ctx context.Context) {
	systray.SetTitle("⚡ Loading...")
	systray.SetTooltip("powerd - Power Plan Manager")

	t.mStatus = systray.AddMenuItem("Status: Connecting...", "AC adapter or battery")
	t.mStatus.Disable()
	t.mPlan = systray.AddMenuItem("Plan: -", "Active power plan")
	t.mPlan.Disable()
	t.mBattery = systray.AddMenuItem("Battery: -", "Battery charge")
	t.mBattery.Disable()

	systray.AddSeparator()

	t.modes = make(map[powerplan.Mode]*systray.MenuItem, len(powerplan.Modes))
	for _, m := range powerplan.Modes {
		t.modes[m] = systray.AddMenuItemCheckbox(modeTitles[m], "Set policy mode to "+string(m), false)
	}

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the tray (the daemon keeps running)")

	refresh := make(chan struct{}, 1)
	poke := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	for m, item := range t.modes {
		go func(m powerplan.Mode, item *systray.MenuItem) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if _, err := t.api.SetMode(m); err != nil {
						logrus.Errorf("failed to set mode %s: %v", m, err)
					}
					poke()
				}
			}
		}(m, item)
	}

	go func() {
		select {
		case <-mQuit.ClickedCh:
			systray.Quit()
		case <-ctx.Done():
		}
	}()

	go t.watchEvents(ctx, poke)

	go func() {
		t.update()
		for {
			select {
			case <-ctx.Done():
				return
			case <-refresh:
				t.update()
			case <-time.After(refreshInterval):
				t.update()
			}
		}
	}()
}

// watchEvents refreshes the menu as soon as the daemon reports a change,
// reconnecting while the tray runs.
func (t *tray) watchEvents(ctx context.Context, poke func()) {
	for {
		ch, err := t.api.WatchEvents(ctx)
		if err != nil {
			logrus.Debugf("event stream unavailable: %v", err)
		} else {
			for ev := range ch {
				logrus.WithFields(logrus.Fields{
					"event": ev.Name,
					"data":  string(ev.Data),
				}).Debug("new event")
				poke()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(refreshInterval):
		}
	}
}

func (t *tray) update() {
	st, err := t.api.GetStatus()
	if err != nil {
		logrus.Debugf("cannot connect to daemon: %v", err)
		t.apply(offlineView())
		return
	}
	t.apply(statusView(st))
}

func (t *tray) apply(v view) {
	systray.SetTitle(v.title)
	systray.SetTooltip(v.tooltip)
	t.mStatus.SetTitle(v.status)
	t.mPlan.SetTitle(v.plan)
	t.mBattery.SetTitle(v.battery)
	for m, item := range t.modes {
		if m == v.mode {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}
