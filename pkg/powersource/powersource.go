package powersource

import (
	"errors"
	"math"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/metrics"
	"github.com/aipc-tools/powerd/pkg/powerinfo"
)

// Status is a single reading of the power source.
type Status struct {
	// HasBattery is false on desktops.
	HasBattery  bool
	ACConnected bool
	Battery     *powerinfo.BatteryInfo
}

// Source reads AC and battery state through github.com/distatus/battery.
type Source struct {
	getAll func() ([]*battery.Battery, error)
}

// New returns a Source reading the host's batteries.
func New() *Source {
	return &Source{getAll: battery.GetAll}
}

// NewWithReader returns a Source backed by getAll.
func NewWithReader(getAll func() ([]*battery.Battery, error)) *Source {
	return &Source{getAll: getAll}
}

// State reads the power source. A host without batteries is reported as
// AC connected with no battery info.
func (s *Source) State() (Status, error) {
	bats, err := s.getAll()
	if err != nil {
		var errs battery.Errors
		if !errors.As(err, &errs) || len(bats) == 0 {
			return Status{}, pkgerrors.Wrapf(err, "failed to read battery state")
		}
		// Partial read: keep whatever fields were filled in.
		logrus.WithField("err", err).Debug("partial battery read")
	}

	var current, full, rate float64
	discharging := false
	found := false
	for _, b := range bats {
		if b == nil {
			continue
		}
		found = true
		current += b.Current
		full += b.Full
		if b.State == battery.Discharging {
			discharging = true
			rate += b.ChargeRate
		}
	}
	if !found {
		return Status{ACConnected: true}, nil
	}

	info := &powerinfo.BatteryInfo{
		Percent:      percent(current, full),
		PowerPlugged: !discharging,
		TimeLeft:     secondsLeft(discharging, current, rate),
	}
	return Status{
		HasBattery:  true,
		ACConnected: info.PowerPlugged,
		Battery:     info,
	}, nil
}

// IsACConnected fails open: any read error is reported as connected.
func (s *Source) IsACConnected() bool {
	st, err := s.State()
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("power_source").Inc()
		logrus.Errorf("failed to check AC adapter status, assuming connected: %v", err)
		return true
	}
	return st.ACConnected
}

// BatteryInfo returns nil on hosts without a battery or when the read fails.
func (s *Source) BatteryInfo() *powerinfo.BatteryInfo {
	st, err := s.State()
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("power_source").Inc()
		logrus.Errorf("failed to get battery info: %v", err)
		return nil
	}
	return st.Battery
}

func percent(current, full float64) int {
	if full <= 0 {
		return 0
	}
	p := int(math.Round(current / full * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// secondsLeft estimates time to empty. Capacities are mWh and the rate
// is mW, so current/rate is in hours.
func secondsLeft(discharging bool, current, rate float64) *uint64 {
	if !discharging || rate <= 0 || current <= 0 {
		return nil
	}
	secs := uint64(current / rate * 3600)
	if secs == 0 {
		return nil
	}
	return &secs
}
