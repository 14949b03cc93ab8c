package session

import (
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

func activeCalibration(t *testing.T, mode CalibrationMode, axes Axes) (*Calibration, *fakeDriver, *[]CalibrationState) {
	t.Helper()
	d := newFakeDriver()
	d.calibrationOK = true
	c := NewCalibration(d, NewRegistry(d), mode)
	var seen []CalibrationState
	c.OnTransition = func(_, to CalibrationState) { seen = append(seen, to) }
	if err := c.Activate(axes, 200*time.Millisecond); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return c, d, &seen
}

func TestCalibrationConvergesAndRegresses(t *testing.T) {
	c, _, seen := activeCalibration(t, InteractiveSave, Axes{Accel: true, Mag: true})

	steps := []struct {
		st   AxisStatus
		want CalibrationState
	}{
		{AxisStatus{Accel: 0, Mag: 0}, Monitoring},
		{AxisStatus{Accel: 3, Mag: 1}, Monitoring},
		{AxisStatus{Accel: 2, Mag: 3}, ReadyToPersist},
		{AxisStatus{Accel: 3, Mag: 3}, ReadyToPersist},
		{AxisStatus{Accel: 1, Mag: 3}, Monitoring},
		{AxisStatus{Accel: 2, Mag: 2}, ReadyToPersist},
		{AxisStatus{Accel: 3, Mag: 0}, Monitoring},
	}
	for i, s := range steps {
		c.Observe(s.st)
		if c.State() != s.want {
			t.Fatalf("step %d: state = %v, want %v", i, c.State(), s.want)
		}
	}
	want := []CalibrationState{CalibrationEnabled, Monitoring, ReadyToPersist, Monitoring, ReadyToPersist, Monitoring}
	if len(*seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", *seen, want)
		}
	}
}

func TestCalibrationIgnoresUnrequestedAxes(t *testing.T) {
	c, _, _ := activeCalibration(t, PassiveMonitor, Axes{Accel: true})
	c.Observe(AxisStatus{Accel: 2, Gyro: 0, Mag: 0})
	if c.State() != ReadyToPersist {
		t.Fatalf("state = %v", c.State())
	}
}

func TestCalibrationActivationFailureIsTerminal(t *testing.T) {
	d := newFakeDriver()
	d.calibrationOK = false
	reg := NewRegistry(d)
	c := NewCalibration(d, reg, InteractiveSave)

	err := c.Activate(Axes{Accel: true}, 200*time.Millisecond)
	if !errors.Is(err, ErrCalibrationUnsupported) {
		t.Fatalf("err = %v, want ErrCalibrationUnsupported", err)
	}
	if c.State() != Failed || c.Activated() {
		t.Fatalf("state = %v activated=%v", c.State(), c.Activated())
	}
	if d.calibrationAxes != [3]bool{true, false, false} {
		t.Fatalf("driver axes = %v", d.calibrationAxes)
	}
	if reg.Len() != 0 {
		t.Fatalf("reports subscribed after failure: %+v", reg.Active())
	}
	c.Observe(AxisStatus{Accel: 3})
	if c.State() != Failed {
		t.Fatalf("failed workflow moved to %v", c.State())
	}
	if err := c.Activate(Axes{Accel: true}, time.Second); err == nil {
		t.Fatal("reactivation after failure should be refused")
	}
	if d.calibrationCalls != 1 {
		t.Fatalf("calibration enable retried: %d calls", d.calibrationCalls)
	}
}

func TestCalibrationSubscribesAxisReports(t *testing.T) {
	_, d, _ := activeCalibration(t, PassiveMonitor, Axes{Mag: true})
	for _, rt := range []bno.ReportType{bno.GameRotation, bno.MagneticField, bno.MagneticFieldUncalibrated} {
		if d.enabled[rt] != 200*time.Millisecond {
			t.Fatalf("%v not enabled at 200ms: %v", rt, d.enabled)
		}
	}
	if len(d.enabled) != 3 {
		t.Fatalf("unexpected reports: %v", d.enabled)
	}
}

func TestCalibrationPersist(t *testing.T) {
	c, d, _ := activeCalibration(t, InteractiveSave, Axes{Accel: true})

	if err := c.Persist(); !errors.Is(err, ErrNotReadyToPersist) {
		t.Fatalf("persist before convergence: %v", err)
	}
	c.Observe(AxisStatus{Accel: 3})
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if c.State() != Persisted || d.persistCalls != 1 {
		t.Fatalf("state=%v persistCalls=%d", c.State(), d.persistCalls)
	}
	c.Observe(AxisStatus{Accel: 0})
	if c.State() != Persisted {
		t.Fatalf("persisted workflow moved to %v", c.State())
	}
	if err := c.Persist(); !errors.Is(err, ErrNotReadyToPersist) {
		t.Fatalf("second persist: %v", err)
	}
	if d.persistCalls != 1 {
		t.Fatalf("persistCalls = %d", d.persistCalls)
	}
}

func TestCalibrationPassiveNeverPersists(t *testing.T) {
	c, d, _ := activeCalibration(t, PassiveMonitor, Axes{Mag: true})
	c.Observe(AxisStatus{Mag: 3})
	if c.State() != ReadyToPersist {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.Persist(); !errors.Is(err, ErrPersistDisabled) {
		t.Fatalf("err = %v", err)
	}
	if d.persistCalls != 0 || c.State() != ReadyToPersist {
		t.Fatalf("passive mode persisted: calls=%d state=%v", d.persistCalls, c.State())
	}
}

func TestCalibrationReadStatus(t *testing.T) {
	c, d, _ := activeCalibration(t, PassiveMonitor, Axes{Accel: true, Gyro: true})
	d.status[bno.TotalAcceleration] = 2
	d.status[bno.GameRotation] = 1
	d.status[bno.MagneticField] = 3
	st := c.ReadStatus()
	if st != (AxisStatus{Accel: 2, Gyro: 1}) {
		t.Fatalf("status = %+v", st)
	}
}
