package simdriver

import (
	"testing"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time           { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDriver(opts Options) (*Driver, *stepClock) {
	c := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts.Now = c.now
	d := New(opts)
	return d, c
}

func TestConnectFailuresThenSuccess(t *testing.T) {
	d, _ := newTestDriver(Options{ConnectFailures: 2})
	if d.Connect() || d.Connect() {
		t.Fatal("expected first two connects to fail")
	}
	if !d.Connect() {
		t.Fatal("third connect should succeed")
	}
}

func TestReportsEmitAtTheirInterval(t *testing.T) {
	d, c := newTestDriver(Options{})
	d.Connect()
	if !d.EnableReport(bno.Rotation, 200*time.Millisecond) {
		t.Fatal("enable rotation")
	}

	fresh := 0
	for i := 0; i < 20; i++ {
		c.advance(100 * time.Millisecond)
		if d.Update() && d.IsFresh(bno.Rotation) {
			fresh++
		}
	}
	// First update emits immediately, then every other 100ms step.
	if fresh != 10 {
		t.Fatalf("fresh rotation updates = %d, want 10", fresh)
	}

	if !d.DisableReport(bno.Rotation) {
		t.Fatal("disable rotation")
	}
	c.advance(time.Second)
	if d.Update() || d.IsFresh(bno.Rotation) {
		t.Fatal("disabled report still emitted")
	}
}

func TestDropEvery(t *testing.T) {
	d, c := newTestDriver(Options{DropEvery: 3})
	d.Connect()
	d.EnableReport(bno.TotalAcceleration, time.Millisecond)
	var got []bool
	for i := 0; i < 6; i++ {
		c.advance(10 * time.Millisecond)
		got = append(got, d.Update())
	}
	want := []bool{true, true, false, true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("updates = %v, want %v", got, want)
		}
	}
}

func TestCalibrationStatusClimbs(t *testing.T) {
	d, c := newTestDriver(Options{})
	d.Connect()
	if d.Status(bno.TotalAcceleration) != bno.StatusLow {
		t.Fatalf("uncalibrated status = %d", d.Status(bno.TotalAcceleration))
	}
	if !d.EnableCalibration(true, false, false) {
		t.Fatal("EnableCalibration refused")
	}
	if d.Status(bno.TotalAcceleration) != bno.StatusUnreliable {
		t.Fatalf("status right after enable = %d", d.Status(bno.TotalAcceleration))
	}
	c.advance(2 * calibrationStep)
	if d.Status(bno.TotalAcceleration) != bno.StatusMedium {
		t.Fatalf("status = %d, want medium", d.Status(bno.TotalAcceleration))
	}
	c.advance(10 * calibrationStep)
	if d.Status(bno.TotalAcceleration) != bno.StatusHigh {
		t.Fatalf("status = %d, want high", d.Status(bno.TotalAcceleration))
	}
	d.PersistCalibration()
	if d.SaveCount() != 1 {
		t.Fatalf("SaveCount = %d", d.SaveCount())
	}
}

func TestNoCalibration(t *testing.T) {
	d, _ := newTestDriver(Options{NoCalibration: true})
	d.Connect()
	if d.EnableCalibration(false, false, true) {
		t.Fatal("expected refusal")
	}
}

func TestTareZeroesRotation(t *testing.T) {
	d, c := newTestDriver(Options{})
	d.Connect()
	d.EnableReport(bno.Rotation, time.Millisecond)
	c.advance(1500 * time.Millisecond)
	d.Update()
	d.Tare()
	// Re-read the same instant: rotation relative to the tare reference.
	d.simulate(c.t.Sub(d.start).Seconds())
	p := d.RotationVector().Pose()
	if abs(p.Roll) > 0.5 || abs(p.Pitch) > 0.5 || abs(p.Yaw) > 0.5 {
		t.Fatalf("pose after tare = %+v", p)
	}
}

func TestUncalibratedMagIncludesHardIron(t *testing.T) {
	d, c := newTestDriver(Options{})
	d.Connect()
	d.EnableReport(bno.MagneticFieldUncalibrated, time.Millisecond)
	c.advance(time.Millisecond)
	d.Update()
	raw := d.MagneticFieldUncalibrated()
	cal := d.MagneticField()
	off := d.HardIronOffset()
	if abs(raw.X-cal.X-off.X) > 1e-9 || abs(raw.Z-cal.Z-off.Z) > 1e-9 {
		t.Fatalf("raw=%+v cal=%+v off=%+v", raw, cal, off)
	}
}

func TestPermanentOrientationReset(t *testing.T) {
	d, _ := newTestDriver(Options{})
	d.SetPermanentOrientation(orientation.Quaternion{})
	if d.permanent != orientation.Identity {
		t.Fatalf("zero quaternion should reset to identity, got %+v", d.permanent)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
