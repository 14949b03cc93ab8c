package session

import (
	"context"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
)

// fakeDriver implements bno.Driver with scripted behaviour for tests.
type fakeDriver struct {
	connectResults []bool
	connectCalls   int

	// updates scripts Update results; once exhausted Update returns true.
	updates     []bool
	updateCalls int
	lastUpdate  bool

	// fresh overrides the fresh flag; nil means every enabled report is
	// fresh whenever the last Update returned true.
	fresh func(update int, t bno.ReportType) bool
	// keepEmitting makes disabled reports still look fresh, like a device
	// that ignored the disable command.
	keepEmitting bool

	enabled       map[bno.ReportType]time.Duration
	everEnabled   map[bno.ReportType]bool
	rejectEnable  map[bno.ReportType]bool
	rejectDisable bool

	calibrationOK    bool
	calibrationCalls int
	calibrationAxes  [3]bool
	persistCalls     int
	tareCalls        int
	orientation      []orientation.Quaternion

	status    map[bno.ReportType]uint8
	rotation  orientation.Quaternion
	stability uint8
	tap       bool
	reads     map[bno.ReportType]int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		enabled:      make(map[bno.ReportType]time.Duration),
		everEnabled:  make(map[bno.ReportType]bool),
		rejectEnable: make(map[bno.ReportType]bool),
		status:       make(map[bno.ReportType]uint8),
		reads:        make(map[bno.ReportType]int),
		rotation:     orientation.Identity,
	}
}

func (d *fakeDriver) Connect() bool {
	d.connectCalls++
	if d.connectCalls <= len(d.connectResults) {
		return d.connectResults[d.connectCalls-1]
	}
	return true
}

func (d *fakeDriver) Info() bno.ProductInfo { return bno.ProductInfo{MajorVersion: 3, PartNumber: 10003608} }

func (d *fakeDriver) EnableReport(t bno.ReportType, iv time.Duration) bool {
	if d.rejectEnable[t] {
		return false
	}
	d.enabled[t] = iv
	d.everEnabled[t] = true
	return true
}

func (d *fakeDriver) DisableReport(t bno.ReportType) bool {
	if d.rejectDisable {
		return false
	}
	delete(d.enabled, t)
	return true
}

func (d *fakeDriver) Update() bool {
	d.updateCalls++
	d.lastUpdate = true
	if d.updateCalls <= len(d.updates) {
		d.lastUpdate = d.updates[d.updateCalls-1]
	}
	return d.lastUpdate
}

func (d *fakeDriver) IsFresh(t bno.ReportType) bool {
	if !d.lastUpdate {
		return false
	}
	if _, on := d.enabled[t]; !on && !(d.keepEmitting && d.everEnabled[t]) {
		return false
	}
	if d.fresh != nil {
		return d.fresh(d.updateCalls, t)
	}
	return true
}

func (d *fakeDriver) Status(t bno.ReportType) uint8 { return d.status[t] }

func (d *fakeDriver) RotationVector() orientation.Quaternion {
	d.reads[bno.Rotation]++
	return d.rotation
}
func (d *fakeDriver) RotationAccuracy() float64 { return 0.05 }
func (d *fakeDriver) GameRotationVector() orientation.Quaternion {
	d.reads[bno.GameRotation]++
	return d.rotation
}
func (d *fakeDriver) LinearAcceleration() orientation.Vec3 {
	d.reads[bno.LinearAcceleration]++
	return orientation.Vec3{}
}
func (d *fakeDriver) TotalAcceleration() orientation.Vec3 {
	d.reads[bno.TotalAcceleration]++
	return orientation.Vec3{Z: 9.81}
}
func (d *fakeDriver) MagneticField() orientation.Vec3 {
	d.reads[bno.MagneticField]++
	return orientation.Vec3{X: 20}
}
func (d *fakeDriver) MagneticFieldUncalibrated() orientation.Vec3 {
	d.reads[bno.MagneticFieldUncalibrated]++
	return orientation.Vec3{X: 25}
}
func (d *fakeDriver) HardIronOffset() orientation.Vec3 { return orientation.Vec3{X: 5} }
func (d *fakeDriver) TapDetected() bool {
	d.reads[bno.TapDetector]++
	return d.tap
}
func (d *fakeDriver) StabilityCode() uint8 {
	d.reads[bno.StabilityClassifier]++
	return d.stability
}

func (d *fakeDriver) EnableCalibration(accel, gyro, mag bool) bool {
	d.calibrationCalls++
	d.calibrationAxes = [3]bool{accel, gyro, mag}
	return d.calibrationOK
}
func (d *fakeDriver) PersistCalibration() { d.persistCalls++ }
func (d *fakeDriver) Tare()               { d.tareCalls++ }
func (d *fakeDriver) SetOrientation(q orientation.Quaternion) {
	d.orientation = append(d.orientation, q)
}
func (d *fakeDriver) SetPermanentOrientation(q orientation.Quaternion) {
	d.orientation = append(d.orientation, q)
}
func (d *fakeDriver) DescribeReportMetadata(t bno.ReportType) string { return t.String() }

// fakeClock advances only when the loop sleeps.
type fakeClock struct {
	now    time.Time
	sleeps int
	// cancelAfter cancels via cancel once that many sleeps have happened.
	cancelAfter int
	cancel      context.CancelFunc
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps++
	if c.cancel != nil && c.sleeps == c.cancelAfter {
		c.cancel()
	}
	return nil
}
