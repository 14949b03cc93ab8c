// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package simdriver is a simulated fused-orientation sensor that implements
// bno.Driver. It emits each enabled report at its requested interval and
// generates smoothly changing values, so every diagnostic session can run
// without hardware.
package simdriver

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
)

const (
	gravity = 9.81

	// Time for a calibrating axis to climb one accuracy level.
	calibrationStep = 1500 * time.Millisecond

	tapPeriod = 3 * time.Second
)

// Options tunes the simulation.
type Options struct {
	Seed int64
	// DropEvery makes every Nth Update report no packet (0 = never).
	DropEvery int
	// ConnectFailures is the number of Connect calls that fail first.
	ConnectFailures int
	// NoCalibration makes EnableCalibration refuse.
	NoCalibration bool
	// Now replaces the wall clock.
	Now func() time.Time
}

// Driver is the simulated sensor. Not safe for concurrent use.
type Driver struct {
	opts Options
	now  func() time.Time
	rnd  *rand.Rand

	connected    bool
	connectCalls int
	start        time.Time
	updates      int

	enabled  map[bno.ReportType]time.Duration
	lastEmit map[bno.ReportType]time.Time
	fresh    map[bno.ReportType]bool

	rotation     orientation.Quaternion
	gameRotation orientation.Quaternion
	linear       orientation.Vec3
	total        orientation.Vec3
	mag          orientation.Vec3
	hardIron     orientation.Vec3
	tap          bool
	lastTap      time.Time
	stability    uint8

	tareRef     orientation.Quaternion
	remap       orientation.Quaternion
	permanent   orientation.Quaternion
	calibrating [3]bool
	calStart    time.Time
	saved       int
}

func New(opts Options) *Driver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		opts:      opts,
		now:       now,
		rnd:       rand.New(rand.NewSource(opts.Seed)),
		enabled:   make(map[bno.ReportType]time.Duration),
		lastEmit:  make(map[bno.ReportType]time.Time),
		fresh:     make(map[bno.ReportType]bool),
		rotation:  orientation.Identity,
		tareRef:   orientation.Identity,
		remap:     orientation.Identity,
		permanent: orientation.Identity,
		hardIron:  orientation.Vec3{X: 12.5, Y: -7.25, Z: 3.5},
	}
}

func (d *Driver) Connect() bool {
	d.connectCalls++
	if d.connectCalls <= d.opts.ConnectFailures {
		return false
	}
	d.connected = true
	d.start = d.now()
	d.lastTap = d.start
	clear(d.enabled)
	clear(d.lastEmit)
	clear(d.fresh)
	log.Printf("simdriver: connected after %d attempt(s)", d.connectCalls)
	return true
}

func (d *Driver) Info() bno.ProductInfo {
	return bno.ProductInfo{
		MajorVersion: 3,
		MinorVersion: 2,
		PatchVersion: 13,
		BuildNumber:  370,
		PartNumber:   10003608,
	}
}

func (d *Driver) EnableReport(t bno.ReportType, interval time.Duration) bool {
	if !d.connected || !t.Valid() || interval <= 0 {
		return false
	}
	d.enabled[t] = interval
	delete(d.lastEmit, t)
	return true
}

func (d *Driver) DisableReport(t bno.ReportType) bool {
	if !d.connected {
		return false
	}
	delete(d.enabled, t)
	delete(d.lastEmit, t)
	delete(d.fresh, t)
	return true
}

// Update emits every enabled report whose interval has elapsed. It returns
// false when no report was due or the packet was dropped.
func (d *Driver) Update() bool {
	clear(d.fresh)
	if !d.connected {
		return false
	}
	d.updates++
	if d.opts.DropEvery > 0 && d.updates%d.opts.DropEvery == 0 {
		return false
	}

	now := d.now()
	emitted := false
	for _, t := range bno.AllReports {
		iv, on := d.enabled[t]
		if !on {
			continue
		}
		if last, ok := d.lastEmit[t]; ok && now.Sub(last) < iv {
			continue
		}
		d.lastEmit[t] = now
		d.fresh[t] = true
		emitted = true
	}
	if emitted {
		d.simulate(now.Sub(d.start).Seconds())
	}
	return emitted
}

func (d *Driver) simulate(t float64) {
	pose := orientation.FromEuler(
		(20*math.Sin(t))*math.Pi/180,
		(15*math.Cos(t*0.7))*math.Pi/180,
		math.Mod(t*30, 360)*math.Pi/180,
	)
	frame := d.permanent.Mul(d.remap)
	d.gameRotation = pose.Mul(frame)
	d.rotation = d.tareRef.Conjugate().Mul(d.gameRotation)

	d.linear = orientation.Vec3{
		X: 0.3*math.Sin(2*t) + d.noise(0.02),
		Y: 0.2*math.Cos(1.5*t) + d.noise(0.02),
		Z: d.noise(0.02),
	}
	d.total = orientation.Vec3{X: d.linear.X, Y: d.linear.Y, Z: gravity + d.linear.Z}

	yaw := math.Mod(t*30, 360) * math.Pi / 180
	d.mag = orientation.Vec3{
		X: 22*math.Cos(yaw) + d.noise(0.3),
		Y: -22*math.Sin(yaw) + d.noise(0.3),
		Z: -40 + d.noise(0.3),
	}

	if d.now().Sub(d.lastTap) >= tapPeriod {
		d.tap = true
		d.lastTap = d.now()
	} else {
		d.tap = false
	}

	// Cycle through the classifier states every 2 s.
	d.stability = uint8(int(t/2)%4) + 1
}

func (d *Driver) noise(scale float64) float64 {
	return (d.rnd.Float64()*2 - 1) * scale
}

func (d *Driver) IsFresh(t bno.ReportType) bool { return d.fresh[t] }

// Status climbs one level per calibrationStep on calibrating axes.
func (d *Driver) Status(t bno.ReportType) uint8 {
	axis := -1
	switch t {
	case bno.TotalAcceleration, bno.LinearAcceleration:
		axis = 0
	case bno.GameRotation:
		axis = 1
	case bno.MagneticField, bno.MagneticFieldUncalibrated, bno.Rotation:
		axis = 2
	}
	if axis < 0 {
		return bno.StatusHigh
	}
	if !d.calibrating[axis] {
		if d.saved > 0 {
			return bno.StatusHigh
		}
		return bno.StatusLow
	}
	level := int(d.now().Sub(d.calStart) / calibrationStep)
	if level > int(bno.StatusHigh) {
		level = int(bno.StatusHigh)
	}
	return uint8(level)
}

func (d *Driver) RotationVector() orientation.Quaternion     { return d.rotation }
func (d *Driver) RotationAccuracy() float64                  { return 0.035 }
func (d *Driver) GameRotationVector() orientation.Quaternion { return d.gameRotation }
func (d *Driver) LinearAcceleration() orientation.Vec3       { return d.linear }
func (d *Driver) TotalAcceleration() orientation.Vec3        { return d.total }
func (d *Driver) MagneticField() orientation.Vec3            { return d.mag }
func (d *Driver) HardIronOffset() orientation.Vec3           { return d.hardIron }
func (d *Driver) TapDetected() bool                          { return d.tap }
func (d *Driver) StabilityCode() uint8                       { return d.stability }

func (d *Driver) MagneticFieldUncalibrated() orientation.Vec3 {
	return orientation.Vec3{
		X: d.mag.X + d.hardIron.X,
		Y: d.mag.Y + d.hardIron.Y,
		Z: d.mag.Z + d.hardIron.Z,
	}
}

func (d *Driver) EnableCalibration(accel, gyro, mag bool) bool {
	if !d.connected || d.opts.NoCalibration {
		return false
	}
	d.calibrating = [3]bool{accel, gyro, mag}
	d.calStart = d.now()
	return true
}

func (d *Driver) PersistCalibration() {
	d.saved++
	log.Printf("simdriver: calibration saved (%d)", d.saved)
}

// SaveCount is the number of PersistCalibration calls.
func (d *Driver) SaveCount() int { return d.saved }

func (d *Driver) Tare() {
	d.tareRef = d.gameRotation
}

func (d *Driver) SetOrientation(q orientation.Quaternion) {
	d.remap = q
}

func (d *Driver) SetPermanentOrientation(q orientation.Quaternion) {
	if q == (orientation.Quaternion{}) {
		q = orientation.Identity
	}
	d.permanent = q
	d.remap = orientation.Identity
}

func (d *Driver) DescribeReportMetadata(t bno.ReportType) string {
	if !t.Valid() {
		return fmt.Sprintf("no metadata for %v", t)
	}
	iv, on := d.enabled[t]
	state := "disabled"
	if on {
		state = fmt.Sprintf("enabled every %v", iv)
	}
	return fmt.Sprintf("%s: version 1.0, min period 2.5ms, %s, q-point %d", t, state, qPoint(t))
}

func qPoint(t bno.ReportType) int {
	switch t {
	case bno.Rotation, bno.GameRotation:
		return 14
	case bno.MagneticField, bno.MagneticFieldUncalibrated:
		return 4
	case bno.LinearAcceleration, bno.TotalAcceleration:
		return 8
	default:
		return 0
	}
}

var _ bno.Driver = (*Driver)(nil)
