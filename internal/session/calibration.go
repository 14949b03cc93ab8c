// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
)

// CalibrationState is the position of the calibration workflow.
type CalibrationState int

const (
	NotStarted CalibrationState = iota
	CalibrationEnabled
	Monitoring
	ReadyToPersist
	Persisted
	Failed
)

func (s CalibrationState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case CalibrationEnabled:
		return "calibration_enabled"
	case Monitoring:
		return "monitoring"
	case ReadyToPersist:
		return "ready_to_persist"
	case Persisted:
		return "persisted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("calibration_state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s CalibrationState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (s *CalibrationState) UnmarshalText(b []byte) error {
	for c := NotStarted; c <= Failed; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown calibration state %q", b)
}

// Terminal reports whether no further transition is possible.
func (s CalibrationState) Terminal() bool { return s == Persisted || s == Failed }

// CalibrationMode selects whether the workflow may persist.
type CalibrationMode int

const (
	// PassiveMonitor only tracks accuracy; Persist always fails.
	PassiveMonitor CalibrationMode = iota
	// InteractiveSave persists on an explicit external trigger, and only
	// while every requested axis is converged.
	InteractiveSave
)

func (m CalibrationMode) String() string {
	if m == InteractiveSave {
		return "interactive_save"
	}
	return "passive_monitor"
}

// Axes selects which sensors are calibrated.
type Axes struct {
	Accel bool `json:"accel"`
	Gyro  bool `json:"gyro"`
	Mag   bool `json:"mag"`
}

func (a Axes) any() bool { return a.Accel || a.Gyro || a.Mag }

// Reports lists the telemetry subscribed while calibrating a.
func (a Axes) Reports() []bno.ReportType {
	want := make(map[bno.ReportType]bool)
	if a.Accel {
		want[bno.TotalAcceleration] = true
	}
	if a.Gyro {
		want[bno.GameRotation] = true
	}
	if a.Mag {
		want[bno.GameRotation] = true
		want[bno.MagneticField] = true
		want[bno.MagneticFieldUncalibrated] = true
	}
	var out []bno.ReportType
	for _, t := range bno.AllReports {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

// Accuracy reports carrying each axis' calibration status.
const (
	accelStatusReport = bno.TotalAcceleration
	gyroStatusReport  = bno.GameRotation
	magStatusReport   = bno.MagneticField
)

// ConvergedStatus is the lowest device status counted as calibrated.
const ConvergedStatus = bno.StatusMedium

// AxisStatus is the latest device accuracy code per axis.
type AxisStatus struct {
	Accel uint8 `json:"accel"`
	Gyro  uint8 `json:"gyro"`
	Mag   uint8 `json:"mag"`
}

// Calibration is the calibration workflow:
//
//	NotStarted -> CalibrationEnabled -> Monitoring <-> ReadyToPersist -> Persisted
//	NotStarted -> Failed
type Calibration struct {
	driver   bno.Driver
	registry *Registry
	mode     CalibrationMode

	targets Axes
	state   CalibrationState
	last    AxisStatus

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to CalibrationState)
}

func NewCalibration(d bno.Driver, reg *Registry, mode CalibrationMode) *Calibration {
	return &Calibration{driver: d, registry: reg, mode: mode}
}

// Activate enables calibration mode for the requested axes and subscribes
// their reports at interval. A device refusal moves the workflow to Failed
// and returns ErrCalibrationUnsupported; the session cannot continue.
func (c *Calibration) Activate(axes Axes, interval time.Duration) error {
	if c.state != NotStarted {
		return fmt.Errorf("activate calibration: already %v", c.state)
	}
	if !axes.any() {
		return errors.New("activate calibration: no axes requested")
	}
	c.targets = axes
	if !c.driver.EnableCalibration(axes.Accel, axes.Gyro, axes.Mag) {
		c.transition(Failed)
		return fmt.Errorf("activate calibration (accel=%t gyro=%t mag=%t): %w",
			axes.Accel, axes.Gyro, axes.Mag, ErrCalibrationUnsupported)
	}
	c.transition(CalibrationEnabled)
	for _, t := range axes.Reports() {
		if err := c.registry.Enable(t, interval); err != nil {
			return fmt.Errorf("activate calibration: %w", err)
		}
	}
	return nil
}

// ReadStatus samples the device status of every requested axis.
func (c *Calibration) ReadStatus() AxisStatus {
	var st AxisStatus
	if c.targets.Accel {
		st.Accel = c.driver.Status(accelStatusReport)
	}
	if c.targets.Gyro {
		st.Gyro = c.driver.Status(gyroStatusReport)
	}
	if c.targets.Mag {
		st.Mag = c.driver.Status(magStatusReport)
	}
	return st
}

// Observe feeds the latest per-axis accuracy. Accuracy may regress, so
// ReadyToPersist is left again as soon as one requested axis drops below
// ConvergedStatus.
func (c *Calibration) Observe(st AxisStatus) {
	switch c.state {
	case NotStarted, Persisted, Failed:
		return
	case CalibrationEnabled:
		c.transition(Monitoring)
	}
	c.last = st
	converged := c.converged(st)
	switch {
	case c.state == Monitoring && converged:
		c.transition(ReadyToPersist)
	case c.state == ReadyToPersist && !converged:
		c.transition(Monitoring)
	}
}

func (c *Calibration) converged(st AxisStatus) bool {
	if c.targets.Accel && st.Accel < ConvergedStatus {
		return false
	}
	if c.targets.Gyro && st.Gyro < ConvergedStatus {
		return false
	}
	if c.targets.Mag && st.Mag < ConvergedStatus {
		return false
	}
	return c.targets.any()
}

// Persist asks the device to save its calibration. Only valid in
// InteractiveSave mode from ReadyToPersist.
func (c *Calibration) Persist() error {
	if c.mode != InteractiveSave {
		return ErrPersistDisabled
	}
	if c.state != ReadyToPersist {
		return fmt.Errorf("persist calibration in state %v: %w", c.state, ErrNotReadyToPersist)
	}
	c.driver.PersistCalibration()
	c.transition(Persisted)
	return nil
}

func (c *Calibration) transition(to CalibrationState) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

func (c *Calibration) State() CalibrationState { return c.state }
func (c *Calibration) Mode() CalibrationMode   { return c.mode }
func (c *Calibration) Targets() Axes           { return c.targets }
func (c *Calibration) LastStatus() AxisStatus  { return c.last }

// Activated reports whether the device accepted calibration mode.
func (c *Calibration) Activated() bool {
	return c.state != NotStarted && c.state != Failed
}
