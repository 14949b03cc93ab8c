// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package publish

import (
	"fmt"
	"io"
	"math"

	"github.com/relabs-tech/bno_diagnostics/internal/bno"
	"github.com/relabs-tech/bno_diagnostics/internal/orientation"
	"github.com/relabs-tech/bno_diagnostics/internal/session"
)

// Console prints samples in the bench's human-readable format.
type Console struct {
	W io.Writer
	// ShowNotReady prints a line for every tick without a packet.
	ShowNotReady bool
	// CalibrationHint appends the convergence hint to status lines.
	CalibrationHint bool
}

func (c *Console) Sample(_ session.Tick, s bno.Sample) {
	switch v := s.(type) {
	case bno.OrientationSample:
		p := v.Pose()
		if v.Type == bno.Rotation {
			fmt.Fprintf(c.W, "IMU Rotation Euler: Roll: %.2f deg, Pitch: %.2f deg, Yaw: %.2f deg, Accuracy: %.02f deg, Status: %s\n",
				p.Roll, p.Pitch, p.Yaw, v.Accuracy*180/math.Pi, bno.StatusString(v.Status))
			return
		}
		fmt.Fprintf(c.W, "IMU Game Rotation Euler: [%s], Status: %s\n", pose(p), bno.StatusString(v.Status))
	case bno.MotionSample:
		switch v.Type {
		case bno.LinearAcceleration:
			fmt.Fprintf(c.W, "IMU Linear Acceleration: [%s] m/s^2\n", vec(v.Vector))
		case bno.TotalAcceleration:
			fmt.Fprintf(c.W, "IMU Total Acceleration: [%s] m/s^2, Status: %d%s\n", vec(v.Vector), v.Status, c.hint())
		case bno.MagneticField:
			fmt.Fprintf(c.W, "IMU Magnetic Field: [%s] uTesla, Status: %d%s\n", vec(v.Vector), v.Status, c.hint())
		}
	case bno.UncalibratedMagSample:
		fmt.Fprintf(c.W, "IMU Magnetic Field (uncalibrated): [%s] uTesla, Hard iron offsets: [%s]\n",
			vec(v.Field), vec(v.HardIronOffset))
	case bno.TapSample:
		if v.Detected {
			fmt.Fprintln(c.W, "Tap detected!")
		}
	case bno.StabilitySample:
		fmt.Fprintf(c.W, "Stability: %s\n", v.State)
	}
}

func (c *Console) hint() string {
	if c.CalibrationHint {
		return " (should be 2-3 when calibration is complete)"
	}
	return ""
}

func (c *Console) NotReady(session.Tick) {
	if c.ShowNotReady {
		fmt.Fprintln(c.W, "IMU was not ready with data packet!")
	}
}

func (c *Console) Command(tick session.Tick, f session.Fired) {
	if f.Err != nil {
		fmt.Fprintf(c.W, "%.1f seconds have passed, %s failed: %v\n", tick.Elapsed.Seconds(), f.Name, f.Err)
		return
	}
	fmt.Fprintf(c.W, "%.1f seconds have passed, sent %s command\n", tick.Elapsed.Seconds(), f.Name)
}

func (c *Console) Calibration(from, to session.CalibrationState, st session.AxisStatus) {
	switch to {
	case session.CalibrationEnabled:
		fmt.Fprintln(c.W, "Calibration mode was successfully enabled!")
	case session.Failed:
		fmt.Fprintln(c.W, "Calibration mode failed to enable!")
	case session.ReadyToPersist:
		fmt.Fprintf(c.W, "Calibration converged (accel=%d gyro=%d mag=%d)\n", st.Accel, st.Gyro, st.Mag)
	case session.Persisted:
		fmt.Fprintln(c.W, "Calibration saved to the device.")
	default:
		fmt.Fprintf(c.W, "Calibration: %v -> %v\n", from, to)
	}
}

func (c *Console) Persist(_ session.Tick, err error) {
	if err != nil {
		fmt.Fprintf(c.W, "Calibration not saved: %v\n", err)
		return
	}
	fmt.Fprintln(c.W, "Saving current calibration...")
}

func vec(v orientation.Vec3) string {
	return fmt.Sprintf("%.3f, %.3f, %.3f", v.X, v.Y, v.Z)
}

func pose(p orientation.Pose) string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", p.Roll, p.Pitch, p.Yaw)
}
